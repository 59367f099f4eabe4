package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected method POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/me" {
			t.Errorf("Expected path /api/me, got %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "orderstorm-test" {
			t.Errorf("Expected client header, got %q", r.Header.Get("User-Agent"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":7}`))
	}))
	defer server.Close()

	client := NewClient(
		WithTimeout(5*time.Second),
		WithHeader("User-Agent", "orderstorm-test"),
		WithBaseURL(server.URL),
	)

	resp, err := client.Do(context.Background(), Post("/api/me"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.BodyString() != `{"id":7}` {
		t.Errorf("Unexpected body %q", resp.BodyString())
	}
	if resp.Size() != int64(len(`{"id":7}`)) {
		t.Errorf("Size() = %d", resp.Size())
	}
	if resp.ResponseTime <= 0 {
		t.Error("Expected positive response time")
	}
}

func TestClient_DoReturnsErrorStatusesAsResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"The email has already been taken."}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	resp, err := client.Do(context.Background(), Post("/api/register"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if resp.IsSuccess() {
		t.Error("422 must not be a success")
	}
}

func TestClient_DoTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithTimeout(time.Second))
	resp, err := client.Do(context.Background(), Post("/api/login"))
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if resp != nil {
		t.Error("expected nil response on transport error")
	}
}

func TestClient_RequestID(t *testing.T) {
	ids := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRequestID(true))
	if _, err := client.Do(context.Background(), Post("/api/orders")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := <-ids
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("request id %q is not a UUID: %v", got, err)
	}
}

func TestClient_WithHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: 3 * time.Second}
	client := NewClient(WithHTTPClient(shared), WithBaseURL("http://localhost:80"))

	if client.httpClient != shared {
		t.Error("expected shared http.Client to be used")
	}
	if client.BaseURL() != "http://localhost:80" {
		t.Errorf("BaseURL() = %s", client.BaseURL())
	}

	client = NewClient(WithHTTPClient(nil))
	if client.httpClient == nil {
		t.Error("nil http.Client must be ignored")
	}
}
