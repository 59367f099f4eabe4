package jsonpath

import (
	"errors"
	"testing"
)

const loginBody = `{
	"status": "success",
	"message": "Login successful",
	"access_token": "eyJhbGciOiJIUzI1NiJ9.e30.sig",
	"token_type": "bearer",
	"expires_in": 3600,
	"data": {
		"token": "nested-token",
		"user": {"id": 42, "email": "testuser_12345@example.com"},
		"roles": ["customer", "beta"]
	},
	"refresh_token": null
}`

func TestExtract(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		expected      string
		expectedError bool
	}{
		{name: "Top-level string", path: "$.access_token", expected: "eyJhbGciOiJIUzI1NiJ9.e30.sig"},
		{name: "Bare gjson path", path: "access_token", expected: "eyJhbGciOiJIUzI1NiJ9.e30.sig"},
		{name: "Nested property", path: "$.data.token", expected: "nested-token"},
		{name: "Numeric property", path: "$.expires_in", expected: "3600"},
		{name: "Deep number", path: "$.data.user.id", expected: "42"},
		{name: "Array element", path: "$.data.roles[1]", expected: "beta"},
		{name: "Bracket notation", path: "$['data']['token']", expected: "nested-token"},
		{name: "Null value", path: "$.refresh_token", expected: "null"},
		{name: "Missing property", path: "$.token", expectedError: true},
		{name: "Index out of range", path: "$.data.roles[5]", expectedError: true},
		{name: "Empty path", path: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Extract([]byte(loginBody), tt.path)

			if tt.expectedError && err == nil {
				t.Errorf("Expected error, got nil")
			}
			if !tt.expectedError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if !tt.expectedError && result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestExtract_InvalidDocument(t *testing.T) {
	for _, doc := range []string{"", "<html>Server Error</html>", `{"access_token":`} {
		_, err := Extract([]byte(doc), "$.access_token")
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("Extract(%q) error = %v, want ErrInvalidJSON", doc, err)
		}
	}
}

func TestExtract_NotFoundIsWrapped(t *testing.T) {
	_, err := Extract([]byte(`{"a":1}`), "$.b")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "String value", body: `{"access_token":"T1"}`, want: "T1"},
		{name: "Empty string", body: `{"access_token":""}`, wantErr: true},
		{name: "Number", body: `{"access_token":123}`, wantErr: true},
		{name: "Null", body: `{"access_token":null}`, wantErr: true},
		{name: "Object", body: `{"access_token":{"v":"T1"}}`, wantErr: true},
		{name: "Missing", body: `{"token":"T1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String([]byte(tt.body), "$.access_token")
			if (err != nil) != tt.wantErr {
				t.Fatalf("String() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToGjsonPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"$", "@this"},
		{"$.access_token", "access_token"},
		{"access_token", "access_token"},
		{"$.data.token", "data.token"},
		{"$[0]", "0"},
		{"$.items[2].id", "items.2.id"},
		{"$['data']['token']", "data.token"},
		{`$["data"]["token"]`, "data.token"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := toGjsonPath(tt.input); got != tt.expected {
				t.Errorf("toGjsonPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValid(t *testing.T) {
	if !Valid("$.access_token") {
		t.Error("expected $.access_token to be valid")
	}
	for _, p := range []string{"", "   ", "$.access token"} {
		if Valid(p) {
			t.Errorf("expected %q to be invalid", p)
		}
	}
}
