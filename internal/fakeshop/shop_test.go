package fakeshop

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShop(t *testing.T, cfg Config) (*Shop, *httptest.Server) {
	t.Helper()
	shop := New(cfg)
	srv := httptest.NewServer(shop.Handler())
	t.Cleanup(srv.Close)
	return shop, srv
}

func post(t *testing.T, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc), string(data))
	return resp.StatusCode, doc
}

func registration(email string) registerRequest {
	return registerRequest{Name: "Test User", Email: email, Password: "password", PasswordConfirmation: "password"}
}

func loginToken(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	status, doc := post(t, srv.URL+"/api/login", "", loginRequest{Email: email, Password: "password"})
	require.Equal(t, http.StatusOK, status)
	token, _ := doc["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegister(t *testing.T) {
	shop, srv := newTestShop(t, Config{})

	status, _ := post(t, srv.URL+"/api/register", "", registration("a@example.com"))
	assert.Equal(t, http.StatusCreated, status)

	status, doc := post(t, srv.URL+"/api/register", "", registration("a@example.com"))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, MsgEmailTaken, doc["message"])

	assert.Equal(t, 1, shop.Users())
}

func TestRegister_Validation(t *testing.T) {
	_, srv := newTestShop(t, Config{})

	tests := []struct {
		name string
		req  registerRequest
	}{
		{"missing name", registerRequest{Email: "a@example.com", Password: "password", PasswordConfirmation: "password"}},
		{"bad email", registerRequest{Name: "x", Email: "nope", Password: "password", PasswordConfirmation: "password"}},
		{"short password", registerRequest{Name: "x", Email: "a@example.com", Password: "pw", PasswordConfirmation: "pw"}},
		{"confirmation mismatch", registerRequest{Name: "x", Email: "a@example.com", Password: "password", PasswordConfirmation: "passw0rd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, doc := post(t, srv.URL+"/api/register", "", tt.req)
			assert.Equal(t, http.StatusUnprocessableEntity, status)
			assert.NotEmpty(t, doc["errors"])
		})
	}
}

func TestLogin(t *testing.T) {
	_, srv := newTestShop(t, Config{})
	post(t, srv.URL+"/api/register", "", registration("a@example.com"))

	token := loginToken(t, srv, "a@example.com")

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, "1", claims["sub"])

	status, doc := post(t, srv.URL+"/api/login", "", loginRequest{Email: "a@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, MsgInvalidLogin, doc["message"])

	status, _ = post(t, srv.URL+"/api/login", "", loginRequest{Email: "ghost@example.com", Password: "password"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLogin_TokenUnderData(t *testing.T) {
	_, srv := newTestShop(t, Config{})
	post(t, srv.URL+"/api/register", "", registration("a@example.com"))

	_, doc := post(t, srv.URL+"/api/login", "", loginRequest{Email: "a@example.com", Password: "password"})
	data, ok := doc["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, doc["access_token"], data["token"])
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	_, srv := newTestShop(t, Config{})

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).
		SignedString([]byte("someone else"))
	require.NoError(t, err)

	for _, path := range []string{"/api/orders", "/api/me"} {
		for _, token := range []string{"", "garbage", forged} {
			status, doc := post(t, srv.URL+path, token, orderRequest{ProductID: 1, Quantity: 1})
			assert.Equal(t, http.StatusUnauthorized, status, "%s with %q", path, token)
			assert.Equal(t, MsgUnauthenticated, doc["message"])
		}
	}
}

func TestPlaceOrder(t *testing.T) {
	shop, srv := newTestShop(t, Config{Stock: map[int]int{1: 5}})
	post(t, srv.URL+"/api/register", "", registration("a@example.com"))
	token := loginToken(t, srv, "a@example.com")

	status, doc := post(t, srv.URL+"/api/orders", token, orderRequest{ProductID: 1, Quantity: 3})
	assert.Equal(t, http.StatusAccepted, status)
	data := doc["data"].(map[string]any)
	assert.NotEmpty(t, data["order_uuid"])
	assert.Equal(t, 2, shop.Stock(1))

	status, doc = post(t, srv.URL+"/api/orders", token, orderRequest{ProductID: 1, Quantity: 3})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, MsgInsufficientStock, doc["message"])
	assert.Equal(t, 2, shop.Stock(1), "a rejected order does not touch stock")

	status, doc = post(t, srv.URL+"/api/orders", token, orderRequest{ProductID: 9, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, MsgUnknownProduct, doc["message"])

	status, _ = post(t, srv.URL+"/api/orders", token, orderRequest{ProductID: 1, Quantity: 0})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	assert.Equal(t, 1, shop.Orders())
}

func TestPlaceOrder_NoOversell(t *testing.T) {
	shop, srv := newTestShop(t, Config{Stock: map[int]int{1: 10}})
	post(t, srv.URL+"/api/register", "", registration("a@example.com"))
	token := loginToken(t, srv, "a@example.com")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := post(t, srv.URL+"/api/orders", token, orderRequest{ProductID: 1, Quantity: 1})
			if status == http.StatusAccepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, 0, shop.Stock(1))
}

func TestMe(t *testing.T) {
	_, srv := newTestShop(t, Config{})
	post(t, srv.URL+"/api/register", "", registration("a@example.com"))
	token := loginToken(t, srv, "a@example.com")

	status, doc := post(t, srv.URL+"/api/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	u := doc["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "a@example.com", u["email"])
	assert.NotContains(t, u, "password")
}

func TestLatency(t *testing.T) {
	_, srv := newTestShop(t, Config{Latency: 30 * time.Millisecond})

	start := time.Now()
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
