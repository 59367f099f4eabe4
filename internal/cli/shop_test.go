package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// fakeShop answers the four shop endpoints. Individual statuses can be
// overridden per path.
type fakeShop struct {
	mu        sync.Mutex
	overrides map[string]reply
	hits      map[string]int
}

type reply struct {
	status int
	body   string
}

func newFakeShop(t *testing.T) (*fakeShop, *httptest.Server) {
	t.Helper()
	shop := &fakeShop{
		overrides: map[string]reply{},
		hits:      map[string]int{},
	}
	srv := httptest.NewServer(shop)
	t.Cleanup(srv.Close)
	return shop, srv
}

func (s *fakeShop) override(path string, r reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = r
}

func (s *fakeShop) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	rep, ok := s.overrides[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		switch r.URL.Path {
		case "/api/register":
			rep = reply{http.StatusCreated, `{"message":"registered"}`}
		case "/api/login":
			rep = reply{http.StatusOK, `{"access_token":"tok-123","token_type":"bearer"}`}
		case "/api/orders":
			rep = reply{http.StatusAccepted, `{"message":"queued"}`}
		case "/api/me":
			rep = reply{http.StatusOK, `{"id":1,"name":"Test User"}`}
		default:
			rep = reply{http.StatusNotFound, `{"message":"not found"}`}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
