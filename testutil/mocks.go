package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// MockServer stands in for the HTTP services the relay talks to: the Twitch token
// endpoint and the encounter service. Unregistered paths answer 404.
type MockServer struct {
	*httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests map[string][]url.Values
}

// NewMockServer starts a server that is closed when the test ends.
func NewMockServer(t *testing.T) *MockServer {
	t.Helper()
	m := &MockServer{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string][]url.Values),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm() //nolint:errcheck // malformed bodies just record nothing
		m.mu.Lock()
		m.requests[r.URL.Path] = append(m.requests[r.URL.Path], r.Form)
		h, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers h for path.
func (m *MockServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	m.handlers[path] = h
	m.mu.Unlock()
}

// Requests returns the form values (query and body) of every request made to path.
func (m *MockServer) Requests(path string) []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.requests[path]...)
}

// MockOAuthTokenResponse answers refresh grants on /oauth2/token with the given tokens.
func (m *MockServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handle("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Form.Get("grant_type") != "refresh_token" {
			http.Error(w, `{"status":400,"message":"invalid grant"}`, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "bearer",
		})
	})
}

// MockEncounter answers /encounter with status.
func (m *MockServer) MockEncounter(status int) {
	m.Handle("/encounter", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]string{"npc": r.Form.Get("npc"), "count": r.Form.Get("count")})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}
