package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses.
// Point a twitchapi.HelixClient at it with BaseURL: m.URL + "/helix".
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []Request
}

// Request is a call received by the mock.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
		for k := range r.URL.Query() {
			req.Query[k] = r.URL.Query().Get(k)
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req.Body) //nolint:errcheck // bodies are optional
		}
		m.mu.Lock()
		m.requests = append(m.requests, req)
		m.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Requests returns every call received so far.
func (m *MockTwitchServer) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent call to path, if any.
func (m *MockTwitchServer) LastRequest(path string) (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		if m.requests[i].Path == path {
			return m.requests[i], true
		}
	}
	return Request{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockUserResponse adds a handler for /helix/users endpoint
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["GET /helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("login") != login {
			writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]string{{"id": userID, "login": login}},
		})
	}
}

// MockPollResponse adds a handler for POST /helix/polls.
func (m *MockTwitchServer) MockPollResponse(status int) {
	m.Handlers["POST /helix/polls"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]any{"data": []map[string]string{{"id": "poll-1"}}})
	}
}

// MockPredictionResponse adds a handler for POST /helix/predictions.
func (m *MockTwitchServer) MockPredictionResponse(status int) {
	m.Handlers["POST /helix/predictions"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]any{"data": []map[string]string{{"id": "prediction-1"}}})
	}
}

// MockClipResponse adds a handler for POST /helix/clips.
func (m *MockTwitchServer) MockClipResponse(id, editURL string) {
	m.Handlers["POST /helix/clips"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"data": []map[string]string{{"id": id, "edit_url": editURL}},
		})
	}
}

// MockBanResponse adds a handler for POST /helix/moderation/bans.
func (m *MockTwitchServer) MockBanResponse(status int) {
	m.Handlers["POST /helix/moderation/bans"] = func(w http.ResponseWriter, r *http.Request) {
		if status >= 300 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status), "message": "user is already banned"})
			return
		}
		writeJSON(w, status, map[string]any{"data": []map[string]string{{"user_id": "42"}}})
	}
}

// MockChannelUpdate adds a handler for PATCH /helix/channels.
func (m *MockTwitchServer) MockChannelUpdate(status int) {
	m.Handlers["PATCH /helix/channels"] = func(w http.ResponseWriter, r *http.Request) {
		if status >= 300 {
			writeJSON(w, status, map[string]string{"message": "missing scope channel:manage:broadcast"})
			return
		}
		w.WriteHeader(status)
	}
}

// MockCategorySearch adds a handler for GET /helix/search/categories.
func (m *MockTwitchServer) MockCategorySearch(categories []map[string]string) {
	m.Handlers["GET /helix/search/categories"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": categories})
	}
}
