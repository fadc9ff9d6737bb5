package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/onnwee/twitch-mcp/mcp"
	"github.com/onnwee/twitch-mcp/tools"
)

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"chat", func() error {
			if h.feed != nil && !h.feed.Connected() {
				return errors.New("chat feed not connected")
			}
			return nil
		}},
		{"database", func() error {
			if h.audit == nil {
				return nil
			}
			return h.audit.Ping(r.Context())
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Server         string   `json:"server"`
	Version        string   `json:"version"`
	Channels       []string `json:"channels"`
	ChatConnected  bool     `json:"chat_connected"`
	WindowLines    int      `json:"window_lines"`
	WindowCapacity int      `json:"window_capacity"`
	Tools          int      `json:"tools"`
	AuditEnabled   bool     `json:"audit_enabled"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
}

// HandleStatus returns a summary of the chat feed and chat window.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Server:       mcp.ServerName,
		Version:      mcp.ServerVersion,
		Channels:     []string{},
		Tools:        len(tools.Default().List()),
		AuditEnabled: h.audit != nil,
		// Truncated to whole seconds.
		UptimeSeconds: int64(time.Since(h.started) / time.Second),
	}
	if h.feed != nil {
		resp.Channels = h.feed.Channels()
		resp.ChatConnected = h.feed.Connected()
	}
	if h.window != nil {
		resp.WindowLines = h.window.Len()
		resp.WindowCapacity = h.window.Cap()
	}
	writeJSON(w, http.StatusOK, resp)
}
