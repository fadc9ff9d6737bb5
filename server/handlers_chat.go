package server

import (
	"net/http"
	"time"
)

type chatLine struct {
	Seq        uint64    `json:"seq"`
	Channel    string    `json:"channel,omitempty"`
	Username   string    `json:"username"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// HandleChatRecent returns the newest lines in the chat window, oldest first.
// Params: limit (default 20, capped at the window capacity), channel (optional).
func (h *Handlers) HandleChatRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 20)
	if limit <= 0 || limit > h.window.Cap() {
		limit = h.window.Cap()
	}
	lines := h.window.Channel(r.URL.Query().Get("channel")).LastN(limit)
	out := make([]chatLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, chatLine{Seq: l.Seq, Channel: l.Channel, Username: l.Username, Message: l.Content, ReceivedAt: l.ReceivedAt})
	}
	writeJSON(w, http.StatusOK, out)
}
