package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/twitch-mcp/mcp"
	"github.com/onnwee/twitch-mcp/telemetry"
)

// maxBodyBytes caps a single /mcp request body.
const maxBodyBytes = 1 << 20

// HandleMCP serves discovery (GET), cleanup (DELETE) and tool calls (POST).
// Per-request Twitch configuration comes from the query string.
func (h *Handlers) HandleMCP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
			return
		}
	}
	writeReply(w, r, h.dispatcher.Handle(r.Context(), r.Method, r.URL.Query(), body))
}

func writeReply(w http.ResponseWriter, r *http.Request, reply mcp.Reply) {
	if reply.Body == nil {
		w.WriteHeader(reply.Status)
		return
	}
	if reply.Status >= 400 {
		telemetry.LoggerWithCorr(r.Context()).Debug("mcp request rejected",
			slog.Int("status", reply.Status), slog.String("component", "http"))
	}
	writeJSON(w, reply.Status, reply.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err))
	}
}
