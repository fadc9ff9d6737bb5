package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/twitch-mcp/telemetry"
)

// HandleAdminChatClear empties the chat window.
func (h *Handlers) HandleAdminChatClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	dropped := h.window.Len()
	h.window.Clear()
	telemetry.SetChatWindowLines(0)
	telemetry.LoggerWithCorr(r.Context()).Info("chat window cleared", slog.Int("dropped", dropped), slog.String("component", "admin"))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "dropped": dropped})
}

type invocationRecord struct {
	Tool          string `json:"tool"`
	Channel       string `json:"channel"`
	Outcome       string `json:"outcome"`
	Result        string `json:"result"`
	CorrelationID string `json:"correlation_id"`
	DurationMS    int64  `json:"duration_ms"`
	CreatedAt     string `json:"created_at"`
}

// HandleAdminInvocations lists recent audited tool invocations, newest first.
func (h *Handlers) HandleAdminInvocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.audit == nil {
		http.Error(w, "audit log disabled", http.StatusNotFound)
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	invs, err := h.audit.RecentInvocations(r.Context(), limit)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list invocations failed", slog.Any("err", err), slog.String("component", "admin"))
		http.Error(w, "failed to list invocations", http.StatusInternalServerError)
		return
	}
	out := make([]invocationRecord, 0, len(invs))
	for _, inv := range invs {
		out = append(out, invocationRecord{
			Tool:          inv.Tool,
			Channel:       inv.Channel,
			Outcome:       inv.Outcome,
			Result:        inv.Result,
			CorrelationID: inv.CorrelationID,
			DurationMS:    inv.Duration.Milliseconds(),
			CreatedAt:     inv.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
