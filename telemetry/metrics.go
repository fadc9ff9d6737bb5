// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatLinesReceived prometheus.Counter
	RequestsTotal     *prometheus.CounterVec // protocol, method
	ToolInvocations   *prometheus.CounterVec // tool, outcome
	HelixRequests     *prometheus.CounterVec // endpoint, status

	// Histograms (seconds)
	ToolDuration *prometheus.HistogramVec

	// Gauges
	ChatWindowLines prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatLinesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "mcp_chat_lines_received_total", Help: "Chat lines received from the IRC feed"})
		RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "mcp_requests_total", Help: "Inbound MCP requests by protocol and method"}, []string{"protocol", "method"})
		ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "mcp_tool_invocations_total", Help: "Tool invocations by tool and outcome"}, []string{"tool", "outcome"})
		HelixRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "mcp_helix_requests_total", Help: "Twitch Helix API calls by endpoint and HTTP status"}, []string{"endpoint", "status"})
		ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "mcp_tool_duration_seconds", Help: "Tool execution duration seconds", Buckets: prometheus.DefBuckets}, []string{"tool"})
		ChatWindowLines = promauto.NewGauge(prometheus.GaugeOpts{Name: "mcp_chat_window_lines", Help: "Lines currently held in the chat window"})
	})
}

// ObserveChatLine counts a received line and records the window size.
func ObserveChatLine(windowLen int) {
	if ChatLinesReceived != nil {
		ChatLinesReceived.Inc()
	}
	if ChatWindowLines != nil {
		ChatWindowLines.Set(float64(windowLen))
	}
}

// SetChatWindowLines records the window size without counting a new line.
func SetChatWindowLines(n int) {
	if ChatWindowLines != nil {
		ChatWindowLines.Set(float64(n))
	}
}

// CountRequest records one inbound request.
func CountRequest(protocol, method string) {
	if RequestsTotal != nil {
		RequestsTotal.WithLabelValues(protocol, method).Inc()
	}
}

// ObserveTool records a finished tool invocation.
func ObserveTool(tool, outcome string, d time.Duration) {
	if ToolInvocations != nil {
		ToolInvocations.WithLabelValues(tool, outcome).Inc()
	}
	if ToolDuration != nil {
		ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// CountHelix records a Helix call. status 0 means the request never got a response.
func CountHelix(endpoint string, status int) {
	if HelixRequests == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	HelixRequests.WithLabelValues(endpoint, label).Inc()
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
