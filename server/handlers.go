package server

import (
	"context"
	"time"

	"github.com/onnwee/twitch-mcp/chat"
	"github.com/onnwee/twitch-mcp/db"
	"github.com/onnwee/twitch-mcp/mcp"
)

// FeedStatus reports the state of the chat connection.
type FeedStatus interface {
	Connected() bool
	Channels() []string
}

// AuditLog is the persistence the HTTP layer reads from.
type AuditLog interface {
	Ping(ctx context.Context) error
	RecentInvocations(ctx context.Context, limit int) ([]db.Invocation, error)
}

// Options holds the server dependencies. Feed and Audit are optional.
type Options struct {
	Dispatcher *mcp.Dispatcher
	Window     *chat.Window
	Feed       FeedStatus
	Audit      AuditLog

	// AdminToken overrides ADMIN_TOKEN for the /admin endpoints.
	AdminToken string
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	dispatcher *mcp.Dispatcher
	window     *chat.Window
	feed       FeedStatus
	audit      AuditLog
	started    time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(opts Options) *Handlers {
	return &Handlers{
		dispatcher: opts.Dispatcher,
		window:     opts.Window,
		feed:       opts.Feed,
		audit:      opts.Audit,
		started:    time.Now(),
	}
}
