package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/twitch-mcp/telemetry"
)

// ConnectionMessage is announced in each joined channel when enabled.
const ConnectionMessage = "Twitch MCP Server connected"

const (
	archiveQueueSize = 256
	archiveTimeout   = 5 * time.Second
)

var (
	// ErrNotConnected is returned by Send before the IRC connection is up.
	ErrNotConnected = errors.New("chat feed not connected")
	// ErrReadOnly is returned by Send when the feed connected anonymously.
	ErrReadOnly = errors.New("chat feed is read-only: no bot oauth token configured")
)

// Archiver persists chat lines as they arrive. Implementations must be safe for
// concurrent use.
type Archiver interface {
	ArchiveLine(ctx context.Context, channel string, line Line) error
}

// FeedConfig describes the IRC identity and channels for a Feed.
type FeedConfig struct {
	Channels   []string
	Username   string
	OAuthToken string
	Announce   bool
}

// ircClient is the subset of *twitch.Client used by the feed.
type archived struct {
	channel string
	line    Line
}

type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	Join(channels ...string)
	Say(channel, text string)
	Connect() error
	Disconnect() error
}

// Feed connects to Twitch chat and keeps a Window populated.
type Feed struct {
	cfg     FeedConfig
	window  *Window
	archive Archiver
	queue   chan archived
	dial    func(username, oauth string) ircClient

	mu        sync.Mutex
	client    ircClient
	joined    map[string]bool
	connected atomic.Bool
}

// NewFeed returns a feed that appends to window. archive may be nil.
func NewFeed(cfg FeedConfig, window *Window, archive Archiver) *Feed {
	chans := make([]string, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if ch = normalizeChannel(ch); ch != "" {
			chans = append(chans, ch)
		}
	}
	cfg.Channels = chans
	if cfg.Username == "" && len(chans) > 0 {
		cfg.Username = chans[0]
	}
	if cfg.OAuthToken != "" && !strings.HasPrefix(cfg.OAuthToken, "oauth:") {
		cfg.OAuthToken = "oauth:" + cfg.OAuthToken
	}
	return &Feed{
		cfg:     cfg,
		window:  window,
		archive: archive,
		queue:   make(chan archived, archiveQueueSize),
		joined:  make(map[string]bool),
		dial: func(username, oauth string) ircClient {
			if oauth == "" {
				return twitch.NewAnonymousClient()
			}
			return twitch.NewClient(username, oauth)
		},
	}
}

// Start connects and blocks until ctx is cancelled. Connection failures are
// logged rather than returned so the HTTP surface keeps serving without chat.
func (f *Feed) Start(ctx context.Context) error {
	if len(f.cfg.Channels) == 0 && f.cfg.OAuthToken == "" {
		slog.Info("chat feed disabled: no channels or bot credentials configured", slog.String("component", "chat_feed"))
		return nil
	}

	if f.archive != nil {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.runArchiver(ctx)
		}()
		defer wg.Wait()
	}

	client := f.dial(f.cfg.Username, f.cfg.OAuthToken)
	client.OnConnect(func() {
		slog.Info("connected to twitch irc", slog.Any("channels", f.cfg.Channels), slog.Bool("read_only", f.cfg.OAuthToken == ""), slog.String("component", "chat_feed"))
		if f.cfg.Announce && f.cfg.OAuthToken != "" {
			for _, ch := range f.cfg.Channels {
				client.Say(ch, ConnectionMessage)
			}
		}
		f.connected.Store(true)
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		f.handlePrivateMessage(ctx, msg)
	})

	f.mu.Lock()
	f.client = client
	for _, ch := range f.cfg.Channels {
		f.joined[ch] = true
	}
	f.mu.Unlock()
	if len(f.cfg.Channels) > 0 {
		client.Join(f.cfg.Channels...)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- client.Connect() }()

	select {
	case <-ctx.Done():
		f.connected.Store(false)
		slog.Info("disconnecting from twitch irc", slog.String("component", "chat_feed"))
		_ = client.Disconnect()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			slog.Warn("twitch irc did not close in time", slog.String("component", "chat_feed"))
		}
		return nil
	case err := <-errCh:
		f.connected.Store(false)
		if err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
			slog.Error("twitch chat connect error", slog.Any("err", err), slog.String("component", "chat_feed"))
		}
		return nil
	}
}

func (f *Feed) handlePrivateMessage(ctx context.Context, msg twitch.PrivateMessage) {
	name := msg.User.Name
	if name == "" {
		name = strings.ToLower(msg.User.DisplayName)
	}
	line := f.window.AppendTo(msg.Channel, name, msg.Message)
	telemetry.ObserveChatLine(f.window.Len())
	if f.archive == nil {
		return
	}
	// The IRC read loop must not wait on the database.
	select {
	case f.queue <- archived{channel: line.Channel, line: line}:
	case <-ctx.Done():
	default:
		slog.Warn("archive queue full, dropping chat line", slog.String("channel", line.Channel), slog.String("component", "chat_feed"))
	}
}

// runArchiver writes queued lines until ctx is cancelled, then flushes what is
// already queued.
func (f *Feed) runArchiver(ctx context.Context) {
	for {
		select {
		case a := <-f.queue:
			f.archiveOne(context.WithoutCancel(ctx), a)
		case <-ctx.Done():
			for {
				select {
				case a := <-f.queue:
					f.archiveOne(context.WithoutCancel(ctx), a)
				default:
					return
				}
			}
		}
	}
}

func (f *Feed) archiveOne(ctx context.Context, a archived) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()
	if err := f.archive.ArchiveLine(ctx, a.channel, a.line); err != nil {
		slog.Warn("failed to archive chat line", slog.Any("err", err), slog.String("component", "chat_feed"))
	}
}

// Send posts text to channel, joining it first if needed.
func (f *Feed) Send(channel, text string) error {
	if f.cfg.OAuthToken == "" {
		return ErrReadOnly
	}
	channel = normalizeChannel(channel)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil || !f.connected.Load() {
		return ErrNotConnected
	}
	if !f.joined[channel] {
		f.client.Join(channel)
		f.joined[channel] = true
	}
	f.client.Say(channel, text)
	return nil
}

// Connected reports whether the IRC connection is currently up.
func (f *Feed) Connected() bool { return f.connected.Load() }

// Channels returns the channels joined at startup.
func (f *Feed) Channels() []string {
	return append([]string(nil), f.cfg.Channels...)
}

func normalizeChannel(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}
