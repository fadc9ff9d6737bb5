// Command twitch-mcp serves Twitch tools to AI assistants over the Model
// Context Protocol. It:
//   - Loads configuration from env, an optional YAML file and flags.
//   - Keeps a rolling window of recent chat from Twitch IRC.
//   - Optionally archives chat and audits tool calls in Postgres.
//   - Exposes /mcp plus /healthz, /readyz, /status and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/twitch-mcp/chat"
	"github.com/onnwee/twitch-mcp/config"
	"github.com/onnwee/twitch-mcp/db"
	"github.com/onnwee/twitch-mcp/mcp"
	"github.com/onnwee/twitch-mcp/server"
	"github.com/onnwee/twitch-mcp/telemetry"
	"github.com/onnwee/twitch-mcp/twitchapi"
)

var (
	configPath string
	channel    string
	username   string
	oauthToken string
	addr       string
	dsn        string
	logLevel   string
	logFormat  string
	windowSize int
	announce   bool
)

var rootCmd = &cobra.Command{
	Use:   "twitch-mcp",
	Short: "Twitch MCP server: chat moderation, stream management and viewer engagement tools",
	Long: `twitch-mcp exposes Twitch chat and Helix operations as MCP tools.

Twitch API credentials are supplied per request as query parameters
(twitch.channel, twitch.auth, twitch.clientId, twitch.broadcasterId).
The flags below only configure the process: the chat feed, HTTP listener,
optional Postgres audit store and logging.

Precedence: flags > config file > environment.`,
	SilenceUsage: true,
	RunE:         run,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres audit schema",
}

var migrateUpCmd = &cobra.Command{
	Use:          "up",
	Short:        "Apply all pending migrations",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, db.Migrate)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:          "down",
	Short:        "Roll back the most recent migration (drops audit data)",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, db.MigrateDown)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:          "version",
	Short:        "Print the current schema version",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, func(database *sql.DB) error {
			version, dirty, err := db.MigrationVersion(database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to YAML config file (env CONFIG_PATH)")
	pf.StringVar(&dsn, "db-dsn", "", "Postgres DSN; enables chat archive and audit log")

	f := rootCmd.Flags()
	f.StringVar(&channel, "channel", "", "comma separated channels to read chat from")
	f.StringVar(&username, "username", "", "bot username for chat")
	f.StringVar(&oauthToken, "oauth", "", "bot OAuth token for chat; read-only when empty")
	f.StringVar(&addr, "addr", "", "HTTP listen address")
	f.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	f.StringVar(&logFormat, "log-format", "", "text|json")
	f.IntVar(&windowSize, "window", 0, "number of recent chat lines kept")
	f.BoolVar(&announce, "announce", true, "post a connection message in each channel")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves env, file and flags in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("channel") {
		cfg.Twitch.Channels = config.SplitChannels(channel)
	}
	if flags.Changed("username") {
		cfg.Twitch.BotUsername = username
	}
	if flags.Changed("oauth") {
		cfg.Twitch.OAuthToken = oauthToken
	}
	if flags.Changed("announce") {
		cfg.Twitch.ShowConnectionMessage = announce
	}
	if flags.Changed("addr") {
		cfg.HTTP.Addr = addr
	}
	if flags.Changed("db-dsn") {
		cfg.DB.DSN = dsn
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("window") {
		cfg.Chat.WindowSize = windowSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) {
	lvl := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", cfg.Format))
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.Log)

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("twitch-mcp", mcp.ServerVersion)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	window := chat.NewWindow(cfg.Chat.WindowSize)

	var store *db.Store
	if cfg.DB.DSN != "" {
		database, err := db.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(database); err != nil {
			return fmt.Errorf("migrate db: %w", err)
		}
		store = db.NewStore(database)
		seedWindow(ctx, store, window, cfg.Twitch.Channels)
	} else {
		slog.Info("no DB_DSN configured; chat archive and audit log disabled", slog.String("component", "db"))
	}

	var archiver chat.Archiver
	if store != nil {
		archiver = store
	}
	feed := chat.NewFeed(chat.FeedConfig{
		Channels:   cfg.Twitch.Channels,
		Username:   cfg.Twitch.BotUsername,
		OAuthToken: cfg.Twitch.OAuthToken,
		Announce:   cfg.Twitch.ShowConnectionMessage,
	}, window, archiver)

	dispatcher := mcp.NewDispatcher(window, newHelixClient(), feed)

	opts := server.Options{
		Dispatcher: dispatcher,
		Window:     window,
		AdminToken: cfg.HTTP.AdminToken,
	}
	if len(cfg.Twitch.Channels) > 0 || cfg.Twitch.OAuthToken != "" {
		opts.Feed = feed
	}
	if store != nil {
		dispatcher.Auditor = store
		opts.Audit = store
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Start(gctx) })
	g.Go(func() error { return server.Start(gctx, opts, cfg.HTTP.Addr) })

	err = g.Wait()
	slog.Info("shutting down")
	return err
}

// newHelixClient returns a client without its own timeout; each Helix call is
// bounded by the inbound request's context.
func newHelixClient() *twitchapi.HelixClient {
	return &twitchapi.HelixClient{}
}

var errNoDSN = errors.New("no database configured: set DB_DSN or --db-dsn")

// withDatabase opens the configured database for a maintenance command.
func withDatabase(cmd *cobra.Command, fn func(*sql.DB) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.Log)
	if cfg.DB.DSN == "" {
		return errNoDSN
	}
	database, err := db.Connect(context.Background(), cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()
	return fn(database)
}

// seedWindow restores the most recent archived lines of the first channel so
// moderation context survives a restart.
func seedWindow(ctx context.Context, store *db.Store, window *chat.Window, channels []string) {
	if len(channels) == 0 {
		return
	}
	ch := strings.ToLower(strings.TrimPrefix(channels[0], "#"))
	lines, err := store.RecentLines(ctx, ch, window.Cap())
	if err != nil {
		slog.Warn("failed to seed chat window", slog.Any("err", err), slog.String("component", "chat"))
		return
	}
	for _, l := range lines {
		window.AppendTo(ch, l.Username, l.Content)
	}
	telemetry.SetChatWindowLines(window.Len())
	slog.Info("chat window seeded", slog.Int("lines", len(lines)), slog.String("channel", ch))
}
