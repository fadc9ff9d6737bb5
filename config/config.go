// Package config loads process configuration from environment variables and an
// optional YAML file, and parses the per-request Twitch credentials that
// callers attach to tool invocations.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/onnwee/twitch-mcp/chat"
)

// Config is process-wide configuration. It never carries per-request
// credentials; those arrive as a Snapshot with each request.
type Config struct {
	Twitch TwitchConfig `yaml:"twitch"`
	HTTP   HTTPConfig   `yaml:"http"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	Chat   ChatConfig   `yaml:"chat"`
}

// TwitchConfig configures the chat feed. Without an OAuth token the feed
// connects anonymously and cannot send.
type TwitchConfig struct {
	Channels              []string `yaml:"channels"`
	BotUsername           string   `yaml:"username"`
	OAuthToken            string   `yaml:"oauth"`
	ShowConnectionMessage bool     `yaml:"show_connection_message"`
}

type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	AdminToken string `yaml:"admin_token"`
}

type DBConfig struct {
	// DSN enables the Postgres audit store when set.
	DSN string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ChatConfig struct {
	WindowSize int `yaml:"window_size"`
}

// Load reads environment variables, then overlays the YAML file at path when
// path is non-empty. Keys present in the file win over the environment.
// Command-line flags are applied on top by the caller.
func Load(path string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	cfg.Twitch.Channels = SplitChannels(os.Getenv("TWITCH_CHANNEL"))
	cfg.Twitch.BotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.Twitch.OAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.Twitch.ShowConnectionMessage = true
	if v := os.Getenv("SHOW_CONNECTION_MESSAGE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHOW_CONNECTION_MESSAGE: %w", err)
		}
		cfg.Twitch.ShowConnectionMessage = b
	}

	cfg.HTTP.Addr = os.Getenv("HTTP_ADDR")
	cfg.HTTP.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.Log.Level = os.Getenv("LOG_LEVEL")
	cfg.Log.Format = os.Getenv("LOG_FORMAT")

	if v := os.Getenv("CHAT_WINDOW_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAT_WINDOW_SIZE: %w", err)
		}
		cfg.Chat.WindowSize = n
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Chat.WindowSize == 0 {
		c.Chat.WindowSize = chat.DefaultCapacity
	}
}

// Validate checks process settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Chat.WindowSize < 0 {
		return errors.New("chat window size must not be negative")
	}
	if c.Twitch.OAuthToken != "" && len(c.Twitch.Channels) == 0 {
		return errors.New("twitch oauth token set but no channel configured")
	}
	return nil
}

// SplitChannels parses a comma separated channel list.
func SplitChannels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
