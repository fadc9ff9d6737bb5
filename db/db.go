// Package db provides the optional Postgres audit store: an archive of chat
// lines seen by the feed and a log of executed tool invocations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/onnwee/twitch-mcp/chat"
)

// Connect opens a Postgres connection and verifies it is reachable.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return database, nil
}

// Invocation is one executed tool call.
type Invocation struct {
	Tool          string
	Channel       string
	Outcome       string
	Result        string
	CorrelationID string
	Duration      time.Duration
	CreatedAt     time.Time
}

// Store persists chat lines and tool invocations.
type Store struct {
	DB *sql.DB
}

// NewStore wraps an open database.
func NewStore(database *sql.DB) *Store { return &Store{DB: database} }

// ArchiveLine stores one chat line.
func (s *Store) ArchiveLine(ctx context.Context, channel string, line chat.Line) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chat_messages(channel, seq, username, message, received_at) VALUES($1,$2,$3,$4,$5)`,
		channel, int64(line.Seq), line.Username, line.Content, line.ReceivedAt)
	if err != nil {
		return fmt.Errorf("archive chat line: %w", err)
	}
	return nil
}

// RecordInvocation stores one tool invocation.
func (s *Store) RecordInvocation(ctx context.Context, inv Invocation) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tool_invocations(tool, channel, outcome, result, correlation_id, duration_ms) VALUES($1,$2,$3,$4,$5,$6)`,
		inv.Tool, inv.Channel, inv.Outcome, inv.Result, inv.CorrelationID, inv.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// RecentInvocations returns up to limit invocations, newest first.
func (s *Store) RecentInvocations(ctx context.Context, limit int) ([]Invocation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT tool, COALESCE(channel,''), outcome, COALESCE(result,''), COALESCE(correlation_id,''), COALESCE(duration_ms,0), created_at
		 FROM tool_invocations ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var ms int64
		if err := rows.Scan(&inv.Tool, &inv.Channel, &inv.Outcome, &inv.Result, &inv.CorrelationID, &ms, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, inv)
	}
	return out, rows.Err()
}

// RecentLines returns the newest archived lines for channel, oldest first.
func (s *Store) RecentLines(ctx context.Context, channel string, limit int) ([]chat.Line, error) {
	if limit <= 0 {
		limit = chat.DefaultCapacity
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT seq, username, message, received_at FROM (
			SELECT id, seq, username, message, received_at FROM chat_messages
			WHERE channel = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Line
	for rows.Next() {
		var l chat.Line
		var seq int64
		if err := rows.Scan(&seq, &l.Username, &l.Content, &l.ReceivedAt); err != nil {
			return nil, err
		}
		l.Seq = uint64(seq)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
