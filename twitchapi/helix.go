// Package twitchapi contains a minimal Twitch Helix client for the stream
// management and moderation actions exposed as tools. Credentials are passed
// per call; the client itself holds no token.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/onnwee/twitch-mcp/telemetry"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// maxErrorBody caps how much of a failed response is kept in APIError.
const maxErrorBody = 4 << 10

// ErrNotFound is returned when a lookup yields no data.
var ErrNotFound = errors.New("not found")

// Credentials identify the caller for a single request.
type Credentials struct {
	AuthToken     string
	ClientID      string
	BroadcasterID string
}

// Token returns the access token without the IRC-style "oauth:" prefix.
func (c Credentials) Token() string {
	return strings.TrimPrefix(strings.TrimSpace(c.AuthToken), "oauth:")
}

// APIError is a non-2xx Helix response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("helix %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// HelixClient calls the Helix API. The zero value is usable.
type HelixClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return strings.TrimRight(hc.BaseURL, "/")
	}
	return DefaultBaseURL
}

// http wraps the configured client with a bearer token transport.
func (hc *HelixClient) http(ctx context.Context, creds Credentials) *http.Client {
	if hc.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc.HTTPClient)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token(), TokenType: "Bearer"}))
}

// do sends one Helix request. in is JSON encoded when non-nil; out is decoded
// from a 2xx body when non-nil.
func (hc *HelixClient) do(ctx context.Context, creds Credentials, endpoint, method, path string, query url.Values, in, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "twitchapi", "helix."+endpoint,
		telemetry.HTTPMethodAttr(method),
		attribute.String("helix.endpoint", endpoint),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	u := hc.base() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", creds.ClientID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.http(ctx, creds).Do(req)
	if err != nil {
		telemetry.CountHelix(endpoint, 0)
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	telemetry.CountHelix(endpoint, resp.StatusCode)
	telemetry.SetSpanHTTPStatus(span, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

type titled struct {
	Title string `json:"title"`
}

func titles(in []string) []titled {
	out := make([]titled, len(in))
	for i, s := range in {
		out[i] = titled{Title: s}
	}
	return out
}

type idList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (l idList) first() (string, bool) {
	if len(l.Data) == 0 {
		return "", false
	}
	return l.Data[0].ID, true
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, creds Credentials, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body idList
	if err := hc.do(ctx, creds, "users", http.MethodGet, "/users", url.Values{"login": {login}}, nil, &body); err != nil {
		return "", err
	}
	id, ok := body.first()
	if !ok {
		return "", fmt.Errorf("user %s: %w", login, ErrNotFound)
	}
	return id, nil
}

// CreatePoll starts a poll on the broadcaster's channel and returns its id.
func (hc *HelixClient) CreatePoll(ctx context.Context, creds Credentials, title string, choices []string, durationSec int) (string, error) {
	in := struct {
		BroadcasterID string   `json:"broadcaster_id"`
		Title         string   `json:"title"`
		Choices       []titled `json:"choices"`
		Duration      int      `json:"duration"`
	}{creds.BroadcasterID, title, titles(choices), durationSec}
	var out idList
	if err := hc.do(ctx, creds, "polls", http.MethodPost, "/polls", nil, in, &out); err != nil {
		return "", err
	}
	id, _ := out.first()
	return id, nil
}

// CreatePrediction starts a prediction and returns its id.
func (hc *HelixClient) CreatePrediction(ctx context.Context, creds Credentials, title string, outcomes []string, windowSec int) (string, error) {
	in := struct {
		BroadcasterID    string   `json:"broadcaster_id"`
		Title            string   `json:"title"`
		Outcomes         []titled `json:"outcomes"`
		PredictionWindow int      `json:"prediction_window"`
	}{creds.BroadcasterID, title, titles(outcomes), windowSec}
	var out idList
	if err := hc.do(ctx, creds, "predictions", http.MethodPost, "/predictions", nil, in, &out); err != nil {
		return "", err
	}
	id, _ := out.first()
	return id, nil
}

// Clip is a freshly created clip.
type Clip struct {
	ID      string `json:"id"`
	EditURL string `json:"edit_url"`
}

// CreateClip clips the broadcaster's live stream.
func (hc *HelixClient) CreateClip(ctx context.Context, creds Credentials) (Clip, error) {
	var out struct {
		Data []Clip `json:"data"`
	}
	q := url.Values{"broadcaster_id": {creds.BroadcasterID}}
	if err := hc.do(ctx, creds, "clips", http.MethodPost, "/clips", q, nil, &out); err != nil {
		return Clip{}, err
	}
	if len(out.Data) == 0 {
		return Clip{}, nil
	}
	return out.Data[0], nil
}

// BanUser bans userID, or times them out when durationSec > 0. The
// broadcaster acts as its own moderator.
func (hc *HelixClient) BanUser(ctx context.Context, creds Credentials, userID, reason string, durationSec int) error {
	type banData struct {
		UserID   string `json:"user_id"`
		Reason   string `json:"reason,omitempty"`
		Duration int    `json:"duration,omitempty"`
	}
	in := struct {
		Data banData `json:"data"`
	}{banData{UserID: userID, Reason: reason, Duration: durationSec}}
	q := url.Values{
		"broadcaster_id": {creds.BroadcasterID},
		"moderator_id":   {creds.BroadcasterID},
	}
	return hc.do(ctx, creds, "bans", http.MethodPost, "/moderation/bans", q, in, nil)
}

// UpdateTitle changes the stream title.
func (hc *HelixClient) UpdateTitle(ctx context.Context, creds Credentials, title string) error {
	q := url.Values{"broadcaster_id": {creds.BroadcasterID}}
	return hc.do(ctx, creds, "channels", http.MethodPatch, "/channels", q, map[string]string{"title": title}, nil)
}

// Category is a game or stream category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchCategory returns the best match for name. An exact case-insensitive
// name match is preferred over Helix relevance order.
func (hc *HelixClient) SearchCategory(ctx context.Context, creds Credentials, name string) (Category, error) {
	var out struct {
		Data []Category `json:"data"`
	}
	if err := hc.do(ctx, creds, "search_categories", http.MethodGet, "/search/categories", url.Values{"query": {name}}, nil, &out); err != nil {
		return Category{}, err
	}
	if len(out.Data) == 0 {
		return Category{}, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	for _, c := range out.Data {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return out.Data[0], nil
}

// UpdateCategory sets the channel's game id.
func (hc *HelixClient) UpdateCategory(ctx context.Context, creds Credentials, categoryID string) error {
	q := url.Values{"broadcaster_id": {creds.BroadcasterID}}
	return hc.do(ctx, creds, "channels", http.MethodPatch, "/channels", q, map[string]string{"game_id": categoryID}, nil)
}
