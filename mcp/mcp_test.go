package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/onnwee/twitch-mcp/chat"
	"github.com/onnwee/twitch-mcp/config"
	"github.com/onnwee/twitch-mcp/db"
	"github.com/onnwee/twitch-mcp/testutil"
	"github.com/onnwee/twitch-mcp/twitchapi"
)

type sentMessage struct {
	Channel string
	Text    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{channel, text})
	return nil
}

type fakeAuditor struct {
	mu   sync.Mutex
	recs []db.Invocation
	err  error
}

func (f *fakeAuditor) RecordInvocation(_ context.Context, inv db.Invocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, inv)
	return f.err
}

func (f *fakeAuditor) records() []db.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.Invocation(nil), f.recs...)
}

type fixture struct {
	d       *Dispatcher
	window  *chat.Window
	twitch  *testutil.MockTwitchServer
	sender  *fakeSender
	auditor *fakeAuditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		window:  chat.NewWindow(100),
		twitch:  testutil.NewMockTwitchServer(t),
		sender:  &fakeSender{},
		auditor: &fakeAuditor{},
	}
	helix := &twitchapi.HelixClient{BaseURL: f.twitch.URL + "/helix"}
	f.d = NewDispatcher(f.window, helix, f.sender)
	f.d.Auditor = f.auditor
	return f
}

func validQuery() url.Values {
	return url.Values{
		config.ParamChannel:       {"#MyChannel"},
		config.ParamAuth:          {"oauth:abc123"},
		config.ParamClientID:      {"client-1"},
		config.ParamBroadcasterID: {"1001"},
	}
}

func validSnapshot() config.Snapshot {
	return config.SnapshotFromParams(validQuery())
}

// decodeBody renders a reply body the way the HTTP layer would and decodes it
// generically.
func decodeBody(t *testing.T, r Reply) map[string]any {
	t.Helper()
	raw, err := json.Marshal(r.Body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal body %s: %v", raw, err)
	}
	return out
}

var errBoom = errors.New("boom")
