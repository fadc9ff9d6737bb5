package mcp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/twitch-mcp/telemetry"
)

func TestDiscoveryListsCatalogWithoutConfig(t *testing.T) {
	f := newFixture(t)
	r := f.d.Handle(context.Background(), http.MethodGet, url.Values{}, nil)
	if r.Status != http.StatusOK {
		t.Fatalf("status = %d", r.Status)
	}
	doc, ok := r.Body.(DiscoveryDoc)
	if !ok {
		t.Fatalf("body type %T", r.Body)
	}
	var names []string
	for _, tool := range doc.Tools {
		names = append(names, tool.Name)
	}
	want := []string{
		"sendMessageToChat", "createTwitchPoll", "createTwitchPrediction", "createTwitchClip",
		"analyzeChat", "getRecentChatLog", "timeoutUser", "banUser", "updateStreamTitle", "updateStreamCategory",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools (-want +got):\n%s", diff)
	}
	if !doc.Authentication.LazyLoading || !doc.Authentication.Required {
		t.Errorf("authentication = %+v", doc.Authentication)
	}
	if doc.Server != ServerName {
		t.Errorf("server = %q", doc.Server)
	}
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	r := f.d.Handle(context.Background(), http.MethodDelete, nil, nil)
	body := decodeBody(t, r)
	if r.Status != http.StatusOK || body["message"] != "Cleanup completed" {
		t.Fatalf("reply = %d %v", r.Status, body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	r := f.d.Handle(context.Background(), http.MethodPut, nil, []byte(`{}`))
	if r.Status != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", r.Status)
	}
}

func TestRPCWithoutConfig(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "initialize",
			body:   `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				res := body["result"].(map[string]any)
				if res["protocolVersion"] != ProtocolVersion {
					t.Errorf("protocolVersion = %v", res["protocolVersion"])
				}
				info := res["serverInfo"].(map[string]any)
				if info["name"] != "Twitch MCP Server - Eclipse Edition" || info["version"] != ServerVersion {
					t.Errorf("serverInfo = %v", info)
				}
				caps := res["capabilities"].(map[string]any)["tools"].(map[string]any)
				if caps["listChanged"] != true {
					t.Errorf("capabilities = %v", caps)
				}
			},
		},
		{
			name:   "tools/list",
			body:   `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				list := body["result"].(map[string]any)["tools"].([]any)
				if len(list) != 10 {
					t.Fatalf("len(tools) = %d", len(list))
				}
				for _, item := range list {
					tool := item.(map[string]any)
					if tool["name"] != "timeoutUser" {
						continue
					}
					schema := tool["inputSchema"].(map[string]any)
					if schema["type"] != "object" {
						t.Errorf("schema type = %v", schema["type"])
					}
					if diff := cmp.Diff([]any{"usernameOrDescriptor"}, schema["required"]); diff != "" {
						t.Errorf("required (-want +got):\n%s", diff)
					}
				}
			},
		},
		{
			name:   "ping",
			body:   `{"jsonrpc":"2.0","id":3,"method":"ping"}`,
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if diff := cmp.Diff(map[string]any{}, body["result"]); diff != "" {
					t.Errorf("result (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:   "unknown method",
			body:   `{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				e := body["error"].(map[string]any)
				if e["code"] != float64(CodeMethodNotFound) || e["message"] != "Method not found: resources/list" {
					t.Errorf("error = %v", e)
				}
			},
		},
		{
			name:   "tools/call needs config",
			body:   `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"analyzeChat","arguments":{}}}`,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				e := body["error"].(map[string]any)
				if e["code"] != float64(CodeConfigRequired) {
					t.Errorf("code = %v", e["code"])
				}
				if e["message"] != "Missing required parameter: twitch.channel" {
					t.Errorf("message = %v", e["message"])
				}
			},
		},
		{
			name:   "tools/call without params",
			body:   `{"jsonrpc":"2.0","id":6,"method":"tools/call"}`,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				e := body["error"].(map[string]any)
				if e["code"] != float64(CodeInvalidParams) {
					t.Errorf("code = %v", e["code"])
				}
			},
		},
		{
			name:   "wrong protocol version",
			body:   `{"jsonrpc":"1.0","id":11,"method":"ping"}`,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				e := body["error"].(map[string]any)
				if e["code"] != float64(CodeInvalidRequest) {
					t.Errorf("code = %v", e["code"])
				}
				if body["id"] != float64(11) {
					t.Errorf("id = %v", body["id"])
				}
			},
		},
		{
			name:   "parse error",
			body:   `{"jsonrpc":"2.0",`,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				e := body["error"].(map[string]any)
				if e["code"] != float64(CodeParseError) {
					t.Errorf("code = %v", e["code"])
				}
				if v, ok := body["id"]; !ok || v != nil {
					t.Errorf("id = %v (present %v)", v, ok)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.d.Handle(context.Background(), http.MethodPost, url.Values{}, []byte(tt.body))
			if r.Status != tt.status {
				t.Fatalf("status = %d, want %d", r.Status, tt.status)
			}
			body := decodeBody(t, r)
			if body["jsonrpc"] != "2.0" {
				t.Errorf("jsonrpc = %v", body["jsonrpc"])
			}
			tt.check(t, body)
		})
	}
}

func TestNotificationsAccepted(t *testing.T) {
	f := newFixture(t)
	r := f.d.Handle(context.Background(), http.MethodPost, nil, []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if r.Status != http.StatusAccepted || r.Body != nil {
		t.Fatalf("reply = %+v", r)
	}
}

func TestRPCEchoesID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want any
	}{
		{"number", `42`, float64(42)},
		{"string", `"req-7"`, "req-7"},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := `{"jsonrpc":"2.0","id":` + tt.id + `,"method":"ping"}`
			got := decodeBody(t, f.d.Handle(context.Background(), http.MethodPost, nil, []byte(body)))
			if got["id"] != tt.want {
				t.Errorf("id = %#v, want %#v", got["id"], tt.want)
			}
		})
	}
}

func TestRPCToolsCall(t *testing.T) {
	f := newFixture(t)
	f.window.Append("viewer1", "hello speedrun chat")

	body := `{"jsonrpc":"2.0","id":"c1","method":"tools/call","params":{"name":"getRecentChatLog","arguments":{}}}`
	r := f.d.Handle(context.Background(), http.MethodPost, validQuery(), []byte(body))
	if r.Status != http.StatusOK {
		t.Fatalf("status = %d body %v", r.Status, decodeBody(t, r))
	}
	got := decodeBody(t, r)
	want := map[string]any{
		"jsonrpc": "2.0",
		"id":      "c1",
		"result": map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "viewer1: hello speedrun chat"}},
			"isError": false,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reply (-want +got):\n%s", diff)
	}
}

func TestRPCToolsCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		params string
		want   string
	}{
		{"unknown tool", `{"name":"nope","arguments":{}}`, "Unknown tool: nope"},
		{"missing name", `{"arguments":{}}`, "Tool name is required"},
		{"missing argument", `{"name":"updateStreamTitle","arguments":{}}`, `updateStreamTitle: invalid parameter "title": missing required parameter`},
		{"mistyped argument", `{"name":"createTwitchPoll","arguments":{"title":"t","choices":"a,b","duration":"soon"}}`, `createTwitchPoll: invalid parameter "duration": expected integer`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":` + tt.params + `}`
			r := f.d.Handle(context.Background(), http.MethodPost, validQuery(), []byte(body))
			if r.Status != http.StatusBadRequest {
				t.Fatalf("status = %d", r.Status)
			}
			e := decodeBody(t, r)["error"].(map[string]any)
			if e["code"] != float64(CodeInvalidParams) || e["message"] != tt.want {
				t.Errorf("error = %v", e)
			}
			if n := len(f.auditor.records()); n != 0 {
				t.Errorf("audited %d invalid calls", n)
			}
		})
	}
}

func TestCustomProtocol(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		f := newFixture(t)
		q := validQuery()
		q.Del("twitch.auth")
		r := f.d.Handle(context.Background(), http.MethodPost, q, []byte(`{"tool":"analyzeChat"}`))
		body := decodeBody(t, r)
		if r.Status != http.StatusBadRequest || body["error"] != "Missing required parameter: twitch.auth (OAuth token)" {
			t.Fatalf("reply = %d %v", r.Status, body)
		}
	})

	t.Run("missing tool", func(t *testing.T) {
		f := newFixture(t)
		r := f.d.Handle(context.Background(), http.MethodPost, validQuery(), []byte(`{"params":{}}`))
		body := decodeBody(t, r)
		if r.Status != http.StatusBadRequest || body["error"] != "Tool name is required" {
			t.Fatalf("reply = %d %v", r.Status, body)
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		f := newFixture(t)
		r := f.d.Handle(context.Background(), http.MethodPost, validQuery(), []byte(`{"tool":"dance"}`))
		body := decodeBody(t, r)
		if r.Status != http.StatusBadRequest || body["error"] != "Unknown tool: dance" {
			t.Fatalf("reply = %d %v", r.Status, body)
		}
	})

	for _, body := range []string{`{"tool":"analyzeChat","params":"oops"}`, `{"tool":5}`} {
		t.Run("malformed "+body, func(t *testing.T) {
			f := newFixture(t)
			r := f.d.Handle(context.Background(), http.MethodPost, validQuery(), []byte(body))
			got := decodeBody(t, r)
			if r.Status != http.StatusBadRequest {
				t.Fatalf("status = %d", r.Status)
			}
			if _, ok := got["jsonrpc"]; ok {
				t.Errorf("custom failure answered with a JSON-RPC envelope: %v", got)
			}
			if msg, _ := got["error"].(string); msg == "" {
				t.Errorf("error = %v, want message string", got["error"])
			}
		})
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.window.Append("alice", "speedrun attempt tonight")
		r := f.d.Handle(context.Background(), http.MethodPost, validQuery(), []byte(`{"tool":"analyzeChat","params":{}}`))
		body := decodeBody(t, r)
		if r.Status != http.StatusOK {
			t.Fatalf("reply = %d %v", r.Status, body)
		}
		result, _ := body["result"].(string)
		if !strings.HasPrefix(result, "Chat Analysis:") {
			t.Errorf("result = %q", result)
		}
	})
}

func TestMetricLabelsIgnoreCallerNames(t *testing.T) {
	telemetry.Init()
	f := newFixture(t)
	requests := promtestutil.CollectAndCount(telemetry.RequestsTotal)
	toolSeries := promtestutil.CollectAndCount(telemetry.ToolInvocations)
	durations := promtestutil.CollectAndCount(telemetry.ToolDuration)

	const junk = 200
	for i := 0; i < junk; i++ {
		name := fmt.Sprintf("junk-%d", i)
		f.d.Handle(context.Background(), http.MethodPost, url.Values{}, []byte(`{"tool":"`+name+`","params":{}}`))
		f.d.Handle(context.Background(), http.MethodPost, validQuery(), []byte(`{"tool":"`+name+`"}`))
		f.d.Handle(context.Background(), http.MethodPost, nil, []byte(`{"jsonrpc":"2.0","id":1,"method":"`+name+`"}`))
		f.d.Handle(context.Background(), http.MethodPost, validQuery(),
			[]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"`+name+`","arguments":{}}}`))
	}

	// custom/unknown, jsonrpc/unknown and jsonrpc/tools/call at most.
	if grown := promtestutil.CollectAndCount(telemetry.RequestsTotal) - requests; grown > 3 {
		t.Errorf("mcp_requests_total grew by %d series", grown)
	}
	if grown := promtestutil.CollectAndCount(telemetry.ToolInvocations) - toolSeries; grown > 1 {
		t.Errorf("mcp_tool_invocations_total grew by %d series", grown)
	}
	if grown := promtestutil.CollectAndCount(telemetry.ToolDuration) - durations; grown > 1 {
		t.Errorf("mcp_tool_duration_seconds grew by %d series", grown)
	}
	if got := promtestutil.ToFloat64(telemetry.RequestsTotal.WithLabelValues("custom", "unknown")); got < 2*junk {
		t.Errorf("custom/unknown = %v, want >= %d", got, 2*junk)
	}
}
