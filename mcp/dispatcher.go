// Package mcp decodes requests to the /mcp endpoint, validates per-request
// Twitch configuration lazily, routes JSON-RPC and custom calls, and executes
// tools against the chat window and the Helix API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/onnwee/twitch-mcp/chat"
	"github.com/onnwee/twitch-mcp/config"
	"github.com/onnwee/twitch-mcp/db"
	"github.com/onnwee/twitch-mcp/moderation"
	"github.com/onnwee/twitch-mcp/telemetry"
	"github.com/onnwee/twitch-mcp/tools"
	"github.com/onnwee/twitch-mcp/twitchapi"
)

// Server identity reported by discovery and initialize.
const (
	ServerName        = "Twitch MCP Server"
	ServerVersion     = "1.0.0"
	ServerDescription = "AI integration for Twitch chat moderation, stream management, and viewer engagement"
	rpcServerName     = "Twitch MCP Server - Eclipse Edition"
)

// Platform is the subset of the Helix API the tools call.
type Platform interface {
	GetUserID(ctx context.Context, creds twitchapi.Credentials, login string) (string, error)
	CreatePoll(ctx context.Context, creds twitchapi.Credentials, title string, choices []string, durationSec int) (string, error)
	CreatePrediction(ctx context.Context, creds twitchapi.Credentials, title string, outcomes []string, windowSec int) (string, error)
	CreateClip(ctx context.Context, creds twitchapi.Credentials) (twitchapi.Clip, error)
	BanUser(ctx context.Context, creds twitchapi.Credentials, userID, reason string, durationSec int) error
	UpdateTitle(ctx context.Context, creds twitchapi.Credentials, title string) error
	SearchCategory(ctx context.Context, creds twitchapi.Credentials, name string) (twitchapi.Category, error)
	UpdateCategory(ctx context.Context, creds twitchapi.Credentials, categoryID string) error
}

// Sender posts chat messages.
type Sender interface {
	Send(channel, text string) error
}

// Auditor records executed tool invocations.
type Auditor interface {
	RecordInvocation(ctx context.Context, inv db.Invocation) error
}

// Dispatcher handles /mcp requests. It holds no per-request state; each call
// carries its own configuration snapshot.
type Dispatcher struct {
	registry *tools.Registry
	window   *chat.Window
	platform Platform
	chat     Sender

	// Auditor is optional; audit failures are logged and never surfaced.
	Auditor Auditor
}

// NewDispatcher wires a dispatcher over the default tool catalog. sender may
// be nil when no chat feed runs; sendMessageToChat then reports a failure.
func NewDispatcher(window *chat.Window, platform Platform, sender Sender) *Dispatcher {
	return &Dispatcher{
		registry: tools.Default(),
		window:   window,
		platform: platform,
		chat:     sender,
	}
}

// heuristics reads only the lines of the caller's channel.
func (d *Dispatcher) heuristics(snap config.Snapshot) *moderation.Heuristics {
	return moderation.New(d.window.Channel(snap.ChannelName()))
}

func logger(ctx context.Context) *slog.Logger {
	return telemetry.LoggerWithCorr(ctx).With(slog.String("component", "mcp"))
}

// Handle decodes and serves one HTTP request to /mcp.
func (d *Dispatcher) Handle(ctx context.Context, httpMethod string, query url.Values, body []byte) Reply {
	req, err := Decode(httpMethod, body)
	if err != nil {
		return d.decodeError(ctx, err)
	}
	return d.Serve(ctx, req, query)
}

func (d *Dispatcher) decodeError(ctx context.Context, err error) Reply {
	var (
		perr *ParseError
		ierr *InvalidRequestError
		cerr *CustomCallError
	)
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		return errorReply(http.StatusMethodNotAllowed, "Method not allowed")
	case errors.Is(err, ErrToolRequired):
		telemetry.CountRequest("custom", "invalid")
		return errorReply(http.StatusBadRequest, "Tool name is required")
	case errors.As(err, &cerr):
		telemetry.CountRequest("custom", "invalid")
		return errorReply(http.StatusBadRequest, cerr.Error())
	case errors.As(err, &ierr):
		telemetry.CountRequest("jsonrpc", "invalid_request")
		return rpcError(ierr.ID, CodeInvalidRequest, ierr.Error())
	case errors.As(err, &perr):
		telemetry.CountRequest("jsonrpc", "parse_error")
		logger(ctx).Debug("undecodable request", slog.Any("err", err))
		return rpcError(nil, CodeParseError, perr.Error())
	}
	return errorReply(http.StatusBadRequest, err.Error())
}

// Serve routes a decoded request.
func (d *Dispatcher) Serve(ctx context.Context, req Request, query url.Values) Reply {
	switch r := req.(type) {
	case Discovery:
		telemetry.CountRequest(r.protocol(), "GET")
		return Reply{Status: http.StatusOK, Body: d.Discovery()}
	case Cleanup:
		telemetry.CountRequest(r.protocol(), "DELETE")
		return Reply{Status: http.StatusOK, Body: map[string]string{"message": "Cleanup completed"}}
	case CustomCall:
		telemetry.CountRequest(r.protocol(), d.toolLabel(r.Tool))
		return d.HandleCustom(ctx, r, query)
	case RPCCall:
		telemetry.CountRequest(r.protocol(), rpcMethodLabel(r.Method))
		return d.HandleRPC(ctx, r, query)
	}
	return errorReply(http.StatusBadRequest, "unsupported request")
}

// unknownLabel replaces caller-chosen names in metric labels and span names.
const unknownLabel = "unknown"

var rpcMethods = map[string]bool{
	"initialize": true,
	"tools/list": true,
	"tools/call": true,
	"ping":       true,
}

func rpcMethodLabel(method string) string {
	switch {
	case rpcMethods[method]:
		return method
	case strings.HasPrefix(method, "notifications/"):
		return "notifications"
	}
	return unknownLabel
}

// toolLabel returns name when it is a registered tool.
func (d *Dispatcher) toolLabel(name string) string {
	if _, ok := d.registry.Lookup(name); ok {
		return name
	}
	return unknownLabel
}

// Discovery builds the catalog document. It needs neither configuration nor
// chat access.
func (d *Dispatcher) Discovery() DiscoveryDoc {
	specs := d.registry.List()
	doc := DiscoveryDoc{
		Server:      ServerName,
		Version:     ServerVersion,
		Description: ServerDescription,
		Authentication: Authentication{
			Required:    true,
			Type:        "oauth",
			Description: "Twitch OAuth token and client credentials required for tool execution",
			LazyLoading: true,
		},
		Tools: make([]DiscoveryTool, 0, len(specs)),
	}
	for _, s := range specs {
		doc.Tools = append(doc.Tools, DiscoveryTool{Name: s.Name, Description: s.Description, Parameters: s.ParameterSummary()})
	}
	return doc
}

// HandleCustom executes a simplified-protocol call.
func (d *Dispatcher) HandleCustom(ctx context.Context, call CustomCall, query url.Values) Reply {
	snap := config.SnapshotFromParams(query)
	if err := snap.Validate(); err != nil {
		return errorReply(http.StatusBadRequest, err.Error())
	}
	text, err := d.Invoke(ctx, snap, Invocation{Tool: call.Tool, Args: call.Params})
	if err != nil {
		return errorReply(http.StatusBadRequest, invocationErrorMessage(call.Tool, err))
	}
	return Reply{Status: http.StatusOK, Body: map[string]string{"result": text}}
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// HandleRPC executes a JSON-RPC call. initialize, tools/list and ping need no
// configuration; tools/call does.
func (d *Dispatcher) HandleRPC(ctx context.Context, call RPCCall, query url.Values) Reply {
	telemetry.AnnotateSpan(ctx, telemetry.RPCMethodAttr(rpcMethodLabel(call.Method)))
	switch {
	case call.Method == "initialize":
		var res initializeResult
		res.ProtocolVersion = ProtocolVersion
		res.ServerInfo = ServerInfo{Name: rpcServerName, Version: ServerVersion}
		res.Capabilities.Tools.ListChanged = true
		return rpcResult(call.ID, res)

	case call.Method == "tools/list":
		specs := d.registry.List()
		list := make([]listedTool, 0, len(specs))
		for _, s := range specs {
			list = append(list, listedTool{Name: s.Name, Description: s.Description, InputSchema: s.InputSchema()})
		}
		return rpcResult(call.ID, map[string]any{"tools": list})

	case call.Method == "ping":
		return rpcResult(call.ID, map[string]any{})

	case strings.HasPrefix(call.Method, "notifications/"):
		return Reply{Status: http.StatusAccepted}

	case call.Method == "tools/call":
		return d.toolsCall(ctx, call, query)
	}
	return rpcError(call.ID, CodeMethodNotFound, "Method not found: "+call.Method)
}

func (d *Dispatcher) toolsCall(ctx context.Context, call RPCCall, query url.Values) Reply {
	if len(call.Params) == 0 || string(call.Params) == "null" {
		return rpcError(call.ID, CodeInvalidParams, "Invalid params")
	}
	var p callParams
	if err := json.Unmarshal(call.Params, &p); err != nil {
		return rpcError(call.ID, CodeInvalidParams, "Invalid params")
	}
	if strings.TrimSpace(p.Name) == "" {
		return rpcError(call.ID, CodeInvalidParams, "Tool name is required")
	}
	args, err := decodeObject(p.Arguments)
	if err != nil {
		return rpcError(call.ID, CodeInvalidParams, "Invalid arguments: "+err.Error())
	}

	snap := config.SnapshotFromParams(query)
	if err := snap.Validate(); err != nil {
		return rpcError(call.ID, CodeConfigRequired, err.Error())
	}

	text, err := d.Invoke(ctx, snap, Invocation{Tool: p.Name, Args: args})
	if err != nil {
		return rpcError(call.ID, CodeInvalidParams, invocationErrorMessage(p.Name, err))
	}
	return rpcResult(call.ID, textResult(text))
}

func invocationErrorMessage(tool string, err error) string {
	if errors.Is(err, tools.ErrUnknownTool) {
		return "Unknown tool: " + tool
	}
	return err.Error()
}
