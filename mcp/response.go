package mcp

import (
	"encoding/json"
	"net/http"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	// CodeConfigRequired signals missing per-request Twitch configuration.
	CodeConfigRequired = -32001
)

// ProtocolVersion is the MCP revision reported by initialize.
const ProtocolVersion = "2025-06-18"

// Reply is what the HTTP layer writes back. A nil Body means no body.
type Reply struct {
	Status int
	Body   any
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func rpcResult(id json.RawMessage, result any) Reply {
	return Reply{Status: http.StatusOK, Body: rpcResponse{JSONRPC: "2.0", ID: nullID(id), Result: result}}
}

func rpcError(id json.RawMessage, code int, msg string) Reply {
	return Reply{Status: http.StatusBadRequest, Body: rpcResponse{JSONRPC: "2.0", ID: nullID(id), Error: &RPCError{Code: code, Message: msg}}}
}

func errorReply(status int, msg string) Reply {
	return Reply{Status: status, Body: map[string]string{"error": msg}}
}

// ContentBlock is one item of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the tools/call result payload.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ServerInfo identifies the server in initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
	Capabilities    struct {
		Tools struct {
			ListChanged bool `json:"listChanged"`
		} `json:"tools"`
	} `json:"capabilities"`
}

type listedTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// DiscoveryDoc answers GET /mcp.
type DiscoveryDoc struct {
	Server         string          `json:"server"`
	Version        string          `json:"version"`
	Description    string          `json:"description"`
	Authentication Authentication  `json:"authentication"`
	Tools          []DiscoveryTool `json:"tools"`
}

// Authentication describes how tool execution is authorized.
type Authentication struct {
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
	LazyLoading bool   `json:"lazy_loading"`
}

// DiscoveryTool is a catalog entry with short parameter summaries.
type DiscoveryTool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}
