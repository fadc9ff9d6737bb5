package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Request is one decoded call to the /mcp endpoint: Discovery, Cleanup,
// CustomCall or RPCCall.
type Request interface {
	protocol() string
}

// Discovery asks for the tool catalog. It never needs configuration.
type Discovery struct{}

// Cleanup acknowledges a client session teardown. No state changes.
type Cleanup struct{}

// CustomCall is the simplified protocol: {"tool": "...", "params": {...}}.
type CustomCall struct {
	Tool   string
	Params map[string]any
}

// RPCCall is a JSON-RPC 2.0 request. ID is kept raw so it can be echoed
// verbatim; it is nil when the request carried no id.
type RPCCall struct {
	ID     json.RawMessage
	Method string
	Params json.RawMessage
}

func (Discovery) protocol() string  { return "discovery" }
func (Cleanup) protocol() string    { return "cleanup" }
func (CustomCall) protocol() string { return "custom" }
func (RPCCall) protocol() string    { return "jsonrpc" }

var (
	// ErrToolRequired is returned for a custom call without a tool name.
	ErrToolRequired = errors.New("tool name is required")
	// ErrMethodNotAllowed is returned for HTTP methods other than GET, POST and DELETE.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// ParseError wraps a body that is not a JSON object.
type ParseError struct{ Err error }

func (e *ParseError) Error() string { return "Parse error: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// InvalidRequestError is a JSON-RPC body that parsed but is not a valid
// request object. ID is echoed when it could be read.
type InvalidRequestError struct {
	ID  json.RawMessage
	Msg string
}

func (e *InvalidRequestError) Error() string { return "Invalid Request: " + e.Msg }

// CustomCallError is a simplified-protocol body whose fields have the wrong
// shape.
type CustomCallError struct{ Msg string }

func (e *CustomCallError) Error() string { return e.Msg }

// envelope keeps every member raw so a mistyped field is reported against the
// protocol it belongs to instead of failing the whole body.
type envelope struct {
	JSONRPC json.RawMessage `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
	Tool    json.RawMessage `json:"tool"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Decode turns an HTTP method and body into a Request. A POST body with a
// "method" member is JSON-RPC; any other POST is a custom call.
func Decode(httpMethod string, body []byte) (Request, error) {
	switch httpMethod {
	case http.MethodGet:
		return Discovery{}, nil
	case http.MethodDelete:
		return Cleanup{}, nil
	case http.MethodPost:
	default:
		return nil, ErrMethodNotAllowed
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &ParseError{Err: errors.New("empty body")}
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Err: err}
	}
	if present(env.Method) {
		return decodeRPC(env)
	}
	return decodeCustom(env)
}

func decodeRPC(env envelope) (Request, error) {
	id := env.ID
	if len(id) == 0 {
		id = nil
	}
	var method string
	if err := json.Unmarshal(env.Method, &method); err != nil {
		return nil, &InvalidRequestError{ID: id, Msg: "method must be a string"}
	}
	if present(env.JSONRPC) {
		var version string
		if err := json.Unmarshal(env.JSONRPC, &version); err != nil || version != "2.0" {
			return nil, &InvalidRequestError{ID: id, Msg: `jsonrpc must be "2.0"`}
		}
	}
	return RPCCall{ID: id, Method: method, Params: env.Params}, nil
}

func decodeCustom(env envelope) (Request, error) {
	var tool string
	if present(env.Tool) {
		if err := json.Unmarshal(env.Tool, &tool); err != nil {
			return nil, &CustomCallError{Msg: "Tool name must be a string"}
		}
	}
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return nil, ErrToolRequired
	}
	params, err := decodeObject(env.Params)
	if err != nil {
		return nil, &CustomCallError{Msg: fmt.Sprintf("Invalid params for tool %s: params must be an object", tool)}
	}
	return CustomCall{Tool: tool, Params: params}, nil
}

// decodeObject decodes an optional JSON object; null or absent yields an
// empty map.
func decodeObject(raw json.RawMessage) (map[string]any, error) {
	out := map[string]any{}
	if !present(bytes.TrimSpace(raw)) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
