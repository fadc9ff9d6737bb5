// Package tools holds the static catalog of invocable tools, their argument
// schemas, and typed argument decoding.
package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Tool names as exposed on the wire.
const (
	SendMessage      = "sendMessageToChat"
	CreatePoll       = "createTwitchPoll"
	CreatePrediction = "createTwitchPrediction"
	CreateClip       = "createTwitchClip"
	AnalyzeChat      = "analyzeChat"
	RecentChatLog    = "getRecentChatLog"
	TimeoutUser      = "timeoutUser"
	BanUser          = "banUser"
	UpdateTitle      = "updateStreamTitle"
	UpdateCategory   = "updateStreamCategory"
)

// ArgType is the JSON schema type of an argument.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeInteger ArgType = "integer"
)

// ArgSpec describes one tool argument. Hint is appended to the discovery
// summary, e.g. "comma-separated".
type ArgSpec struct {
	Name        string
	Type        ArgType
	Required    bool
	Description string
	Hint        string
}

// Spec describes a tool.
type Spec struct {
	Name        string
	Description string
	Args        []ArgSpec
}

// InputSchema renders the MCP JSON schema for the tool's arguments.
func (s Spec) InputSchema() map[string]any {
	props := make(map[string]any, len(s.Args))
	required := []string{}
	for _, a := range s.Args {
		props[a.Name] = map[string]any{"type": string(a.Type), "description": a.Description}
		if a.Required {
			required = append(required, a.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ParameterSummary renders the short per-argument description used by the
// discovery document, e.g. "integer (required - seconds)".
func (s Spec) ParameterSummary() map[string]string {
	out := make(map[string]string, len(s.Args))
	for _, a := range s.Args {
		need := "optional"
		if a.Required {
			need = "required"
		}
		if a.Hint != "" {
			need += " - " + a.Hint
		}
		out[a.Name] = fmt.Sprintf("%s (%s)", a.Type, need)
	}
	return out
}

// ErrUnknownTool is returned for names missing from the registry.
var ErrUnknownTool = errors.New("unknown tool")

// ArgError reports a missing or mistyped argument.
type ArgError struct {
	Tool   string
	Arg    string
	Reason string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: invalid parameter %q: %s", e.Tool, e.Arg, e.Reason)
}

// Registry is an immutable, ordered tool catalog.
type Registry struct {
	specs  []Spec
	byName map[string]int
}

// NewRegistry builds a registry; later duplicates replace earlier ones.
func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{byName: make(map[string]int, len(specs))}
	for _, s := range specs {
		if i, ok := r.byName[s.Name]; ok {
			r.specs[i] = s
			continue
		}
		r.byName[s.Name] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// List returns the catalog in registration order.
func (r *Registry) List() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Validate checks args against the named tool's schema. Arguments not in the
// schema are ignored.
func (r *Registry) Validate(name string, args map[string]any) error {
	spec, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	for _, a := range spec.Args {
		v, present := args[a.Name]
		if !present || v == nil {
			if a.Required {
				return &ArgError{Tool: name, Arg: a.Name, Reason: "missing required parameter"}
			}
			continue
		}
		switch a.Type {
		case TypeString:
			s, ok := v.(string)
			if !ok {
				return &ArgError{Tool: name, Arg: a.Name, Reason: "expected string"}
			}
			if a.Required && strings.TrimSpace(s) == "" {
				return &ArgError{Tool: name, Arg: a.Name, Reason: "must not be blank"}
			}
		case TypeInteger:
			if _, ok := toInt(v); !ok {
				return &ArgError{Tool: name, Arg: a.Name, Reason: "expected integer"}
			}
		}
	}
	return nil
}
