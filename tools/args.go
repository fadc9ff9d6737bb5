package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int is an integer argument that also accepts numeric strings, since some
// clients send every argument as a string.
type Int int

// UnmarshalJSON accepts 30, 30.0 and "30".
func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n, ok := toInt(v)
	if !ok {
		return fmt.Errorf("not an integer: %s", b)
	}
	*i = Int(n)
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// Decode copies loosely typed invocation arguments into a typed struct.
func Decode(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

// SendMessageArgs are the arguments of sendMessageToChat.
type SendMessageArgs struct {
	Message string `json:"message"`
}

// PollArgs are the arguments of createTwitchPoll.
type PollArgs struct {
	Title    string `json:"title"`
	Choices  string `json:"choices"`
	Duration Int    `json:"duration"`
}

// ChoiceList splits the comma-separated choices.
func (a PollArgs) ChoiceList() []string { return splitList(a.Choices) }

// PredictionArgs are the arguments of createTwitchPrediction.
type PredictionArgs struct {
	Title    string `json:"title"`
	Outcomes string `json:"outcomes"`
	Duration Int    `json:"duration"`
}

// OutcomeList splits the comma-separated outcomes.
func (a PredictionArgs) OutcomeList() []string { return splitList(a.Outcomes) }

// ModerationArgs are shared by timeoutUser and banUser. Duration is only
// read by timeoutUser; zero means derive it from the reason.
type ModerationArgs struct {
	Target   string `json:"usernameOrDescriptor"`
	Reason   string `json:"reason"`
	Duration Int    `json:"duration"`
}

// TitleArgs are the arguments of updateStreamTitle.
type TitleArgs struct {
	Title string `json:"title"`
}

// CategoryArgs are the arguments of updateStreamCategory.
type CategoryArgs struct {
	Category string `json:"category"`
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
