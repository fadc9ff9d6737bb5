package config

import (
	"errors"
	"net/url"
	"strings"
)

// Per-request configuration parameter names.
const (
	ParamChannel       = "twitch.channel"
	ParamAuth          = "twitch.auth"
	ParamClientID      = "twitch.clientId"
	ParamBroadcasterID = "twitch.broadcasterId"
)

// ErrMissingParam matches any MissingParamError.
var ErrMissingParam = errors.New("missing required parameter")

// MissingParamError names the first absent request parameter.
type MissingParamError struct {
	Param string
	Label string
}

func (e *MissingParamError) Error() string {
	if e.Label != "" {
		return "Missing required parameter: " + e.Param + " (" + e.Label + ")"
	}
	return "Missing required parameter: " + e.Param
}

func (e *MissingParamError) Is(target error) bool { return target == ErrMissingParam }

// Snapshot is the caller's Twitch configuration for a single request. It is
// parsed per request and never stored.
type Snapshot struct {
	Channel       string
	AuthToken     string
	ClientID      string
	BroadcasterID string
}

// SnapshotFromParams reads the first value of each parameter, trimmed.
func SnapshotFromParams(q url.Values) Snapshot {
	get := func(k string) string { return strings.TrimSpace(q.Get(k)) }
	return Snapshot{
		Channel:       get(ParamChannel),
		AuthToken:     get(ParamAuth),
		ClientID:      get(ParamClientID),
		BroadcasterID: get(ParamBroadcasterID),
	}
}

// Validate reports the first missing parameter in fixed order.
func (s Snapshot) Validate() error {
	switch {
	case s.Channel == "":
		return &MissingParamError{Param: ParamChannel}
	case s.AuthToken == "":
		return &MissingParamError{Param: ParamAuth, Label: "OAuth token"}
	case s.ClientID == "":
		return &MissingParamError{Param: ParamClientID}
	case s.BroadcasterID == "":
		return &MissingParamError{Param: ParamBroadcasterID}
	}
	return nil
}

// ChannelName returns the channel without a leading '#', lowercased.
func (s Snapshot) ChannelName() string {
	return strings.ToLower(strings.TrimPrefix(s.Channel, "#"))
}
