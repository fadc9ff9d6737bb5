package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/twitch-mcp/config"
	"github.com/onnwee/twitch-mcp/db"
	"github.com/onnwee/twitch-mcp/moderation"
	"github.com/onnwee/twitch-mcp/telemetry"
	"github.com/onnwee/twitch-mcp/tools"
	"github.com/onnwee/twitch-mcp/twitchapi"
)

// Invocation is a single named tool call with loosely typed arguments.
type Invocation struct {
	Tool string
	Args map[string]any
}

const (
	chatLogLines         = 20
	defaultTimeoutReason = "inappropriate behavior"
	defaultBanReason     = "severe violation of chat rules"
)

// Outcome labels for metrics and the audit log.
const (
	outcomeOK       = "ok"
	outcomeFailed   = "platform_error"
	outcomeFallback = "fallback"
	outcomeInvalid  = "invalid"
)

// Invoke validates and executes one tool. The only errors returned are
// validation errors (tools.ErrUnknownTool, *tools.ArgError); platform
// failures come back as descriptive result text.
func (d *Dispatcher) Invoke(ctx context.Context, snap config.Snapshot, inv Invocation) (string, error) {
	start := time.Now()
	label := d.toolLabel(inv.Tool)
	ctx, span := telemetry.StartSpan(ctx, "mcp", "tool."+label, telemetry.ToolAttr(label))
	defer span.End()

	if err := d.registry.Validate(inv.Tool, inv.Args); err != nil {
		telemetry.ObserveTool(label, outcomeInvalid, time.Since(start))
		telemetry.RecordError(span, err)
		return "", err
	}

	text, outcome, err := d.execute(ctx, snap, inv)
	if err != nil {
		telemetry.ObserveTool(inv.Tool, outcomeInvalid, time.Since(start))
		telemetry.RecordError(span, err)
		return "", err
	}
	elapsed := time.Since(start)
	telemetry.ObserveTool(inv.Tool, outcome, elapsed)
	if outcome == outcomeOK {
		telemetry.SetSpanSuccess(span)
	}
	logger(ctx).Info("tool executed",
		slog.String("tool", inv.Tool),
		slog.String("channel", snap.ChannelName()),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed))

	d.audit(ctx, db.Invocation{
		Tool:          inv.Tool,
		Channel:       snap.ChannelName(),
		Outcome:       outcome,
		Result:        text,
		CorrelationID: telemetry.GetCorrelation(ctx),
		Duration:      elapsed,
	})
	return text, nil
}

func (d *Dispatcher) audit(ctx context.Context, inv db.Invocation) {
	if d.Auditor == nil {
		return
	}
	if err := d.Auditor.RecordInvocation(ctx, inv); err != nil {
		logger(ctx).Warn("audit record failed", slog.String("tool", inv.Tool), slog.Any("err", err))
	}
}

func credentials(snap config.Snapshot) twitchapi.Credentials {
	return twitchapi.Credentials{AuthToken: snap.AuthToken, ClientID: snap.ClientID, BroadcasterID: snap.BroadcasterID}
}

// execute runs a validated tool. err is non-nil only when arguments cannot be
// decoded into the tool's argument type.
func (d *Dispatcher) execute(ctx context.Context, snap config.Snapshot, inv Invocation) (string, string, error) {
	creds := credentials(snap)

	switch inv.Tool {
	case tools.SendMessage:
		var a tools.SendMessageArgs
		if err := tools.Decode(inv.Args, &a); err != nil {
			return "", "", err
		}
		return d.sendMessage(snap, a.Message)

	case tools.CreatePoll:
		var a tools.PollArgs
		if err := tools.Decode(inv.Args, &a); err != nil {
			return "", "", err
		}
		if _, err := d.platform.CreatePoll(ctx, creds, a.Title, a.ChoiceList(), int(a.Duration)); err != nil {
			return platformFailure(err, "Failed to create poll", "Error creating poll", ""), outcomeFailed, nil
		}
		return "Poll created successfully!", outcomeOK, nil

	case tools.CreatePrediction:
		var a tools.PredictionArgs
		if err := tools.Decode(inv.Args, &a); err != nil {
			return "", "", err
		}
		if _, err := d.platform.CreatePrediction(ctx, creds, a.Title, a.OutcomeList(), int(a.Duration)); err != nil {
			return platformFailure(err, "Failed to create prediction", "Error creating prediction", ""), outcomeFailed, nil
		}
		return "Prediction created successfully!", outcomeOK, nil

	case tools.CreateClip:
		clip, err := d.platform.CreateClip(ctx, creds)
		if err != nil {
			return platformFailure(err, "Failed to create clip", "Error creating clip", ""), outcomeFailed, nil
		}
		if clip.EditURL == "" {
			return "Clip created successfully!", outcomeOK, nil
		}
		return "Clip created successfully! You can view it at: " + clip.EditURL, outcomeOK, nil

	case tools.AnalyzeChat:
		return d.heuristics(snap).Analyze().String(), outcomeOK, nil

	case tools.RecentChatLog:
		log := d.heuristics(snap).RecentLog(chatLogLines)
		if log == "" {
			return "No recent chat messages available.", outcomeOK, nil
		}
		return log, outcomeOK, nil

	case tools.TimeoutUser, tools.BanUser:
		var a tools.ModerationArgs
		if err := tools.Decode(inv.Args, &a); err != nil {
			return "", "", err
		}
		return d.moderate(ctx, creds, d.heuristics(snap), inv.Tool == tools.BanUser, a)

	case tools.UpdateTitle:
		var a tools.TitleArgs
		if err := tools.Decode(inv.Args, &a); err != nil {
			return "", "", err
		}
		if err := d.platform.UpdateTitle(ctx, creds, a.Title); err != nil {
			return platformFailure(err, "Failed to update stream title", "Failed to update stream title", "\nResponse: %s"), outcomeFailed, nil
		}
		return "Successfully updated stream title to: " + a.Title, outcomeOK, nil

	case tools.UpdateCategory:
		var a tools.CategoryArgs
		if err := tools.Decode(inv.Args, &a); err != nil {
			return "", "", err
		}
		return d.updateCategory(ctx, creds, a.Category)
	}
	// Registry.Validate already rejected unknown names.
	return "", "", fmt.Errorf("%w: %s", tools.ErrUnknownTool, inv.Tool)
}

func (d *Dispatcher) sendMessage(snap config.Snapshot, message string) (string, string, error) {
	if d.chat == nil {
		return "Failed to send message: chat feed unavailable", outcomeFailed, nil
	}
	if err := d.chat.Send(snap.ChannelName(), message); err != nil {
		return "Failed to send message: " + err.Error(), outcomeFailed, nil
	}
	return "Successfully sent message: " + message, outcomeOK, nil
}

// moderate resolves the target and times out or bans them. An unresolvable
// target returns the recent chat log instead so the caller can retry with an
// explicit username.
func (d *Dispatcher) moderate(ctx context.Context, creds twitchapi.Credentials, h *moderation.Heuristics, ban bool, a tools.ModerationArgs) (string, string, error) {
	user, ok := h.ResolveTarget(a.Target)
	if !ok {
		return chatLogFallback(h, a.Target), outcomeFallback, nil
	}

	failed, errored := "Failed to timeout user", "Error timing out user"
	if ban {
		failed, errored = "Failed to ban user", "Error banning user"
	}

	userID, err := d.platform.GetUserID(ctx, creds, user)
	if err != nil {
		var apiErr *twitchapi.APIError
		if errors.Is(err, twitchapi.ErrNotFound) || errors.As(err, &apiErr) {
			return "Could not resolve user ID for username: " + user, outcomeFailed, nil
		}
		return errored + ": " + err.Error(), outcomeFailed, nil
	}

	if ban {
		reason := a.Reason
		if reason == "" {
			reason = defaultBanReason
		}
		if err := d.platform.BanUser(ctx, creds, userID, reason, 0); err != nil {
			return platformFailure(err, failed, errored, "\n%s"), outcomeFailed, nil
		}
		return fmt.Sprintf("Successfully banned %s. Reason: %s", user, reason), outcomeOK, nil
	}

	reason := a.Reason
	if reason == "" {
		reason = defaultTimeoutReason
	}
	duration := int(a.Duration)
	if duration <= 0 {
		duration = moderation.ClassifyDuration(reason)
	}
	if err := d.platform.BanUser(ctx, creds, userID, reason, duration); err != nil {
		return platformFailure(err, failed, errored, "\n%s"), outcomeFailed, nil
	}
	return fmt.Sprintf("Successfully timed out %s for %d seconds. Reason: %s", user, duration, reason), outcomeOK, nil
}

func chatLogFallback(h *moderation.Heuristics, target string) string {
	text := "Could not resolve user. Here are the last 20 chat messages:\n" + h.RecentLog(chatLogLines)
	if hint := h.DescriptorHint(target); hint != "" {
		text += "\n\n" + hint
	}
	return text
}

func (d *Dispatcher) updateCategory(ctx context.Context, creds twitchapi.Credentials, name string) (string, string, error) {
	cat, err := d.platform.SearchCategory(ctx, creds, name)
	if err != nil {
		var apiErr *twitchapi.APIError
		switch {
		case errors.Is(err, twitchapi.ErrNotFound):
			return fmt.Sprintf("Could not find a Twitch category named '%s'.", name), outcomeFailed, nil
		case errors.As(err, &apiErr):
			return fmt.Sprintf("Failed to search for category '%s': HTTP %d", name, apiErr.StatusCode), outcomeFailed, nil
		}
		return "Failed to update stream category: " + err.Error(), outcomeFailed, nil
	}
	if err := d.platform.UpdateCategory(ctx, creds, cat.ID); err != nil {
		return platformFailure(err, "Failed to update stream category", "Failed to update stream category", "\nResponse: %s"), outcomeFailed, nil
	}
	return "Successfully updated stream category to: " + cat.Name, outcomeOK, nil
}

// platformFailure renders a Helix failure as result text. HTTP failures
// read "<failed>: HTTP <code>" plus the response body when bodyFormat is set;
// transport failures read "<errored>: <err>".
func platformFailure(err error, failed, errored, bodyFormat string) string {
	var apiErr *twitchapi.APIError
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("%s: HTTP %d", failed, apiErr.StatusCode)
		if bodyFormat != "" && apiErr.Body != "" {
			msg += fmt.Sprintf(bodyFormat, apiErr.Body)
		}
		return msg
	}
	return errored + ": " + err.Error()
}
