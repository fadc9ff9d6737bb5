// Package moderation resolves moderation targets and classifies enforcement
// severity using keyword heuristics over the recent chat window.
package moderation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/onnwee/twitch-mcp/chat"
)

var (
	bareUsername = regexp.MustCompile(`^[A-Za-z0-9_]{3,25}$`)
	userNamed    = regexp.MustCompile(`(?i)user named`)
)

// Source supplies chat lines, oldest first. *chat.Window and chat.ChannelView
// both satisfy it.
type Source interface {
	Snapshot() []chat.Line
	LastN(n int) []chat.Line
}

// Heuristics answers moderation questions against a chat source. All methods
// work on a snapshot and never hold the window lock while scoring.
type Heuristics struct {
	window Source
}

// New returns heuristics reading from src.
func New(src Source) *Heuristics {
	return &Heuristics{window: src}
}

// ResolveTarget turns caller input into a username. Only explicit usernames
// resolve: a bare token like "Bob_123" or a phrase containing "user named".
// Free-text descriptors return false so the caller can fall back to the chat log.
func (h *Heuristics) ResolveTarget(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	loc := userNamed.FindStringIndex(input)
	if loc == nil && !bareUsername.MatchString(input) {
		return "", false
	}
	candidate := input
	if loc != nil {
		candidate = input[loc[1]:]
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	if user, ok := h.FindUserInChat(candidate); ok {
		return user, true
	}
	return candidate, true
}

// FindUserInChat returns the most active username containing partial
// (case-insensitive). Equal activity goes to the user seen first.
func (h *Heuristics) FindUserInChat(partial string) (string, bool) {
	partial = strings.ToLower(partial)
	order, counts := tally(h.window.Snapshot(), func(chat.Line) int { return 1 })

	best, bestCount := "", 0
	for _, user := range order {
		if strings.Contains(user, partial) && counts[user] > bestCount {
			best, bestCount = user, counts[user]
		}
	}
	return best, bestCount > 0
}

// FindUserByDescriptor scores each sender by how many of their lines contain
// a keyword for descriptor. Unknown descriptors are used as their own keyword.
func (h *Heuristics) FindUserByDescriptor(descriptor string) (string, bool) {
	descriptor = strings.ToLower(strings.TrimSpace(descriptor))
	if descriptor == "" {
		return "", false
	}
	keywords, ok := DescriptorKeywords[descriptor]
	if !ok {
		keywords = []string{descriptor}
	}

	order, scores := tally(h.window.Snapshot(), func(l chat.Line) int {
		content := strings.ToLower(l.Content)
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				return 1
			}
		}
		return 0
	})

	best, bestScore := "", 0
	for _, user := range order {
		if scores[user] > bestScore {
			best, bestScore = user, scores[user]
		}
	}
	return best, bestScore > 0
}

// tally sums score per lowercase username and remembers first-seen order.
func tally(lines []chat.Line, score func(chat.Line) int) ([]string, map[string]int) {
	var order []string
	counts := make(map[string]int)
	for _, l := range lines {
		user := strings.ToLower(l.Username)
		if _, seen := counts[user]; !seen {
			order = append(order, user)
		}
		counts[user] += score(l)
	}
	return order, counts
}

// ClassifyDuration maps a free-text reason to a timeout length in seconds.
func ClassifyDuration(reason string) int {
	reason = strings.ToLower(reason)
	for _, tier := range durationTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(reason, kw) {
				return tier.seconds
			}
		}
	}
	return DefaultTimeoutSeconds
}

// RecentLog renders the last n lines as "username: content", one per line.
func (h *Heuristics) RecentLog(n int) string {
	lines := h.window.LastN(n)
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// DescriptorHint names the best descriptor match, or returns "" when nobody
// matches.
func (h *Heuristics) DescriptorHint(descriptor string) string {
	if user, ok := h.FindUserByDescriptor(descriptor); ok {
		return fmt.Sprintf("Best descriptor match: %s", user)
	}
	return ""
}
