package chat

import (
	"strings"
	"time"
)

// Line is a single chat message as received from the feed. Lines are never
// mutated after creation.
type Line struct {
	// Channel is the lowercase channel without "#". Empty for lines that were
	// not tagged with a channel; those are visible to every channel.
	Channel    string
	Username   string
	Content    string
	Seq        uint64
	ReceivedAt time.Time
}

// String renders the line the way moderation context is shown to callers.
func (l Line) String() string {
	return l.Username + ": " + l.Content
}

// ParsePrivmsg extracts the sender and text from a raw IRC PRIVMSG line such as
// ":alice!alice@alice.tmi.twitch.tv PRIVMSG #channel :hello there".
// IRCv3 tags (a leading "@...") are skipped. ok is false for any other command.
func ParsePrivmsg(raw string) (username, content string, ok bool) {
	raw = strings.TrimRight(raw, "\r\n")
	if strings.HasPrefix(raw, "@") {
		sp := strings.IndexByte(raw, ' ')
		if sp < 0 {
			return "", "", false
		}
		raw = raw[sp+1:]
	}
	if !strings.HasPrefix(raw, ":") {
		return "", "", false
	}
	prefix, rest, found := strings.Cut(raw[1:], " ")
	if !found {
		return "", "", false
	}
	command, rest, found := strings.Cut(rest, " ")
	if !found || command != "PRIVMSG" {
		return "", "", false
	}
	// rest is "#channel :text"
	_, text, found := strings.Cut(rest, " :")
	if !found {
		return "", "", false
	}
	nick, _, _ := strings.Cut(prefix, "!")
	if nick == "" {
		return "", "", false
	}
	return strings.ToLower(nick), text, true
}
