package moderation

import (
	"testing"

	"github.com/onnwee/twitch-mcp/chat"
)

func newWindow(t *testing.T, raw ...string) *chat.Window {
	t.Helper()
	w := chat.NewWindow(chat.DefaultCapacity)
	for _, r := range raw {
		if _, ok := w.AppendRaw(r); !ok {
			t.Fatalf("AppendRaw(%q) rejected", r)
		}
	}
	return w
}

func TestClassifyDuration(t *testing.T) {
	tests := []struct {
		reason string
		want   int
	}{
		{"spammy caps emote", 300},
		{"toxic and severe", 1800},
		{"EMOTE wall", 300},
		{"being mean", 1800},
		{"serious threat", 3600},
		{"Severe violation", 3600},
		{"off topic", 600},
		{"", 600},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := ClassifyDuration(tt.reason); got != tt.want {
				t.Errorf("ClassifyDuration(%q) = %d, want %d", tt.reason, got, tt.want)
			}
		})
	}
}

func TestResolveTarget(t *testing.T) {
	h := New(newWindow(t,
		":bob123!bob123@x PRIVMSG #c :hi",
		":xx_bob123_xx!x@x PRIVMSG #c :one",
		":xx_bob123_xx!x@x PRIVMSG #c :two",
	))
	empty := New(chat.NewWindow(0))

	tests := []struct {
		name   string
		h      *Heuristics
		input  string
		want   string
		wantOK bool
	}{
		{"phrase without chat match", empty, "user named Bob123", "Bob123", true},
		{"phrase case insensitive", empty, "the User Named  carol ", "carol", true},
		{"descriptor phrase", empty, "the spammer", "", false},
		{"empty", empty, "", "", false},
		{"whitespace", empty, "   ", "", false},
		{"phrase without name", empty, "user named", "", false},
		{"too short", empty, "ab", "", false},
		{"bare token literal", empty, "some_user", "some_user", true},
		{"bare token prefers most active match", h, "Bob123", "xx_bob123_xx", true},
		{"phrase prefers chat match", h, "user named BOB123", "xx_bob123_xx", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.h.ResolveTarget(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolveTarget(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFindUserInChat(t *testing.T) {
	h := New(newWindow(t,
		":samwise!s@x PRIVMSG #c :a",
		":sammy!s@x PRIVMSG #c :b",
		":SamWise!s@x PRIVMSG #c :c",
		":sammy!s@x PRIVMSG #c :d",
		":frodo!f@x PRIVMSG #c :e",
	))

	tests := []struct {
		partial string
		want    string
		wantOK  bool
	}{
		{"sam", "samwise", true}, // tie at 2, samwise seen first
		{"MMY", "sammy", true},
		{"frodo", "frodo", true},
		{"gandalf", "", false},
	}
	for _, tt := range tests {
		got, ok := h.FindUserInChat(tt.partial)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FindUserInChat(%q) = (%q, %v), want (%q, %v)", tt.partial, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFindUserByDescriptor(t *testing.T) {
	h := New(newWindow(t,
		":alice!alice@x PRIVMSG #c :you are so toxic and dumb",
		":bob!bob@x PRIVMSG #c :hello everyone",
	))

	if got, ok := h.FindUserByDescriptor("toxic"); !ok || got != "alice" {
		t.Errorf("FindUserByDescriptor(toxic) = (%q, %v), want alice", got, ok)
	}
	if got, ok := h.FindUserByDescriptor("  TOXIC "); !ok || got != "alice" {
		t.Errorf("descriptor should be normalized, got (%q, %v)", got, ok)
	}
	if got, ok := h.FindUserByDescriptor("everyone"); !ok || got != "bob" {
		t.Errorf("unmapped descriptor = (%q, %v), want bob", got, ok)
	}
	if _, ok := h.FindUserByDescriptor("spam"); ok {
		t.Error("spam descriptor should not match anyone")
	}
	if _, ok := h.FindUserByDescriptor(""); ok {
		t.Error("empty descriptor should not match")
	}
}

func TestFindUserByDescriptorScoring(t *testing.T) {
	h := New(newWindow(t,
		":carol!c@x PRIVMSG #c :free promo visit www",
		":dave!d@x PRIVMSG #c :buy followers",
		":dave!d@x PRIVMSG #c :free stuff",
		":carol!c@x PRIVMSG #c :spam spam",
		":erin!e@x PRIVMSG #c :hello",
	))
	// one point per matching line, so carol and dave tie at 2 and carol was seen first
	if got, _ := h.FindUserByDescriptor("spam"); got != "carol" {
		t.Errorf("FindUserByDescriptor(spam) = %q, want carol", got)
	}
	if got := h.DescriptorHint("spam"); got != "Best descriptor match: carol" {
		t.Errorf("DescriptorHint = %q", got)
	}
	if got := h.DescriptorHint("nothing-matches"); got != "" {
		t.Errorf("DescriptorHint(no match) = %q, want empty", got)
	}
}

func TestRecentLog(t *testing.T) {
	w := chat.NewWindow(0)
	h := New(w)
	if got := h.RecentLog(20); got != "" {
		t.Errorf("RecentLog on empty window = %q", got)
	}
	for i := 0; i < 25; i++ {
		w.Append("user", string(rune('a'+i)))
	}
	got := h.RecentLog(2)
	if want := "user: x\nuser: y"; got != want {
		t.Errorf("RecentLog(2) = %q, want %q", got, want)
	}
}
