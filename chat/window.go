package chat

import (
	"slices"
	"sync"
	"time"
)

// DefaultCapacity is the number of recent lines kept for moderation context.
const DefaultCapacity = 100

// Window is a bounded FIFO of recent chat lines safe for concurrent use.
// One mutex serializes appends and reads; reads return copies.
type Window struct {
	mu    sync.Mutex
	buf   []Line
	start int // index of the oldest line
	n     int
	seq   uint64
	now   func() time.Time
}

// NewWindow creates a window holding at most capacity lines. A non-positive
// capacity falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{buf: make([]Line, capacity), now: time.Now}
}

// Append records a new untagged line, evicting the oldest one when full.
func (w *Window) Append(username, content string) Line {
	return w.AppendTo("", username, content)
}

// AppendTo records a line received in channel. All channels share the
// window's capacity.
func (w *Window) AppendTo(channel, username, content string) Line {
	channel = normalizeChannel(channel)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	line := Line{Channel: channel, Username: username, Content: content, Seq: w.seq, ReceivedAt: w.now().UTC()}
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = line
		w.n++
		return line
	}
	w.buf[w.start] = line
	w.start = (w.start + 1) % len(w.buf)
	return line
}

// AppendRaw parses a raw IRC line and appends it when it is a PRIVMSG.
func (w *Window) AppendRaw(raw string) (Line, bool) {
	username, content, ok := ParsePrivmsg(raw)
	if !ok {
		return Line{}, false
	}
	return w.Append(username, content), true
}

// Snapshot returns all current lines, oldest first.
func (w *Window) Snapshot() []Line {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copyLocked(w.n)
}

// LastN returns the most recent min(n, Len()) lines, oldest first.
func (w *Window) LastN(n int) []Line {
	if n <= 0 {
		return []Line{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if n > w.n {
		n = w.n
	}
	return w.copyLocked(n)
}

// copyLocked copies the newest n lines. Caller holds mu.
func (w *Window) copyLocked(n int) []Line {
	out := make([]Line, n)
	skip := w.n - n
	for i := 0; i < n; i++ {
		out[i] = w.buf[(w.start+skip+i)%len(w.buf)]
	}
	return out
}

// lastWhere returns up to n of the newest lines accepted by keep, oldest first.
func (w *Window) lastWhere(n int, keep func(Line) bool) []Line {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Line, 0, min(n, w.n))
	for i := w.n - 1; i >= 0 && len(out) < n; i-- {
		if l := w.buf[(w.start+i)%len(w.buf)]; keep(l) {
			out = append(out, l)
		}
	}
	slices.Reverse(out)
	return out
}

// Clear drops every line. Sequence numbers keep increasing.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.buf)
	w.start = 0
	w.n = 0
}

// Len reports the number of lines currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Cap reports the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// ChannelView reads one channel's lines out of a shared window. Untagged lines
// belong to every channel; an empty channel name sees the whole window.
type ChannelView struct {
	w       *Window
	channel string
}

// Channel returns a view restricted to name.
func (w *Window) Channel(name string) ChannelView {
	return ChannelView{w: w, channel: normalizeChannel(name)}
}

func (v ChannelView) keep(l Line) bool {
	return v.channel == "" || l.Channel == "" || l.Channel == v.channel
}

// Snapshot returns the channel's lines, oldest first.
func (v ChannelView) Snapshot() []Line {
	return v.w.lastWhere(len(v.w.buf), v.keep)
}

// LastN returns the channel's most recent n lines, oldest first.
func (v ChannelView) LastN(n int) []Line {
	if n <= 0 {
		return []Line{}
	}
	return v.w.lastWhere(n, v.keep)
}
