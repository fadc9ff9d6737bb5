// Package chat holds the live Twitch chat context used by the moderation tools.
//
// It provides two pieces:
//   - Window: a bounded, mutex-guarded ring buffer of the most recent chat
//     lines (DefaultCapacity = 100). Callers only ever see copies, so a reader
//     can never observe an append that is half-way through evicting.
//   - Feed: the IRC connection (go-twitch-irc) that appends every PRIVMSG to a
//     Window, optionally archives it, and sends outbound chat messages.
//
// Credentials: the Feed connects anonymously (read-only) unless a bot username
// and an OAuth token with chat:read/chat:edit scopes are configured. Anonymous
// feeds still populate the Window but reject Send with ErrReadOnly.
package chat
