package tts

import "sync"

// Token identifies one synthesis+playback attempt. A background completion
// can race with a foreground cancel, so both sides go through the mutex.
// A cancelled token never transitions back.
type Token struct {
	mu        sync.Mutex
	cancelled bool
}

// NewToken returns a fresh, uncancelled token.
func NewToken() *Token {
	return &Token{}
}

// Cancel marks the token cancelled. Idempotent and safe from any goroutine.
func (t *Token) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
}

// Cancelled reports whether the token has been cancelled.
func (t *Token) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
