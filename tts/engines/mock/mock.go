// Package mock provides an in-memory synthesis backend for tests. It
// records every Speak and either completes calls automatically after a
// configurable delay or leaves them for the test to complete by hand.
package mock

import (
	"sync"
	"time"

	"github.com/nullp2ike/speech-practice/tts"
)

// Call records one Speak invocation.
type Call struct {
	Text  string
	Rate  float64
	Voice string
	Token *tts.Token

	onComplete  func(seconds float64)
	onInterrupt func()
}

// Engine implements the synthesis contract without touching audio
// hardware or the network.
type Engine struct {
	mu       sync.Mutex
	calls    []Call
	active   *tts.Token
	paused   bool
	lastErr  string
	failMsg  string
	auto     bool
	delay    time.Duration
	duration float64
}

// New returns a manual-mode engine: calls stay pending until the test
// completes them with CompleteCall.
func New() *Engine {
	return &Engine{duration: 1.0}
}

// NewAuto returns an engine that completes every call on its own after
// delay, reporting the given playback duration.
func NewAuto(delay time.Duration, duration float64) *Engine {
	return &Engine{auto: true, delay: delay, duration: duration}
}

// SetFail makes every subsequent call fail with the given message.
// An empty message clears the failure.
func (e *Engine) SetFail(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failMsg = msg
}

// Speak records the call and returns a fresh token. Outcomes are always
// delivered from a separate goroutine, the way real backends do.
func (e *Engine) Speak(text string, rate float64, voice string, onComplete func(seconds float64), onInterrupt func()) *tts.Token {
	e.mu.Lock()
	if e.active != nil {
		e.active.Cancel()
	}
	token := tts.NewToken()
	e.active = token
	e.calls = append(e.calls, Call{
		Text:        text,
		Rate:        rate,
		Voice:       voice,
		Token:       token,
		onComplete:  onComplete,
		onInterrupt: onInterrupt,
	})
	idx := len(e.calls) - 1
	failMsg := e.failMsg
	auto := e.auto
	delay := e.delay
	duration := e.duration
	if failMsg != "" {
		e.lastErr = failMsg
	}
	e.mu.Unlock()

	if failMsg != "" {
		go onComplete(0)
		return token
	}
	if auto {
		go func() {
			time.Sleep(delay)
			e.CompleteCall(idx, duration)
		}()
	}
	return token
}

// CompleteCall fires the completion callback of the i-th recorded call,
// unless its token was cancelled or superseded.
func (e *Engine) CompleteCall(i int, seconds float64) {
	e.mu.Lock()
	if i < 0 || i >= len(e.calls) {
		e.mu.Unlock()
		return
	}
	call := e.calls[i]
	if call.Token.Cancelled() || e.active != call.Token {
		e.mu.Unlock()
		return
	}
	e.active = nil
	e.mu.Unlock()
	call.onComplete(seconds)
}

// InterruptCall fires the interruption callback of the i-th call.
func (e *Engine) InterruptCall(i int) {
	e.mu.Lock()
	if i < 0 || i >= len(e.calls) {
		e.mu.Unlock()
		return
	}
	call := e.calls[i]
	if call.Token.Cancelled() || e.active != call.Token {
		e.mu.Unlock()
		return
	}
	e.active = nil
	e.mu.Unlock()
	call.onInterrupt()
}

// Pause records the paused state.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume clears the paused state.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Stop cancels the active call.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.Cancel()
		e.active = nil
	}
	e.paused = false
}

// Cancel marks the token cancelled, detaching it when active.
func (e *Engine) Cancel(t *tts.Token) {
	if t == nil {
		return
	}
	t.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == t {
		e.active = nil
	}
}

// Cleanup stops the engine.
func (e *Engine) Cleanup() { e.Stop() }

// LastError returns the configured failure message after a failed call.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Calls returns a copy of the recorded calls.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallCount returns how many times Speak ran.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// Texts returns the spoken texts in call order.
func (e *Engine) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.Text
	}
	return out
}
