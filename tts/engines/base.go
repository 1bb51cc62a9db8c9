// Package engines implements the synthesis backends: the on-device
// Piper subprocess, the free Estonian cloud service and the paid Azure
// neural service. All three share the same speak pipeline: consult the
// synthesis cache, synthesize on a miss, then hand the audio to the
// playback engine under a cancellation token.
package engines

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/audio"
	"github.com/nullp2ike/speech-practice/tts/cache"
)

// speaker is the shared backend core. Concrete engines embed it and
// supply a synth function per spoken segment; everything else (cache,
// token discipline, playback, error reporting) is common.
type speaker struct {
	cache   *cache.Cache
	player  *audio.Player
	timeout time.Duration

	// startMu serializes stream starts against Stop and Cancel, so a
	// superseded attempt can never start playback over its successor.
	startMu sync.Mutex

	mu      sync.Mutex
	active  *tts.Token
	cancel  context.CancelFunc
	lastErr string
}

func newSpeaker(out audio.Context, cacheCfg cache.Config, timeout time.Duration) speaker {
	return speaker{
		cache:   cache.New(cacheCfg),
		player:  audio.NewPlayer(out),
		timeout: timeout,
	}
}

// speak runs the common pipeline in the background and returns the
// fresh token immediately. synth produces the raw audio bytes on a
// cache miss; wrap attaches the engine's format metadata for playback.
func (s *speaker) speak(key string, synth func(context.Context) ([]byte, error), wrap func([]byte) audio.Audio, onComplete func(seconds float64), onInterrupt func()) *tts.Token {
	s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	token := tts.NewToken()

	s.mu.Lock()
	s.active = token
	s.cancel = cancel
	s.lastErr = ""
	s.mu.Unlock()

	go func() {
		defer cancel()

		data, ok := s.cache.Get(key)
		if !ok {
			var err error
			data, err = synth(ctx)
			if err != nil {
				s.fail(token, err, onComplete)
				return
			}
			s.cache.Put(key, data)
		}
		s.startMu.Lock()
		s.mu.Lock()
		current := s.active == token && !token.Cancelled()
		s.mu.Unlock()
		if !current {
			s.startMu.Unlock()
			return
		}
		err := s.player.Play(wrap(data),
			func(seconds float64) {
				if s.clearIfActive(token) {
					onComplete(seconds)
				}
			},
			func() {
				if s.clearIfActive(token) {
					onInterrupt()
				}
			},
		)
		s.startMu.Unlock()
		if err != nil {
			s.fail(token, err, onComplete)
		}
	}()

	return token
}

// fail records the error and reports the attempt as a zero-duration
// completion, unless a newer attempt already superseded this token.
func (s *speaker) fail(token *tts.Token, err error, onComplete func(float64)) {
	s.mu.Lock()
	if s.active != token {
		s.mu.Unlock()
		return
	}
	s.active = nil
	s.lastErr = err.Error()
	s.mu.Unlock()

	if !token.Cancelled() {
		log.Error("synthesis failed", "err", err)
		onComplete(0)
	}
}

// clearIfActive atomically checks that the token is still the active one
// and detaches it, so each attempt fires at most one callback.
func (s *speaker) clearIfActive(token *tts.Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != token || token.Cancelled() {
		return false
	}
	s.active = nil
	return true
}

// Pause pauses current playback, if any.
func (s *speaker) Pause() { s.player.Pause() }

// Resume resumes paused playback, if any.
func (s *speaker) Resume() { s.player.Resume() }

// Stop halts the current activity and invalidates its token.
func (s *speaker) Stop() {
	s.mu.Lock()
	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.startMu.Lock()
	s.player.Stop()
	s.startMu.Unlock()
}

// Cancel marks the token cancelled, force-stopping playback when it is
// the active one.
func (s *speaker) Cancel(t *tts.Token) {
	if t == nil {
		return
	}
	t.Cancel()
	s.mu.Lock()
	isActive := s.active == t
	if isActive {
		s.active = nil
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	s.mu.Unlock()
	if isActive {
		s.startMu.Lock()
		s.player.Stop()
		s.startMu.Unlock()
	}
}

// Cleanup stops everything, drops the synthesis cache and releases the
// playback engine. Safe to call more than once.
func (s *speaker) Cleanup() {
	s.Stop()
	log.Debug("synthesis cache released", "stats", s.cache.Stats())
	s.cache.Clear()
	s.player.Close()
}

// LastError returns the most recent failure message, or the empty
// string.
func (s *speaker) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != "" {
		return s.lastErr
	}
	return s.player.LastError()
}

// CacheStats exposes the synthesis cache counters.
func (s *speaker) CacheStats() cache.Stats { return s.cache.Stats() }
