package audio

import (
	"io"
	"sync"
	"time"
)

// StubContext is a Context that consumes audio without touching hardware.
// Playback duration is derived from the PCM byte count at the configured
// sample rate, or fixed via FixedDuration. It keeps tests hermetic and
// lets the application run degraded when no audio device is available.
type StubContext struct {
	Rate     int
	Channels int

	// FixedDuration, when non-zero, overrides the byte-derived duration
	// of every stream.
	FixedDuration time.Duration
}

// NewStubContext returns a stub at the default output parameters.
func NewStubContext() *StubContext {
	return &StubContext{Rate: DefaultSampleRate, Channels: DefaultChannelCount}
}

func (c *StubContext) NewPlayer(r io.Reader) (OutputPlayer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := c.FixedDuration
	if d == 0 {
		rate := c.Rate
		if rate <= 0 {
			rate = DefaultSampleRate
		}
		channels := c.Channels
		if channels <= 0 {
			channels = DefaultChannelCount
		}
		bytesPerSecond := rate * channels * 2
		d = time.Duration(float64(len(data)) / float64(bytesPerSecond) * float64(time.Second))
	}
	return &stubPlayer{remaining: d}, nil
}

func (c *StubContext) SampleRate() int {
	if c.Rate <= 0 {
		return DefaultSampleRate
	}
	return c.Rate
}

func (c *StubContext) ChannelCount() int {
	if c.Channels <= 0 {
		return DefaultChannelCount
	}
	return c.Channels
}

func (c *StubContext) Close() error { return nil }

// stubPlayer advances on the wall clock and reports completion once the
// derived duration has elapsed, honoring pauses.
type stubPlayer struct {
	mu        sync.Mutex
	remaining time.Duration
	startedAt time.Time
	playing   bool
	closed    bool
}

func (s *stubPlayer) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing || s.closed {
		return
	}
	s.playing = true
	s.startedAt = time.Now()
}

func (s *stubPlayer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.remaining -= time.Since(s.startedAt)
	s.playing = false
}

func (s *stubPlayer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.closed {
		return false
	}
	return time.Since(s.startedAt) < s.remaining
}

func (s *stubPlayer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	return nil
}
