//go:build !nocgo

package audio

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// otoContext is the production Context backed by the platform audio
// device through oto.
type otoContext struct {
	ctx        *oto.Context
	sampleRate int
	channels   int
	mu         sync.Mutex
	closed     bool
}

// NewContext opens the platform audio device. Zero arguments fall back to
// the default output parameters.
func NewContext(sampleRate, channels int) (Context, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannelCount
	}

	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	// CoreAudio prefers larger buffers than ALSA/WASAPI.
	switch runtime.GOOS {
	case "darwin":
		opts.BufferSize = 100 * time.Millisecond
	default:
		opts.BufferSize = 50 * time.Millisecond
	}

	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("audio device: %w", err)
	}
	<-ready
	log.Debug("audio context ready", "sampleRate", sampleRate, "channels", channels)

	return &otoContext{ctx: ctx, sampleRate: sampleRate, channels: channels}, nil
}

func (c *otoContext) NewPlayer(r io.Reader) (OutputPlayer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("audio context closed")
	}
	return &otoPlayer{p: c.ctx.NewPlayer(r)}, nil
}

func (c *otoContext) SampleRate() int   { return c.sampleRate }
func (c *otoContext) ChannelCount() int { return c.channels }

func (c *otoContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	// oto contexts cannot be closed; players are closed individually.
	return nil
}

type otoPlayer struct {
	p *oto.Player
}

func (o *otoPlayer) Play()           { o.p.Play() }
func (o *otoPlayer) Pause()          { o.p.Pause() }
func (o *otoPlayer) IsPlaying() bool { return o.p.IsPlaying() }
func (o *otoPlayer) Close() error    { return o.p.Close() }
