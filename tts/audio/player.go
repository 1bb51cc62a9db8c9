package audio

import (
	"bytes"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// State is the playback engine state.
type State int

const (
	// StateIdle means nothing is loaded.
	StateIdle State = iota
	// StatePlaying means audio is actively playing.
	StatePlaying
	// StatePaused means playback is paused mid-stream.
	StatePaused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// watchInterval is how often the completion watcher polls the output.
const watchInterval = 20 * time.Millisecond

// Player plays one synthesized segment at a time and tracks wall-clock
// elapsed duration across pause/resume cycles. It distinguishes natural
// completion (onComplete with total elapsed seconds) from an early stop
// (onInterrupt), and auto-pauses on external audio interruptions.
type Player struct {
	ctx Context

	mu          sync.Mutex
	state       State
	out         OutputPlayer
	startedAt   time.Time
	accumulated time.Duration
	onComplete  func(seconds float64)
	onInterrupt func()
	gen         uint64
	interrupted bool
	lastErr     string
}

// NewPlayer creates a player over the given output context.
func NewPlayer(ctx Context) *Player {
	return &Player{ctx: ctx}
}

// Play stops any current playback, decodes the payload and starts playing
// it. Decode and device failures are stored as a retrievable error message
// and returned; callbacks never receive them.
func (p *Player) Play(a Audio, onComplete func(seconds float64), onInterrupt func()) error {
	p.Stop()

	pcm, err := decode(a)
	if err != nil {
		p.setErr(err.Error())
		return err
	}

	out, err := p.ctx.NewPlayer(bytes.NewReader(pcm))
	if err != nil {
		p.setErr(err.Error())
		return err
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.out = out
	p.state = StatePlaying
	p.startedAt = time.Now()
	p.accumulated = 0
	p.onComplete = onComplete
	p.onInterrupt = onInterrupt
	p.interrupted = false
	p.lastErr = ""
	p.mu.Unlock()

	out.Play()
	go p.watch(gen, out)
	return nil
}

// watch polls for natural completion. A generation mismatch means a newer
// Play or a Stop superseded this stream.
func (p *Player) watch(gen uint64, out OutputPlayer) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		if p.state == StatePaused {
			p.mu.Unlock()
			continue
		}
		if p.state != StatePlaying {
			p.mu.Unlock()
			return
		}
		if out.IsPlaying() {
			p.mu.Unlock()
			continue
		}
		// Natural end of stream.
		elapsed := p.accumulated + time.Since(p.startedAt)
		cb := p.onComplete
		p.reset()
		p.mu.Unlock()

		_ = out.Close()
		if cb != nil {
			cb(elapsed.Seconds())
		}
		return
	}
}

// Pause pauses active playback, accumulating the elapsed stretch so the
// final duration stays accurate across pause/resume cycles.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseLocked()
}

func (p *Player) pauseLocked() {
	if p.state != StatePlaying {
		return
	}
	p.out.Pause()
	p.accumulated += time.Since(p.startedAt)
	p.state = StatePaused
}

// Resume continues paused playback.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumeLocked()
}

func (p *Player) resumeLocked() {
	if p.state != StatePaused {
		return
	}
	p.out.Play()
	p.startedAt = time.Now()
	p.state = StatePlaying
	p.interrupted = false
}

// Stop forces the player to Idle. If playback was actively in progress
// (not paused) onInterrupt fires so callers can tell "stopped early" from
// "finished naturally".
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return
	}
	wasPlaying := p.state == StatePlaying
	out := p.out
	cb := p.onInterrupt
	p.gen++
	p.reset()
	p.mu.Unlock()

	if out != nil {
		_ = out.Close()
	}
	if wasPlaying && cb != nil {
		cb()
	}
}

// reset clears playback state. Callers hold the lock.
func (p *Player) reset() {
	p.state = StateIdle
	p.out = nil
	p.onComplete = nil
	p.onInterrupt = nil
	p.accumulated = 0
	p.interrupted = false
}

// BeginInterruption handles an external audio interruption (for example
// another application claiming the output device) by auto-pausing.
func (p *Player) BeginInterruption() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return
	}
	log.Debug("audio interruption began, auto-pausing")
	p.pauseLocked()
	p.interrupted = true
}

// EndInterruption handles the end of an external interruption,
// auto-resuming when the signal carries a should-resume hint.
func (p *Player) EndInterruption(shouldResume bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.interrupted {
		return
	}
	p.interrupted = false
	if shouldResume && p.state == StatePaused {
		log.Debug("audio interruption ended, auto-resuming")
		p.resumeLocked()
	}
}

// State returns the current playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Elapsed returns wall-clock playback time so far, excluding pauses.
func (p *Player) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePlaying {
		return p.accumulated + time.Since(p.startedAt)
	}
	return p.accumulated
}

// LastError returns the most recent decode or device error message.
func (p *Player) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Close stops playback without firing callbacks and detaches the output.
func (p *Player) Close() {
	p.mu.Lock()
	out := p.out
	p.gen++
	p.reset()
	p.mu.Unlock()
	if out != nil {
		_ = out.Close()
	}
}

func (p *Player) setErr(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = msg
}
