package tts

import (
	"sync"
	"time"
)

// defaultPauseTick is how often the pause timer recomputes remaining time.
const defaultPauseTick = 100 * time.Millisecond

// pauseTimer counts down a between-segment pause interval. Remaining time
// is recomputed from the captured start instant on every tick rather than
// decremented, so process suspension or tick jitter never stretches the
// interval.
type pauseTimer struct {
	duration time.Duration
	start    time.Time
	tick     time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// newPauseTimer starts a countdown of the given duration. onTick fires
// roughly every tick period with the remaining duration (never negative)
// and onDone fires exactly once when the interval elapses, unless the
// timer is cancelled first.
func newPauseTimer(duration, tick time.Duration, onTick func(remaining time.Duration), onDone func()) *pauseTimer {
	if tick <= 0 {
		tick = defaultPauseTick
	}
	t := &pauseTimer{
		duration: duration,
		start:    time.Now(),
		tick:     tick,
		stopCh:   make(chan struct{}),
	}
	go t.run(onTick, onDone)
	return t
}

func (t *pauseTimer) run(onTick func(time.Duration), onDone func()) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			remaining := t.duration - time.Since(t.start)
			if remaining <= 0 {
				if onTick != nil {
					onTick(0)
				}
				if onDone != nil {
					onDone()
				}
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
}

// remaining reports how much of the interval is left right now.
func (t *pauseTimer) remaining() time.Duration {
	r := t.duration - time.Since(t.start)
	if r < 0 {
		return 0
	}
	return r
}

// cancel stops the countdown. Neither callback fires after cancel
// returns if the done callback has not already been entered.
func (t *pauseTimer) cancel() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}
