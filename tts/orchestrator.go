package tts

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nullp2ike/speech-practice/tts/segment"
)

// Orchestrator drives segment-by-segment reading of a single document:
// it owns the segment list, the current position, the echo-pause timer
// and the active synthesis backend, and serializes every transition
// behind one mutex. Backend callbacks carry the turn number they were
// issued under; a callback whose turn no longer matches is from a
// superseded segment and is ignored, so navigation during in-flight
// playback can never double-advance.
type Orchestrator struct {
	mu sync.Mutex

	text     string
	language string
	segments []segment.Segment
	index    int

	playing bool
	paused  bool
	inPause bool

	settings  PlaybackSettings
	factory   BackendFactory
	backend   Synthesizing
	effective Provider

	activeToken *Token
	turn        uint64

	timer          *pauseTimer
	pauseTick      time.Duration
	pauseRemaining time.Duration

	pendingDone    bool
	pendingSeconds float64

	feedback  FeedbackSink
	hasCreds  func() bool
	lastErr   string
	cleanedUp bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFeedback installs a feedback sink. The default sink discards
// everything.
func WithFeedback(f FeedbackSink) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.feedback = f
		}
	}
}

// WithPauseTick overrides the echo-pause timer tick, mainly for tests.
func WithPauseTick(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pauseTick = d
		}
	}
}

// WithCredentials wires the credential store consulted by the provider
// selection policy. Without it the paid backend is never selected.
func WithCredentials(store CredentialStore) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.hasCreds = func() bool { return store.Has(ProviderAzure) }
		}
	}
}

// NewOrchestrator segments the document and builds the backend chosen by
// the provider selection policy. The document never changes over the
// orchestrator's lifetime; open a new one for a new text.
func NewOrchestrator(text, language string, settings PlaybackSettings, factory BackendFactory, opts ...Option) (*Orchestrator, error) {
	settings.ClampRate()
	o := &Orchestrator{
		text:      text,
		language:  NormalizeLanguage(language),
		segments:  segment.Split(text, settings.PauseGranularity),
		settings:  settings,
		factory:   factory,
		pauseTick: defaultPauseTick,
		feedback:  NopFeedback{},
		hasCreds:  func() bool { return false },
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.rebuildBackendLocked(); err != nil {
		return nil, err
	}
	return o, nil
}

// rebuildBackendLocked resolves the effective provider and swaps in a
// fresh backend, releasing the previous one. Callers hold the lock (or
// are the constructor).
func (o *Orchestrator) rebuildBackendLocked() error {
	eff := EffectiveProvider(o.settings.Provider, o.language, o.hasCreds())
	if o.backend != nil {
		o.backend.Cleanup()
	}
	b, err := o.factory(eff, o.settings)
	if err != nil {
		return err
	}
	o.backend = b
	o.effective = eff
	log.Debug("synthesis backend ready", "provider", eff, "language", o.language)
	return nil
}

// Play starts or restarts reading from the current segment. It is a
// no-op on an empty document, while already playing, or after Cleanup.
func (o *Orchestrator) Play() {
	o.mu.Lock()
	if o.cleanedUp || len(o.segments) == 0 || (o.playing && !o.paused) {
		o.mu.Unlock()
		return
	}
	if o.paused {
		o.mu.Unlock()
		o.Resume()
		return
	}
	o.playing = true
	o.lastErr = ""
	notify := o.speakCurrentLocked()
	o.mu.Unlock()
	notify()
}

// speakCurrentLocked issues a new turn and asks the backend to speak the
// current segment. It returns the feedback notification to run after the
// lock is released.
func (o *Orchestrator) speakCurrentLocked() func() {
	o.turn++
	turn := o.turn
	seg := o.segments[o.index]
	voice := o.voiceLocked()
	o.activeToken = o.backend.Speak(seg.Text, o.settings.Rate, voice,
		func(seconds float64) { o.handleSegmentDone(turn, seconds) },
		func() {},
	)
	idx := o.index
	fb := o.feedback
	return func() { fb.PlaybackStarted(idx) }
}

// voiceLocked picks the voice identifier for the effective backend: the
// explicit choice when set, otherwise the per-language preference for the
// paid backend.
func (o *Orchestrator) voiceLocked() string {
	if o.settings.VoiceIdentifier != "" {
		return o.settings.VoiceIdentifier
	}
	if o.effective == ProviderAzure {
		return o.settings.VoiceFor(o.language)
	}
	return ""
}

// handleSegmentDone is the completion callback for the segment spoken
// under the given turn. A zero duration paired with a backend error
// message means the attempt failed.
func (o *Orchestrator) handleSegmentDone(turn uint64, seconds float64) {
	o.mu.Lock()
	if o.cleanedUp || turn != o.turn || !o.playing {
		o.mu.Unlock()
		return
	}
	o.activeToken = nil

	if seconds == 0 {
		if msg := o.backend.LastError(); msg != "" {
			o.playing = false
			o.lastErr = msg
			idx := o.index
			fb := o.feedback
			o.mu.Unlock()
			log.Error("synthesis failed", "segment", idx, "err", msg)
			fb.PlaybackFailed(msg)
			return
		}
	}

	idx := o.index
	fb := o.feedback

	// A completion racing a user Pause is held back until Resume, so
	// pausing never lets the reading run on.
	if o.paused {
		o.pendingDone = true
		o.pendingSeconds = seconds
		o.mu.Unlock()
		fb.SegmentCompleted(idx)
		return
	}

	notify := o.finishSegmentLocked(seconds)
	o.mu.Unlock()
	fb.SegmentCompleted(idx)
	notify()
}

// finishSegmentLocked starts the echo pause for a finished segment, or
// advances straight to the next one. Callers hold the lock and run the
// returned notification after releasing it.
func (o *Orchestrator) finishSegmentLocked(seconds float64) func() {
	if o.settings.PauseEnabled && seconds > 0 {
		turn := o.turn
		o.inPause = true
		duration := time.Duration(seconds * float64(time.Second))
		o.pauseRemaining = duration
		o.timer = newPauseTimer(duration, o.pauseTick,
			func(remaining time.Duration) { o.setPauseRemaining(turn, remaining) },
			func() { o.pauseDone(turn) },
		)
		return func() {}
	}
	return o.advanceLocked()
}

func (o *Orchestrator) setPauseRemaining(turn uint64, remaining time.Duration) {
	o.mu.Lock()
	if turn == o.turn && o.inPause {
		o.pauseRemaining = remaining
	}
	o.mu.Unlock()
}

// pauseDone fires when the echo pause elapses.
func (o *Orchestrator) pauseDone(turn uint64) {
	o.mu.Lock()
	if o.cleanedUp || turn != o.turn || !o.inPause {
		o.mu.Unlock()
		return
	}
	o.inPause = false
	o.timer = nil
	o.pauseRemaining = 0
	notify := o.advanceLocked()
	o.mu.Unlock()
	notify()
}

// advanceLocked moves to the next segment and speaks it, or finishes the
// reading at the end of the document. It returns the feedback
// notification to run after the lock is released.
func (o *Orchestrator) advanceLocked() func() {
	if o.index+1 >= len(o.segments) {
		o.playing = false
		o.activeToken = nil
		fb := o.feedback
		return func() { fb.SpeechFinished() }
	}
	o.index++
	idx := o.index
	fb := o.feedback
	speak := o.speakCurrentLocked()
	return func() {
		fb.Navigated(idx)
		speak()
	}
}

// Pause pauses playback, or freezes the echo-pause countdown when called
// during a pause interval.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cleanedUp || !o.playing || o.paused {
		return
	}
	o.paused = true
	if o.inPause {
		if o.timer != nil {
			o.pauseRemaining = o.timer.remaining()
			o.timer.cancel()
			o.timer = nil
		}
		return
	}
	o.backend.Pause()
}

// Resume continues paused playback. Resuming out of a frozen echo pause
// skips the remainder of the pause and moves straight to the next
// segment.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	if o.cleanedUp || !o.paused {
		o.mu.Unlock()
		return
	}
	o.paused = false
	if o.inPause {
		o.inPause = false
		o.pauseRemaining = 0
		notify := o.advanceLocked()
		o.mu.Unlock()
		notify()
		return
	}
	if o.pendingDone {
		o.pendingDone = false
		seconds := o.pendingSeconds
		o.pendingSeconds = 0
		notify := o.finishSegmentLocked(seconds)
		o.mu.Unlock()
		notify()
		return
	}
	o.backend.Resume()
	o.mu.Unlock()
}

// Stop halts the reading and resets pause state. The position stays on
// the current segment.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.cleanedUp {
		o.mu.Unlock()
		return
	}
	o.haltLocked()
	o.playing = false
	o.paused = false
	o.mu.Unlock()
}

// haltLocked cancels the in-flight segment and the pause timer and bumps
// the turn so late callbacks self-suppress.
func (o *Orchestrator) haltLocked() {
	o.turn++
	if o.timer != nil {
		o.timer.cancel()
		o.timer = nil
	}
	o.inPause = false
	o.pauseRemaining = 0
	o.pendingDone = false
	o.pendingSeconds = 0
	if o.activeToken != nil {
		o.backend.Cancel(o.activeToken)
		o.activeToken = nil
	} else {
		o.backend.Stop()
	}
}

// Next moves to the following segment. At the end of the document it is
// a no-op.
func (o *Orchestrator) Next() { o.navigate(+1) }

// Previous moves to the preceding segment. At the start of the document
// it is a no-op.
func (o *Orchestrator) Previous() { o.navigate(-1) }

func (o *Orchestrator) navigate(delta int) {
	o.mu.Lock()
	target := o.index + delta
	if o.cleanedUp || target < 0 || target >= len(o.segments) {
		o.mu.Unlock()
		return
	}
	notify := o.goToLocked(target)
	o.mu.Unlock()
	notify()
}

// GoTo jumps to the segment at index i. Out-of-range indices are
// ignored.
func (o *Orchestrator) GoTo(i int) {
	o.mu.Lock()
	if o.cleanedUp || i < 0 || i >= len(o.segments) {
		o.mu.Unlock()
		return
	}
	notify := o.goToLocked(i)
	o.mu.Unlock()
	notify()
}

// GoToStart jumps to the first segment.
func (o *Orchestrator) GoToStart() { o.GoTo(0) }

// GoToEnd jumps to the last segment.
func (o *Orchestrator) GoToEnd() {
	o.mu.Lock()
	if o.cleanedUp || len(o.segments) == 0 {
		o.mu.Unlock()
		return
	}
	notify := o.goToLocked(len(o.segments) - 1)
	o.mu.Unlock()
	notify()
}

// goToLocked cancels whatever is in flight, moves the cursor and, when a
// reading is active, restarts speech at the new segment. Callers hold
// the lock and run the returned notification after releasing it.
func (o *Orchestrator) goToLocked(target int) func() {
	o.haltLocked()
	o.index = target
	o.paused = false
	idx := o.index
	fb := o.feedback
	if !o.playing {
		return func() { fb.Navigated(idx) }
	}
	speak := o.speakCurrentLocked()
	return func() {
		fb.Navigated(idx)
		speak()
	}
}

// CanGoForward reports whether a following segment exists.
func (o *Orchestrator) CanGoForward() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index+1 < len(o.segments)
}

// CanGoBack reports whether a preceding segment exists.
func (o *Orchestrator) CanGoBack() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index > 0 && len(o.segments) > 0
}

// SetGranularity re-segments the document and maps the position onto the
// new segment list: the segment containing the old segment's start
// offset, or failing that the first segment at or past it, or the last
// one. An active reading restarts at the mapped segment.
func (o *Orchestrator) SetGranularity(g segment.Granularity) {
	o.mu.Lock()
	if o.cleanedUp || g == o.settings.PauseGranularity {
		o.mu.Unlock()
		return
	}
	wasPlaying := o.playing && !o.paused
	o.haltLocked()
	o.playing = false
	o.paused = false

	offset := 0
	if o.index < len(o.segments) {
		offset = o.segments[o.index].Start
	}
	o.settings.PauseGranularity = g
	o.segments = segment.Split(o.text, g)
	o.index = indexForOffset(o.segments, offset)

	var notify func()
	if wasPlaying && len(o.segments) > 0 {
		o.playing = true
		notify = o.speakCurrentLocked()
	}
	o.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// indexForOffset finds the segment containing the byte offset, falling
// back to the first segment starting at or after it, then to the last.
func indexForOffset(segs []segment.Segment, offset int) int {
	if len(segs) == 0 {
		return 0
	}
	for i, s := range segs {
		if offset >= s.Start && offset < s.End {
			return i
		}
	}
	for i, s := range segs {
		if s.Start >= offset {
			return i
		}
	}
	return len(segs) - 1
}

// SetProvider switches the requested backend. The voice identifier is
// cleared because identifiers are backend-scoped, and the change counts
// as an explicit user choice. An active reading restarts on the new
// backend at the current segment.
func (o *Orchestrator) SetProvider(p Provider) error {
	o.mu.Lock()
	if o.cleanedUp || !p.Valid() {
		o.mu.Unlock()
		return ErrBackendUnavailable
	}
	wasPlaying := o.playing && !o.paused
	o.haltLocked()
	o.playing = false
	o.paused = false
	o.settings.Provider = p
	o.settings.ProviderExplicitlyChosen = true
	o.settings.VoiceIdentifier = ""
	if err := o.rebuildBackendLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	var notify func()
	if wasPlaying && len(o.segments) > 0 {
		o.playing = true
		notify = o.speakCurrentLocked()
	}
	o.mu.Unlock()
	if notify != nil {
		notify()
	}
	return nil
}

// SetVoice selects a voice on the current backend. For the paid backend
// the choice is also remembered as the per-language preference.
func (o *Orchestrator) SetVoice(voice string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cleanedUp {
		return
	}
	o.settings.VoiceIdentifier = voice
	if o.effective == ProviderAzure && voice != "" {
		o.settings.SetVoiceFor(o.language, voice)
	}
}

// SetRate updates the normalized speech rate, clamped to its bounds. The
// new rate takes effect from the next spoken segment.
func (o *Orchestrator) SetRate(rate float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.SetRate(rate)
}

// SetPauseEnabled toggles the echo pause. Disabling it mid-pause lets
// the running interval finish.
func (o *Orchestrator) SetPauseEnabled(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.PauseEnabled = enabled
}

// Settings returns a copy of the current playback settings. Persistence
// is the caller's concern.
func (o *Orchestrator) Settings() PlaybackSettings {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.settings
	if s.PerLanguageVoice != nil {
		m := make(map[string]string, len(s.PerLanguageVoice))
		for k, v := range s.PerLanguageVoice {
			m[k] = v
		}
		s.PerLanguageVoice = m
	}
	return s
}

// Segments returns a copy of the segment list.
func (o *Orchestrator) Segments() []segment.Segment {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]segment.Segment, len(o.segments))
	copy(out, o.segments)
	return out
}

// Index returns the current segment index.
func (o *Orchestrator) Index() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index
}

// IsPlaying reports whether a reading is active, including while paused
// or inside an echo pause.
func (o *Orchestrator) IsPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

// IsPaused reports whether the reading is paused by the user.
func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// IsInPauseInterval reports whether the orchestrator is waiting out an
// echo pause.
func (o *Orchestrator) IsInPauseInterval() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inPause
}

// PauseTimeRemaining returns the remaining echo-pause time, zero outside
// a pause interval.
func (o *Orchestrator) PauseTimeRemaining() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.inPause {
		return 0
	}
	if o.timer != nil && !o.paused {
		return o.timer.remaining()
	}
	return o.pauseRemaining
}

// Effective returns the provider actually instantiated by the selection
// policy.
func (o *Orchestrator) Effective() Provider {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.effective
}

// Language returns the normalized document language.
func (o *Orchestrator) Language() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.language
}

// LastError returns the most recent playback failure message, or the
// empty string.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastErr != "" {
		return o.lastErr
	}
	if o.backend != nil {
		return o.backend.LastError()
	}
	return ""
}

// Cleanup releases the backend and stops all timers. It is idempotent
// and every later call on the orchestrator becomes a no-op.
func (o *Orchestrator) Cleanup() {
	o.mu.Lock()
	if o.cleanedUp {
		o.mu.Unlock()
		return
	}
	o.cleanedUp = true
	o.turn++
	if o.timer != nil {
		o.timer.cancel()
		o.timer = nil
	}
	o.playing = false
	o.paused = false
	o.inPause = false
	b := o.backend
	o.mu.Unlock()
	if b != nil {
		b.Cleanup()
	}
}
