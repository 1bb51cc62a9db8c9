// Package tts provides the speech-practice playback core: it turns a
// document into navigable segments and reads them aloud through one of
// several interchangeable synthesis backends, with echo pauses and
// manual navigation.
package tts

// Synthesizing is the capability contract implemented by every synthesis
// backend (on-device and cloud). Speak is non-blocking: it stops any prior
// activity, issues a fresh cancellation token and returns it immediately
// while synthesis and playback proceed in the background.
type Synthesizing interface {
	// Speak synthesizes and plays text at the given normalized rate
	// (0.1 to 1.0) using the given backend-scoped voice identifier.
	// Exactly one of the callbacks fires per attempt unless the attempt
	// is cancelled: onComplete receives the measured playback duration
	// in seconds on natural completion, onInterrupt fires when playback
	// was stopped early. A failure is reported as onComplete(0) with the
	// message retrievable through LastError.
	Speak(text string, rate float64, voice string, onComplete func(seconds float64), onInterrupt func()) *Token

	// Pause pauses current playback, if any.
	Pause()

	// Resume resumes paused playback, if any.
	Resume()

	// Stop halts the current activity and invalidates its token.
	Stop()

	// Cancel marks the token cancelled. If it is the currently active
	// token the backend also force-stops playback and resets; a stale
	// token is only marked so its late completion self-suppresses.
	Cancel(t *Token)

	// Cleanup stops activity, clears the synthesis cache and releases
	// resources. Safe to call more than once.
	Cleanup()

	// LastError returns a human-readable message for the most recent
	// failure, or the empty string.
	LastError() string
}

// BackendFactory builds the backend instance for an effective provider.
// The orchestrator calls it at construction and again whenever the
// provider changes, so the core never imports the engine packages.
type BackendFactory func(provider Provider, settings PlaybackSettings) (Synthesizing, error)

// FeedbackSink receives fire-and-forget notifications from the
// orchestrator. Implementations must not call back into the orchestrator.
type FeedbackSink interface {
	Navigated(index int)
	SegmentCompleted(index int)
	PlaybackStarted(index int)
	PlaybackFailed(message string)
	SpeechFinished()
}

// NopFeedback is a FeedbackSink that ignores every notification.
type NopFeedback struct{}

func (NopFeedback) Navigated(int)          {}
func (NopFeedback) SegmentCompleted(int)   {}
func (NopFeedback) PlaybackStarted(int)    {}
func (NopFeedback) PlaybackFailed(string)  {}
func (NopFeedback) SpeechFinished()        {}

// DocumentStore reads the speech being practiced.
type DocumentStore interface {
	// Document returns the practice text and its language code.
	Document() (text string, language string, err error)
}

// SettingsStore loads and persists playback settings. Load must fall
// back to defaults when the stored value is missing or corrupt.
type SettingsStore interface {
	Load() (PlaybackSettings, error)
	Save(PlaybackSettings) error
}

// Credentials holds the paid backend's API key and service region.
type Credentials struct {
	Key    string `json:"key"`
	Region string `json:"region"`
}

// CredentialStore persists cloud backend credentials.
type CredentialStore interface {
	Has(provider Provider) bool
	Load(provider Provider) (Credentials, bool)
	Save(provider Provider, creds Credentials) error
	Delete(provider Provider) error
}

// LanguageDetector guesses the language of a text. The core only consumes
// the resulting code through the provider selection policy; detection
// itself happens in the editing layer.
type LanguageDetector interface {
	Detect(text string) (language string, ok bool)
}
