package tts

import (
	"github.com/nullp2ike/speech-practice/tts/segment"
)

// Provider identifies a synthesis backend implementation.
type Provider string

const (
	// ProviderPiper is the on-device subprocess synthesizer.
	ProviderPiper Provider = "piper"
	// ProviderTartu is the free cloud backend (Estonian only).
	ProviderTartu Provider = "tartu"
	// ProviderAzure is the paid multi-language neural cloud backend.
	ProviderAzure Provider = "azure"
	// ProviderAutomatic is a deprecated persisted value kept for
	// backward compatibility; it means "use the per-language default".
	ProviderAutomatic Provider = "automatic"
)

// Valid reports whether p names a known provider, including the legacy
// automatic value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderPiper, ProviderTartu, ProviderAzure, ProviderAutomatic:
		return true
	}
	return false
}

// Rate bounds for the normalized speech rate.
const (
	MinRate = 0.1
	MaxRate = 1.0
)

// PlaybackSettings holds the user-facing playback configuration. Rate is
// clamped on every write; the zero value is not useful, use
// DefaultSettings.
type PlaybackSettings struct {
	// Rate is the normalized speech rate in [0.1, 1.0].
	Rate float64

	// PauseEnabled turns on the echo pause after each segment.
	PauseEnabled bool

	// PauseGranularity selects sentence or paragraph segmentation.
	PauseGranularity segment.Granularity

	// VoiceIdentifier is a backend-scoped voice id; empty means the
	// backend's own default. Identifiers are never valid across
	// backends.
	VoiceIdentifier string

	// Provider is the requested backend; the effective backend is
	// decided by the provider selection policy.
	Provider Provider

	// PerLanguageVoice maps a language code to a preferred voice for
	// the paid backend.
	PerLanguageVoice map[string]string

	// ProviderExplicitlyChosen records whether the user picked the
	// provider themselves rather than inheriting a default.
	ProviderExplicitlyChosen bool
}

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() PlaybackSettings {
	return PlaybackSettings{
		Rate:                     0.5,
		PauseEnabled:             true,
		PauseGranularity:         segment.Sentence,
		Provider:                 ProviderPiper,
		PerLanguageVoice:         map[string]string{},
		ProviderExplicitlyChosen: false,
	}
}

// ClampRate forces Rate back into [MinRate, MaxRate].
func (s *PlaybackSettings) ClampRate() {
	if s.Rate < MinRate {
		s.Rate = MinRate
	}
	if s.Rate > MaxRate {
		s.Rate = MaxRate
	}
}

// SetRate writes a clamped rate.
func (s *PlaybackSettings) SetRate(rate float64) {
	s.Rate = rate
	s.ClampRate()
}

// VoiceFor returns the stored per-language voice preference, if any.
func (s *PlaybackSettings) VoiceFor(language string) string {
	if s.PerLanguageVoice == nil {
		return ""
	}
	return s.PerLanguageVoice[language]
}

// SetVoiceFor stores a per-language voice preference.
func (s *PlaybackSettings) SetVoiceFor(language, voice string) {
	if s.PerLanguageVoice == nil {
		s.PerLanguageVoice = map[string]string{}
	}
	s.PerLanguageVoice[language] = voice
}
