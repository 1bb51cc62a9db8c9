//go:build nocgo

package audio

import "github.com/charmbracelet/log"

// NewContext returns the silent stub when built without an audio
// toolchain. Playback timing still runs, speakers stay quiet.
func NewContext(sampleRate, channels int) (Context, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannelCount
	}
	log.Debug("audio disabled at build time, using the silent context",
		"sampleRate", sampleRate, "channels", channels)
	return &StubContext{Rate: sampleRate, Channels: channels}, nil
}
