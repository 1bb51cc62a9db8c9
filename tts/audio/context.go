// Package audio plays synthesized audio and tracks elapsed playback time
// independent of which backend produced the bytes.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Default output parameters shared by all backends.
const (
	DefaultSampleRate   = 22050
	DefaultChannelCount = 1
)

// Format identifies the container of a synthesized payload.
type Format int

const (
	// FormatPCM16 is raw signed 16-bit little-endian PCM.
	FormatPCM16 Format = iota
	// FormatWAV is a RIFF/WAVE container around PCM16.
	FormatWAV
	// FormatMP3 is MPEG layer 3 compressed audio.
	FormatMP3
)

// Audio is one synthesized payload ready for playback.
type Audio struct {
	Data       []byte
	Format     Format
	SampleRate int
	Channels   int
}

// Context produces output players. The production implementation wraps an
// oto context; the stub implementation plays silently in accelerated time
// for tests and degraded operation.
type Context interface {
	// NewPlayer creates a player over a PCM16 stream.
	NewPlayer(r io.Reader) (OutputPlayer, error)

	// SampleRate returns the context's fixed output sample rate.
	SampleRate() int

	// ChannelCount returns the number of output channels.
	ChannelCount() int

	// Close releases the audio device.
	Close() error
}

// OutputPlayer is the minimal control surface over one playback stream.
type OutputPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// DetectFormat sniffs the payload container.
func DetectFormat(data []byte) Format {
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return FormatWAV
	}
	if len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")) {
		return FormatMP3
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return FormatMP3
	}
	return FormatPCM16
}

// decode unwraps the payload into raw PCM16 bytes.
func decode(a Audio) ([]byte, error) {
	switch a.Format {
	case FormatPCM16:
		return a.Data, nil
	case FormatWAV:
		return decodeWAV(a.Data)
	case FormatMP3:
		dec, err := mp3.NewDecoder(bytes.NewReader(a.Data))
		if err != nil {
			return nil, fmt.Errorf("mp3 decode: %w", err)
		}
		pcm, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("mp3 decode: %w", err)
		}
		return pcm, nil
	}
	return nil, fmt.Errorf("unsupported audio format %d", a.Format)
}

// decodeWAV extracts the data chunk from a RIFF/WAVE payload.
func decodeWAV(data []byte) ([]byte, error) {
	if len(data) < 44 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, errors.New("not a RIFF/WAVE payload")
	}
	// Walk chunks after the 12-byte RIFF header.
	pos := 12
	for pos+8 <= len(data) {
		id := data[pos : pos+4]
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		if bytes.Equal(id, []byte("data")) {
			return data[body : body+size], nil
		}
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}
	return nil, errors.New("wav payload has no data chunk")
}
