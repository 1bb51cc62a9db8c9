package engines

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/audio"
	"github.com/nullp2ike/speech-practice/tts/cache"
)

// Piper synthesizes speech on-device by running the piper binary once
// per segment. It works offline and needs no credentials, which makes
// it the fallback of last resort in the provider selection policy.
type Piper struct {
	speaker
	cfg        tts.PiperConfig
	sampleRate int
	channels   int
}

// NewPiper builds the on-device engine over the given output context.
func NewPiper(cfg tts.PiperConfig, cacheCfg cache.Config, out audio.Context) *Piper {
	return &Piper{
		speaker:    newSpeaker(out, cacheCfg, cfg.Timeout),
		cfg:        cfg,
		sampleRate: out.SampleRate(),
		channels:   out.ChannelCount(),
	}
}

// Speak synthesizes text through the piper subprocess and plays it. The
// voice identifier names a model; empty selects the configured default.
func (p *Piper) Speak(text string, rate float64, voice string, onComplete func(seconds float64), onInterrupt func()) *tts.Token {
	model := voice
	if model == "" {
		model = p.cfg.Model
	}
	key := cache.Key(text, "piper:"+model, rate)
	return p.speak(key,
		func(ctx context.Context) ([]byte, error) {
			return p.synthesize(ctx, text, rate, model)
		},
		func(data []byte) audio.Audio {
			return audio.Audio{
				Data:       data,
				Format:     audio.FormatPCM16,
				SampleRate: p.sampleRate,
				Channels:   p.channels,
			}
		},
		onComplete, onInterrupt,
	)
}

// synthesize runs the binary with the text on stdin and raw PCM on
// stdout. Piper's length scale is the inverse of the speed multiplier:
// a shorter utterance is a faster one.
func (p *Piper) synthesize(ctx context.Context, text string, rate float64, model string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	lengthScale := 1.0 / SpeedForRate(rate)

	args := []string{
		"--model", p.modelPath(model),
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.3f", lengthScale),
	}

	cmd := exec.CommandContext(ctx, p.cfg.Binary, args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, tts.NewSynthesisError(tts.KindTimeout, fmt.Errorf("piper timed out: %w", ctx.Err()))
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", tts.ErrBackendUnavailable, msg)
	}

	data := stdout.Bytes()
	if len(data) == 0 {
		return nil, tts.NewSynthesisError(tts.KindInvalidAudio, fmt.Errorf("piper produced no audio"))
	}
	return data, nil
}

// modelPath resolves a model name against the configured model
// directory. A name that already looks like a path is used as is.
func (p *Piper) modelPath(model string) string {
	if strings.ContainsRune(model, filepath.Separator) || strings.HasSuffix(model, ".onnx") {
		return model
	}
	if p.cfg.ModelDir == "" {
		return model + ".onnx"
	}
	return filepath.Join(p.cfg.ModelDir, model+".onnx")
}

// Available reports whether the piper binary can be found on PATH or at
// its configured location.
func (p *Piper) Available() bool {
	_, err := exec.LookPath(p.cfg.Binary)
	return err == nil
}
