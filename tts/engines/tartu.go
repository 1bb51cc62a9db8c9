package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/audio"
	"github.com/nullp2ike/speech-practice/tts/cache"
)

// wavHeaderSize is the smallest payload that can hold a RIFF header; a
// shorter response is an error page, not audio.
const wavHeaderSize = 44

// Tartu synthesizes Estonian speech through the free TartuNLP cloud
// service. The service takes no credentials, so requests are throttled
// client-side to stay a polite tenant.
type Tartu struct {
	speaker
	cfg     tts.TartuConfig
	client  *http.Client
	limiter *rate.Limiter

	sampleRate int
	channels   int
}

// tartuRequest is the synthesis request body.
type tartuRequest struct {
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
	Speed   float64 `json:"speed"`
}

// NewTartu builds the free cloud engine.
func NewTartu(cfg tts.TartuConfig, cacheCfg cache.Config, out audio.Context) *Tartu {
	return &Tartu{
		speaker: newSpeaker(out, cacheCfg, cfg.Timeout),
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),

		sampleRate: out.SampleRate(),
		channels:   out.ChannelCount(),
	}
}

// Speak synthesizes text through the cloud service and plays it. The
// voice identifier names a speaker; empty selects the configured
// default.
func (t *Tartu) Speak(text string, rateVal float64, voice string, onComplete func(seconds float64), onInterrupt func()) *tts.Token {
	spk := voice
	if spk == "" {
		spk = t.cfg.Speaker
	}
	key := cache.Key(text, "tartu:"+spk, rateVal)
	return t.speak(key,
		func(ctx context.Context) ([]byte, error) {
			return t.synthesize(ctx, text, rateVal, spk)
		},
		func(data []byte) audio.Audio {
			return audio.Audio{
				Data:       data,
				Format:     audio.FormatWAV,
				SampleRate: t.sampleRate,
				Channels:   t.channels,
			}
		},
		onComplete, onInterrupt,
	)
}

func (t *Tartu) synthesize(ctx context.Context, text string, rateVal float64, speakerName string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, tts.NewSynthesisError(tts.KindTimeout, err)
	}

	body, err := json.Marshal(tartuRequest{
		Text:    text,
		Speaker: speakerName,
		Speed:   SpeedForRate(rateVal),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, tts.ClassifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, tts.NewHTTPError(resp.StatusCode, string(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.ClassifyTransport(err)
	}
	if len(data) < wavHeaderSize {
		return nil, tts.NewSynthesisError(tts.KindInvalidAudio,
			fmt.Errorf("response too small to be audio (%d bytes)", len(data)))
	}
	return data, nil
}

// Speakers fetches the voice list from the service.
func (t *Tartu) Speakers(ctx context.Context) ([]string, error) {
	url := strings.TrimSuffix(t.cfg.Endpoint, "/") + "/speakers"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, tts.ClassifyTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, tts.NewHTTPError(resp.StatusCode, string(msg))
	}

	var payload struct {
		Speakers []string `json:"speakers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, tts.NewSynthesisError(tts.KindInvalidAudio, err)
	}
	return payload.Speakers, nil
}
