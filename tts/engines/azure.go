package engines

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/audio"
	"github.com/nullp2ike/speech-practice/tts/cache"
)

// minAzurePayload guards against HTML error pages returned with a 200.
const minAzurePayload = 100

// voiceNamePattern matches Azure short voice names like
// "en-US-JennyNeural".
var voiceNamePattern = regexp.MustCompile(`^[a-z]{2,3}-[A-Za-z]{2,4}-\w+$`)

// ValidVoice reports whether the identifier is plausibly an Azure voice
// short name. Identifiers from the other backends never match.
func ValidVoice(id string) bool {
	return voiceNamePattern.MatchString(id)
}

// VoiceInfo describes one voice from the service catalog.
type VoiceInfo struct {
	Name        string `json:"ShortName"`
	DisplayName string `json:"DisplayName"`
	Locale      string `json:"Locale"`
	Gender      string `json:"Gender"`
	VoiceType   string `json:"VoiceType"`
}

// Azure synthesizes speech through the Azure Cognitive Services neural
// voices. It requires a subscription key and region; a missing key makes
// every Speak fail immediately so the caller's fallback policy can react.
type Azure struct {
	speaker
	cfg      tts.AzureConfig
	creds    tts.Credentials
	language string
	client   *http.Client

	sampleRate int
	channels   int

	voicesMu sync.Mutex
	voices   []VoiceInfo
}

// NewAzure builds the paid cloud engine for the given document language.
func NewAzure(cfg tts.AzureConfig, creds tts.Credentials, language string, cacheCfg cache.Config, out audio.Context) *Azure {
	return &Azure{
		speaker:  newSpeaker(out, cacheCfg, cfg.Timeout),
		cfg:      cfg,
		creds:    creds,
		language: tts.NormalizeLanguage(language),
		client:   &http.Client{Timeout: cfg.Timeout},

		sampleRate: out.SampleRate(),
		channels:   out.ChannelCount(),
	}
}

func (a *Azure) endpoint() string {
	return fmt.Sprintf(a.cfg.EndpointTemplate, a.creds.Region)
}

// Speak synthesizes text through the service and plays it. With no
// stored credentials the attempt fails immediately; text is keyed by
// hash so long segments stay out of the cache key.
func (a *Azure) Speak(text string, rateVal float64, voice string, onComplete func(seconds float64), onInterrupt func()) *tts.Token {
	if a.creds.Key == "" || a.creds.Region == "" {
		a.Stop()
		token := tts.NewToken()
		a.mu.Lock()
		a.lastErr = tts.ErrMissingCredentials.Error()
		a.mu.Unlock()
		go onComplete(0)
		return token
	}

	sum := sha256.Sum256([]byte(text))
	key := cache.Key(hex.EncodeToString(sum[:]), "azure:"+voice, rateVal)
	return a.speak(key,
		func(ctx context.Context) ([]byte, error) {
			return a.synthesize(ctx, text, rateVal, voice)
		},
		func(data []byte) audio.Audio {
			return audio.Audio{
				Data:       data,
				Format:     audio.FormatMP3,
				SampleRate: a.sampleRate,
				Channels:   a.channels,
			}
		},
		onComplete, onInterrupt,
	)
}

func (a *Azure) synthesize(ctx context.Context, text string, rateVal float64, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	voice, err := a.resolveVoice(ctx, voice)
	if err != nil {
		return nil, err
	}

	ssml, err := buildSSML(text, voice, rateVal)
	if err != nil {
		return nil, err
	}

	url := a.endpoint() + "/cognitiveservices/v1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.creds.Key)
	req.Header.Set("X-Microsoft-OutputFormat", a.cfg.OutputFormat)

	resp, err := a.client.Do(req)
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
	if len(data) < minAzurePayload {
		return nil, tts.NewSynthesisError(tts.KindInvalidAudio,
			fmt.Errorf("response too small to be audio (%d bytes)", len(data)))
	}
	return data, nil
}

// buildSSML renders the synthesis request document. The voice's locale
// drives xml:lang; the text is XML-escaped.
func buildSSML(text, voice string, rateVal float64) (string, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", err
	}
	lang := localeOf(voice)
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice name='%s'><prosody rate='%s'>%s</prosody></voice></speak>`,
		lang, voice, RatePercent(rateVal), escaped.String(),
	), nil
}

// localeOf extracts the locale prefix of a short voice name,
// "en-US-JennyNeural" giving "en-US".
func localeOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

// resolveVoice picks the voice to synthesize with: the explicit choice
// when it looks like one of this service's identifiers, otherwise the
// best catalog match for the document language. Neural voices win, and
// within them female voices are listed first by convention.
func (a *Azure) resolveVoice(ctx context.Context, voice string) (string, error) {
	if ValidVoice(voice) {
		return voice, nil
	}

	voices, err := a.Voices(ctx)
	if err != nil {
		return "", err
	}

	var fallback string
	for _, v := range voices {
		if !strings.HasPrefix(strings.ToLower(v.Locale), a.language) {
			continue
		}
		if v.VoiceType != "" && !strings.EqualFold(v.VoiceType, "Neural") {
			continue
		}
		if strings.EqualFold(v.Gender, "Female") {
			return v.Name, nil
		}
		if fallback == "" {
			fallback = v.Name
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", tts.ErrNoVoices
}

// Voices fetches the catalog once and serves it from memory afterwards.
func (a *Azure) Voices(ctx context.Context) ([]VoiceInfo, error) {
	a.voicesMu.Lock()
	defer a.voicesMu.Unlock()
	if a.voices != nil {
		return a.voices, nil
	}
	if a.creds.Key == "" || a.creds.Region == "" {
		return nil, tts.ErrMissingCredentials
	}

	url := a.endpoint() + "/cognitiveservices/voices/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.creds.Key)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, tts.ClassifyTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, tts.NewHTTPError(resp.StatusCode, string(msg))
	}

	var voices []VoiceInfo
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, tts.NewSynthesisError(tts.KindInvalidAudio, err)
	}
	a.voices = voices
	return voices, nil
}
