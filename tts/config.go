package tts

import (
	"fmt"
	"time"

	"github.com/nullp2ike/speech-practice/tts/cache"
)

// Config contains the engine and transport configuration shared by the
// synthesis backends. User-facing playback preferences live in
// PlaybackSettings; Config covers the deployment-level knobs.
type Config struct {
	// Audio settings
	SampleRate   int `yaml:"sample_rate" env:"SPEECH_SAMPLE_RATE" envDefault:"22050"`
	ChannelCount int `yaml:"channel_count" env:"SPEECH_CHANNEL_COUNT" envDefault:"1"`

	// Echo pause timer tick
	PauseTick time.Duration `yaml:"pause_tick" env:"SPEECH_PAUSE_TICK" envDefault:"100ms"`

	// Synthesis cache ceilings
	CacheMaxEntries int   `yaml:"cache_max_entries" env:"SPEECH_CACHE_MAX_ENTRIES" envDefault:"50"`
	CacheMaxBytes   int64 `yaml:"cache_max_bytes" env:"SPEECH_CACHE_MAX_BYTES" envDefault:"10485760"`

	// Engine-specific configurations
	Piper PiperConfig `yaml:"piper"`
	Tartu TartuConfig `yaml:"tartu"`
	Azure AzureConfig `yaml:"azure"`
}

// PiperConfig configures the on-device subprocess synthesizer.
type PiperConfig struct {
	Binary   string        `yaml:"binary" env:"SPEECH_PIPER_BINARY" envDefault:"piper"`
	ModelDir string        `yaml:"model_dir" env:"SPEECH_PIPER_MODEL_DIR"`
	Model    string        `yaml:"model" env:"SPEECH_PIPER_MODEL" envDefault:"en_US-lessac-medium"`
	Timeout  time.Duration `yaml:"timeout" env:"SPEECH_PIPER_TIMEOUT" envDefault:"60s"`
}

// TartuConfig configures the free cloud backend.
type TartuConfig struct {
	Endpoint string        `yaml:"endpoint" env:"SPEECH_TARTU_ENDPOINT" envDefault:"https://api.tartunlp.ai/text-to-speech/v2"`
	Speaker  string        `yaml:"speaker" env:"SPEECH_TARTU_SPEAKER" envDefault:"mari"`
	Timeout  time.Duration `yaml:"timeout" env:"SPEECH_TARTU_TIMEOUT" envDefault:"30s"`
	// RequestsPerSecond throttles outbound synthesis requests.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"SPEECH_TARTU_RPS" envDefault:"2"`
}

// AzureConfig configures the paid cloud backend. The key and region are
// not configuration; they come from the credential store.
type AzureConfig struct {
	// EndpointTemplate receives the region. Overridable for sovereign
	// clouds and tests.
	EndpointTemplate string        `yaml:"endpoint_template" env:"SPEECH_AZURE_ENDPOINT_TEMPLATE" envDefault:"https://%s.tts.speech.microsoft.com"`
	OutputFormat     string        `yaml:"output_format" env:"SPEECH_AZURE_OUTPUT_FORMAT" envDefault:"audio-24khz-48kbitrate-mono-mp3"`
	Timeout          time.Duration `yaml:"timeout" env:"SPEECH_AZURE_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:      22050,
		ChannelCount:    1,
		PauseTick:       100 * time.Millisecond,
		CacheMaxEntries: cache.DefaultMaxEntries,
		CacheMaxBytes:   cache.DefaultMaxBytes,
		Piper:           DefaultPiperConfig(),
		Tartu:           DefaultTartuConfig(),
		Azure:           DefaultAzureConfig(),
	}
}

// DefaultPiperConfig returns default Piper configuration.
func DefaultPiperConfig() PiperConfig {
	return PiperConfig{
		Binary:  "piper",
		Model:   "en_US-lessac-medium",
		Timeout: 60 * time.Second,
	}
}

// DefaultTartuConfig returns default free-cloud configuration.
func DefaultTartuConfig() TartuConfig {
	return TartuConfig{
		Endpoint:          "https://api.tartunlp.ai/text-to-speech/v2",
		Speaker:           "mari",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
	}
}

// DefaultAzureConfig returns default paid-cloud configuration.
func DefaultAzureConfig() AzureConfig {
	return AzureConfig{
		EndpointTemplate: "https://%s.tts.speech.microsoft.com",
		OutputFormat:     "audio-24khz-48kbitrate-mono-mp3",
		Timeout:          30 * time.Second,
	}
}

// CacheConfig derives the synthesis cache configuration.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		MaxEntries: c.CacheMaxEntries,
		MaxBytes:   c.CacheMaxBytes,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	sampleRateValid := false
	for _, sr := range validSampleRates {
		if c.SampleRate == sr {
			sampleRateValid = true
			break
		}
	}
	if !sampleRateValid {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.SampleRate, validSampleRates)
	}

	if c.ChannelCount != 1 && c.ChannelCount != 2 {
		return fmt.Errorf("channel count must be 1 or 2, got %d", c.ChannelCount)
	}

	if c.PauseTick < 10*time.Millisecond || c.PauseTick > time.Second {
		return fmt.Errorf("pause tick must be between 10ms and 1s, got %v", c.PauseTick)
	}

	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.CacheMaxEntries)
	}
	if c.CacheMaxBytes < 1 {
		return fmt.Errorf("cache max bytes must be positive, got %d", c.CacheMaxBytes)
	}

	if err := c.Piper.Validate(); err != nil {
		return fmt.Errorf("piper config: %w", err)
	}
	if err := c.Tartu.Validate(); err != nil {
		return fmt.Errorf("tartu config: %w", err)
	}
	if err := c.Azure.Validate(); err != nil {
		return fmt.Errorf("azure config: %w", err)
	}
	return nil
}

// Validate checks if the Piper configuration is valid.
func (c *PiperConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("piper binary path cannot be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("piper model cannot be empty")
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}

// Validate checks if the free-cloud configuration is valid.
func (c *TartuConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %f", c.RequestsPerSecond)
	}
	return nil
}

// Validate checks if the paid-cloud configuration is valid.
func (c *AzureConfig) Validate() error {
	if c.EndpointTemplate == "" {
		return fmt.Errorf("endpoint template cannot be empty")
	}
	if c.OutputFormat == "" {
		return fmt.Errorf("output format cannot be empty")
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}
