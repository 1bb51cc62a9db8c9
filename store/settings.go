// Package store persists playback settings and cloud credentials under
// the user's configuration directory.
package store

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/segment"
)

const appName = "speech-practice"

// DefaultSettingsPath resolves the per-user settings file location.
func DefaultSettingsPath() (string, error) {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil || len(dirs) == 0 {
		return "", err
	}
	return filepath.Join(dirs[0], "settings.yml"), nil
}

// Settings is a file-backed settings store. A missing or corrupt file
// loads as defaults; reading never fails the caller.
type Settings struct {
	path  string
	viper *viper.Viper
}

// NewSettings creates a store over the given file path.
func NewSettings(path string) *Settings {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	return &Settings{path: path, viper: v}
}

// Load reads the persisted settings. Missing keys keep their defaults
// and an unreadable file degrades to defaults with a warning, so a
// corrupt settings file can never block playback.
func (s *Settings) Load() (tts.PlaybackSettings, error) {
	out := tts.DefaultSettings()

	if err := s.viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(s.path); os.IsNotExist(statErr) {
			return out, nil
		}
		log.Warn("settings file unreadable, using defaults", "path", s.path, "err", err)
		return out, nil
	}

	v := s.viper
	if v.IsSet("playback.rate") {
		out.SetRate(v.GetFloat64("playback.rate"))
	}
	if v.IsSet("playback.pause_enabled") {
		out.PauseEnabled = v.GetBool("playback.pause_enabled")
	}
	if v.IsSet("playback.granularity") {
		if g, err := segment.ParseGranularity(v.GetString("playback.granularity")); err == nil {
			out.PauseGranularity = g
		}
	}
	if v.IsSet("playback.voice") {
		out.VoiceIdentifier = v.GetString("playback.voice")
	}
	if v.IsSet("playback.provider") {
		if p := tts.Provider(v.GetString("playback.provider")); p.Valid() {
			out.Provider = p
		}
	}
	if v.IsSet("playback.voices") {
		out.PerLanguageVoice = v.GetStringMapString("playback.voices")
	}

	// Settings written before the explicit-choice flag existed are
	// upgraded in place: any stored provider other than the legacy
	// automatic value was a deliberate pick.
	if v.IsSet("playback.provider_explicit") {
		out.ProviderExplicitlyChosen = v.GetBool("playback.provider_explicit")
	} else if v.IsSet("playback.provider") {
		out.ProviderExplicitlyChosen = out.Provider != tts.ProviderAutomatic
	}

	return out, nil
}

// Save writes the settings back to disk, creating the directory on
// first use.
func (s *Settings) Save(settings tts.PlaybackSettings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	v := s.viper
	v.Set("playback.rate", settings.Rate)
	v.Set("playback.pause_enabled", settings.PauseEnabled)
	v.Set("playback.granularity", settings.PauseGranularity.String())
	v.Set("playback.voice", settings.VoiceIdentifier)
	v.Set("playback.provider", string(settings.Provider))
	v.Set("playback.provider_explicit", settings.ProviderExplicitlyChosen)
	v.Set("playback.voices", settings.PerLanguageVoice)
	return v.WriteConfigAs(s.path)
}

// Watch reloads on external file changes and hands the fresh settings
// to onChange. It returns immediately; callbacks arrive on viper's
// watcher goroutine.
func (s *Settings) Watch(onChange func(tts.PlaybackSettings)) {
	s.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Create) {
			return
		}
		settings, err := s.Load()
		if err != nil {
			return
		}
		log.Debug("settings file changed", "path", e.Name)
		onChange(settings)
	})
	s.viper.WatchConfig()
}
