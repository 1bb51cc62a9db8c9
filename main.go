// Package main provides the speech-practice command line interface.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nullp2ike/speech-practice/store"
	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/audio"
	"github.com/nullp2ike/speech-practice/tts/engines"
	"github.com/nullp2ike/speech-practice/tts/segment"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	language    string
	rateFlag    float64
	provider    string
	voiceFlag   string
	granularity string
	noPause     bool

	rootCmd = &cobra.Command{
		Use:   "speech-practice [FILE]",
		Short: "Practice speeches out loud, one sentence at a time",
		Long: "\nReads a speech back to you sentence by sentence, pausing after each\n" +
			"one long enough for you to repeat it. Synthesis runs on-device by\n" +
			"default and through a cloud voice when one is configured.",
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE:          execute,
	}
)

// readSource returns the practice text from the argument or stdin.
func readSource(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("unable to read %s: %w", args[0], err)
	}
	return string(data), nil
}

// loadEngineConfig builds the engine configuration from defaults, the
// config file and the environment, in that order.
func loadEngineConfig() (tts.Config, error) {
	cfg := tts.DefaultConfig()

	if viper.IsSet("engine.sample_rate") {
		cfg.SampleRate = viper.GetInt("engine.sample_rate")
	}
	if viper.IsSet("engine.piper.binary") {
		cfg.Piper.Binary = viper.GetString("engine.piper.binary")
	}
	if viper.IsSet("engine.piper.model") {
		cfg.Piper.Model = viper.GetString("engine.piper.model")
	}
	if viper.IsSet("engine.piper.model_dir") {
		cfg.Piper.ModelDir = viper.GetString("engine.piper.model_dir")
	}
	if e := viper.GetString("engine.tartu.endpoint"); e != "" {
		cfg.Tartu.Endpoint = e
	}
	if viper.IsSet("engine.tartu.speaker") {
		cfg.Tartu.Speaker = viper.GetString("engine.tartu.speaker")
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags overlays command line flags onto the persisted settings.
func applyFlags(cmd *cobra.Command, settings *tts.PlaybackSettings) error {
	if cmd.Flags().Changed("rate") {
		settings.SetRate(rateFlag)
	}
	if cmd.Flags().Changed("provider") {
		p := tts.Provider(provider)
		if !p.Valid() {
			return fmt.Errorf("unknown provider %q", provider)
		}
		settings.Provider = p
		settings.ProviderExplicitlyChosen = true
	}
	if cmd.Flags().Changed("voice") {
		settings.VoiceIdentifier = voiceFlag
	}
	if cmd.Flags().Changed("granularity") {
		g, err := segment.ParseGranularity(granularity)
		if err != nil {
			return err
		}
		settings.PauseGranularity = g
	}
	if noPause {
		settings.PauseEnabled = false
	}
	return nil
}

// newAudioContext opens the sound device, degrading to the silent
// context so synthesis and navigation keep working without one.
func newAudioContext(cfg tts.Config) audio.Context {
	ctx, err := audio.NewContext(cfg.SampleRate, cfg.ChannelCount)
	if err != nil {
		log.Warn("audio device unavailable, playback will be silent", "err", err)
		return &audio.StubContext{Rate: cfg.SampleRate, Channels: cfg.ChannelCount}
	}
	return ctx
}

// cliFeedback prints reading progress and signals the end of the
// reading.
type cliFeedback struct {
	segments []segment.Segment
	done     chan error
}

func (f *cliFeedback) Navigated(index int) {
	if index >= 0 && index < len(f.segments) {
		fmt.Printf("[%d/%d] %s\n", index+1, len(f.segments), f.segments[index].Text)
	}
}

func (f *cliFeedback) PlaybackStarted(index int) {
	if index == 0 {
		f.Navigated(index)
	}
}

func (f *cliFeedback) SegmentCompleted(int) {}

func (f *cliFeedback) PlaybackFailed(message string) {
	f.done <- fmt.Errorf("playback failed: %s", message)
}

func (f *cliFeedback) SpeechFinished() {
	f.done <- nil
}

func execute(cmd *cobra.Command, args []string) error {
	text, err := readSource(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to read")
	}

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}

	settingsStore, credStore, err := openStores()
	if err != nil {
		return err
	}
	settings, err := settingsStore.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &settings); err != nil {
		return err
	}

	out := newAudioContext(cfg)
	defer out.Close()

	factory := engines.NewFactory(cfg, credStore, out, language)

	feedback := &cliFeedback{
		segments: segment.Split(text, settings.PauseGranularity),
		done:     make(chan error, 1),
	}

	orch, err := tts.NewOrchestrator(text, language, settings, factory,
		tts.WithFeedback(feedback),
		tts.WithPauseTick(cfg.PauseTick),
		tts.WithCredentials(credStore),
	)
	if err != nil {
		return err
	}
	defer orch.Cleanup()

	// Edits to the settings file take effect mid-reading.
	settingsStore.Watch(func(updated tts.PlaybackSettings) {
		orch.SetRate(updated.Rate)
		orch.SetPauseEnabled(updated.PauseEnabled)
	})

	log.Debug("reading", "segments", len(feedback.segments),
		"provider", orch.Effective(), "language", orch.Language())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	orch.Play()

	select {
	case err := <-feedback.done:
		if err != nil {
			return err
		}
	case <-sig:
		orch.Stop()
		fmt.Println()
	}

	if err := settingsStore.Save(orch.Settings()); err != nil {
		log.Warn("could not persist settings", "err", err)
	}
	return nil
}

// openStores opens the settings and credential stores at their
// per-user locations.
func openStores() (*store.Settings, *store.Credentials, error) {
	settingsPath, err := store.DefaultSettingsPath()
	if err != nil {
		return nil, nil, fmt.Errorf("could not locate configuration directory: %w", err)
	}
	credPath, err := store.DefaultCredentialsPath()
	if err != nil {
		return nil, nil, fmt.Errorf("could not locate data directory: %w", err)
	}
	return store.NewSettings(settingsPath), store.NewCredentials(credPath), nil
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices of the effective provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		_, credStore, err := openStores()
		if err != nil {
			return err
		}

		requested := tts.Provider(provider)
		if !cmd.Flags().Changed("provider") {
			requested = tts.ProviderAutomatic
		}
		eff := tts.EffectiveProvider(requested, language, credStore.Has(tts.ProviderAzure))

		out := &audio.StubContext{Rate: cfg.SampleRate, Channels: cfg.ChannelCount}
		ctx := context.Background()

		switch eff {
		case tts.ProviderTartu:
			speakers, err := engines.NewTartu(cfg.Tartu, cfg.CacheConfig(), out).Speakers(ctx)
			if err != nil {
				return err
			}
			for _, s := range speakers {
				fmt.Println(s)
			}
		case tts.ProviderAzure:
			creds, _ := credStore.Load(tts.ProviderAzure)
			voices, err := engines.NewAzure(cfg.Azure, creds, language, cfg.CacheConfig(), out).Voices(ctx)
			if err != nil {
				return err
			}
			for _, v := range voices {
				fmt.Printf("%s\t%s (%s, %s)\n", v.Name, v.DisplayName, v.Locale, v.Gender)
			}
		default:
			fmt.Printf("%s (configured model: %s)\n", eff, cfg.Piper.Model)
		}
		return nil
	},
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage cloud synthesis credentials",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set KEY REGION",
	Short: "Store the paid provider's subscription key and region",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		_, credStore, err := openStores()
		if err != nil {
			return err
		}
		return credStore.Save(tts.ProviderAzure, tts.Credentials{Key: args[0], Region: args[1]})
	},
}

var credentialsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored cloud credentials",
	RunE: func(_ *cobra.Command, _ []string) error {
		_, credStore, err := openStores()
		if err != nil {
			return err
		}
		return credStore.Delete(tts.ProviderAzure)
	},
}

// setupLog routes logs to the file named by the debug environment
// variables, or discards them.
func setupLog() (func() error, error) {
	if os.Getenv("SPEECH_DEBUG") == "" {
		log.SetOutput(io.Discard)
		return func() error { return nil }, nil
	}
	log.SetLevel(log.DebugLevel)
	path := os.Getenv("SPEECH_LOGFILE")
	if path == "" {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error setting up logging: %w", err)
	}
	log.SetOutput(f)
	return f.Close, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	_ = godotenv.Load()
	tryLoadConfigFromDefaultPlaces()

	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&language, "language", "L", "en", "language of the speech (BCP 47 code)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "synthesis provider (piper/tartu/azure)")
	rootCmd.Flags().Float64VarP(&rateFlag, "rate", "r", 0.5, "speech rate (0.1 to 1.0)")
	rootCmd.Flags().StringVar(&voiceFlag, "voice", "", "voice identifier on the selected provider")
	rootCmd.Flags().StringVarP(&granularity, "granularity", "g", "sentence", "pause granularity (sentence/paragraph)")
	rootCmd.Flags().BoolVar(&noPause, "no-pause", false, "read straight through without echo pauses")

	viper.SetDefault("engine.sample_rate", 22050)
	viper.SetDefault("engine.piper.binary", "piper")
	viper.SetDefault("engine.piper.model", "en_US-lessac-medium")
	viper.SetDefault("engine.tartu.speaker", "mari")

	credentialsCmd.AddCommand(credentialsSetCmd, credentialsClearCmd)
	rootCmd.AddCommand(voicesCmd, credentialsCmd, configCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "speech-practice")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "speech-practice")}, dirs...)
	}
	if c := os.Getenv("SPEECH_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("speech-practice")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("speech")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}
	configFile = filepath.Join(dirs[0], "speech-practice.yml")
}
