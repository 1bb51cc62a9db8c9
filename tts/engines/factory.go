package engines

import (
	"fmt"

	"github.com/nullp2ike/speech-practice/tts"
	"github.com/nullp2ike/speech-practice/tts/audio"
)

// NewFactory returns the backend factory for one document. The factory
// captures the engine configuration, the credential store and the output
// context; the orchestrator invokes it with the provider the selection
// policy resolved.
func NewFactory(cfg tts.Config, creds tts.CredentialStore, out audio.Context, language string) tts.BackendFactory {
	return func(provider tts.Provider, _ tts.PlaybackSettings) (tts.Synthesizing, error) {
		cacheCfg := cfg.CacheConfig()
		switch provider {
		case tts.ProviderPiper:
			return NewPiper(cfg.Piper, cacheCfg, out), nil
		case tts.ProviderTartu:
			return NewTartu(cfg.Tartu, cacheCfg, out), nil
		case tts.ProviderAzure:
			var c tts.Credentials
			if creds != nil {
				c, _ = creds.Load(tts.ProviderAzure)
			}
			return NewAzure(cfg.Azure, c, language, cacheCfg, out), nil
		default:
			return nil, fmt.Errorf("%w: unknown provider %q", tts.ErrBackendUnavailable, provider)
		}
	}
}
