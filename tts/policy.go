package tts

import (
	"strings"

	"golang.org/x/text/language"
)

// TartuLanguage is the one language the free cloud backend can speak.
const TartuLanguage = "et"

// NormalizeLanguage reduces a language code or BCP 47 tag ("et-EE",
// "en_US") to its base language ("et", "en"). Unparseable input comes
// back unchanged.
func NormalizeLanguage(code string) string {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	base, conf := tag.Base()
	if conf == language.No {
		return code
	}
	return base.String()
}

// DefaultProviderForLanguage returns the backend used when the user has
// not (or cannot have) an explicit working choice: the free cloud backend
// for its one supported language, the on-device synthesizer otherwise.
func DefaultProviderForLanguage(lang string) Provider {
	if NormalizeLanguage(lang) == TartuLanguage {
		return ProviderTartu
	}
	return ProviderPiper
}

// EffectiveProvider maps the requested provider, the document language and
// paid-backend credential availability to the backend to instantiate.
// Requesting the paid backend without credentials falls back to the
// per-language default, and the deprecated automatic value is treated the
// same as "use the per-language default".
func EffectiveProvider(requested Provider, lang string, hasPaidCredentials bool) Provider {
	switch requested {
	case ProviderAzure:
		if !hasPaidCredentials {
			return DefaultProviderForLanguage(lang)
		}
		return ProviderAzure
	case ProviderAutomatic, "":
		return DefaultProviderForLanguage(lang)
	default:
		return requested
	}
}
