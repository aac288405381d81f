package indicator

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

type locale string

const (
	localeEnglish locale = "en"
	localeSpanish locale = "es"
)

var (
	supportedLocales = []language.Tag{language.English, language.Spanish}
	localeMatcher    = language.NewMatcher(supportedLocales)
)

type messages struct {
	capturing string
	errorText string
}

func indicatorMessagesFromEnv() messages {
	raw := os.Getenv("LC_MESSAGES")
	if strings.TrimSpace(raw) == "" {
		raw = os.Getenv("LANG")
	}
	return indicatorMessages(resolveLocale(raw))
}

// resolveLocale maps a POSIX locale such as "es_ES.UTF-8" onto a supported message set.
func resolveLocale(raw string) locale {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "C" || raw == "POSIX" {
		return localeEnglish
	}

	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return localeEnglish
	}
	_, index, confidence := localeMatcher.Match(tag)
	if confidence == language.No {
		return localeEnglish
	}
	if supportedLocales[index] == language.Spanish {
		return localeSpanish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeSpanish:
		return messages{
			capturing: "Escuchando…",
			errorText: "Error del servicio de análisis",
		}
	default:
		return messages{
			capturing: "Listening…",
			errorText: "Analysis service error",
		}
	}
}
