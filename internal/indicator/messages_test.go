package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	cases := map[string]locale{
		"en_US.UTF-8":   localeEnglish,
		"es_ES.UTF-8":   localeSpanish,
		"es_MX":         localeSpanish,
		"de_DE@euro":    localeEnglish,
		"C":             localeEnglish,
		"":              localeEnglish,
		"not a locale!": localeEnglish,
	}
	for raw, want := range cases {
		require.Equal(t, want, resolveLocale(raw), raw)
	}
}

func TestIndicatorMessages(t *testing.T) {
	en := indicatorMessages(localeEnglish)
	require.Equal(t, "Listening…", en.capturing)
	require.Equal(t, "Analysis service error", en.errorText)

	es := indicatorMessages(localeSpanish)
	require.Equal(t, "Escuchando…", es.capturing)
}

func TestIndicatorMessagesFromEnvPrefersLCMessages(t *testing.T) {
	t.Setenv("LANG", "en_US.UTF-8")
	t.Setenv("LC_MESSAGES", "es_ES.UTF-8")
	require.Equal(t, "Escuchando…", indicatorMessagesFromEnv().capturing)
}
