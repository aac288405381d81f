package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	input := `
{
  // analysis backend
  "service": {
    "url": "wss://analysis.example.com/ws",
    "handshake_timeout_ms": 3000,
    "result_linger_ms": 2500,
  },
  "audio": {"input": "Elgato", "sample_rate": 48000},
  "capture": {
    "segment_interval_ms": 5000,
    "min_segment_bytes": 8192,
    "max_segment_bytes": 4194304,
    "container": " PCM ",
  },
  "frames": {
    "enable": true,
    "interval_ms": 2000,
    "capture_cmd": "grim -o {monitor} -t png -",
    "max_frame_bytes": 2097152,
  },
  "messages": {"capacity": 50, "error_ttl_ms": 8000},
  /* surfaced via busctl */
  "indicator": {"backend": "desktop", "desktop_app_name": "castline-dev", "timeout_ms": 0},
  "debug": {"segment_dump": true},
}
`

	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, "wss://analysis.example.com/ws", cfg.Service.URL)
	require.Equal(t, 3000, cfg.Service.HandshakeTimeoutMS)
	require.Equal(t, 10000, cfg.Service.WriteTimeoutMS)
	require.Equal(t, 2500, cfg.Service.ResultLingerMS)
	require.Equal(t, "Elgato", cfg.Audio.Input)
	require.Equal(t, "default", cfg.Audio.Fallback)
	require.Equal(t, 48000, cfg.Audio.SampleRate)
	require.Equal(t, CaptureConfig{
		SegmentIntervalMS: 5000,
		MinSegmentBytes:   8192,
		MaxSegmentBytes:   4194304,
		Container:         "pcm",
	}, cfg.Capture)
	require.True(t, cfg.Frames.Enable)
	require.Equal(t, []string{"grim", "-o", "{monitor}", "-t", "png", "-"}, cfg.Frames.CaptureCmd.Argv)
	require.Equal(t, 2097152, cfg.Frames.MaxFrameBytes)
	require.Equal(t, MessagesConfig{Capacity: 50, ErrorTTLMS: 8000}, cfg.Messages)
	require.Equal(t, "desktop", cfg.Indicator.Backend)
	require.Equal(t, "castline-dev", cfg.Indicator.DesktopAppName)
	require.True(t, cfg.Debug.SegmentDump)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseUnknownKeyFailsWithLocation(t *testing.T) {
	_, _, err := Parse(`{
  "service": {
    "endpoint": "ws://x"
  }
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3 column 5")
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseSyntaxErrorIncludesLine(t *testing.T) {
	_, _, err := Parse("{\n  \"audio\": {\n    \"input\": \"x\"\n    \"fallback\": \"y\"\n  }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 4")
}

func TestParseShortIntervalWarns(t *testing.T) {
	_, warnings, err := Parse(`{"capture": {"segment_interval_ms": 500}}`, Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "very short segments")
}

func TestParseRunsValidation(t *testing.T) {
	_, _, err := Parse(`{"service": {"url": "http://127.0.0.1:8000/ws"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ws:// or wss://")
}
