package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty url", mutate: func(c *Config) { c.Service.URL = " " }, wantErr: "service.url must not be empty"},
		{name: "http url", mutate: func(c *Config) { c.Service.URL = "http://host/ws" }, wantErr: "ws:// or wss://"},
		{name: "url without host", mutate: func(c *Config) { c.Service.URL = "ws:///ws" }, wantErr: "include a host"},
		{name: "negative handshake", mutate: func(c *Config) { c.Service.HandshakeTimeoutMS = -1 }, wantErr: "handshake_timeout_ms"},
		{name: "negative write timeout", mutate: func(c *Config) { c.Service.WriteTimeoutMS = -1 }, wantErr: "write_timeout_ms"},
		{name: "negative linger", mutate: func(c *Config) { c.Service.ResultLingerMS = -5 }, wantErr: "result_linger_ms"},
		{name: "low sample rate", mutate: func(c *Config) { c.Audio.SampleRate = 4000 }, wantErr: "audio.sample_rate"},
		{name: "tiny interval", mutate: func(c *Config) { c.Capture.SegmentIntervalMS = 10 }, wantErr: "segment_interval_ms"},
		{name: "negative min bytes", mutate: func(c *Config) { c.Capture.MinSegmentBytes = -1 }, wantErr: "min_segment_bytes"},
		{name: "negative max bytes", mutate: func(c *Config) { c.Capture.MaxSegmentBytes = -1 }, wantErr: "max_segment_bytes must be >= 0"},
		{name: "max below min", mutate: func(c *Config) { c.Capture.MaxSegmentBytes = 100 }, wantErr: "max_segment_bytes must be 0 or"},
		{name: "unknown container", mutate: func(c *Config) { c.Capture.Container = "webm" }, wantErr: "capture.container"},
		{name: "frame interval", mutate: func(c *Config) { c.Frames.IntervalMS = 0 }, wantErr: "frames.interval_ms"},
		{name: "negative frame bytes", mutate: func(c *Config) { c.Frames.MaxFrameBytes = -1 }, wantErr: "max_frame_bytes"},
		{name: "frames without command", mutate: func(c *Config) {
			c.Frames.Enable = true
			c.Frames.CaptureCmd = CommandConfig{}
		}, wantErr: "frames.capture_cmd"},
		{name: "zero capacity", mutate: func(c *Config) { c.Messages.Capacity = 0 }, wantErr: "messages.capacity"},
		{name: "zero ttl", mutate: func(c *Config) { c.Messages.ErrorTTLMS = 0 }, wantErr: "error_ttl_ms"},
		{name: "empty backend", mutate: func(c *Config) { c.Indicator.Backend = "" }, wantErr: "must not be empty"},
		{name: "unknown backend", mutate: func(c *Config) { c.Indicator.Backend = "kde" }, wantErr: "one of: hypr, desktop"},
		{name: "desktop without app name", mutate: func(c *Config) {
			c.Indicator.Backend = "desktop"
			c.Indicator.DesktopAppName = ""
		}, wantErr: "desktop_app_name"},
		{name: "negative indicator timeout", mutate: func(c *Config) { c.Indicator.TimeoutMS = -1 }, wantErr: "indicator.timeout_ms"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	require.Zero(t, cfg.Service.HandshakeTimeout())
	require.Equal(t, 10*time.Second, cfg.Service.WriteTimeout())
	require.Equal(t, 1500*time.Millisecond, cfg.Service.ResultLinger())
	require.Equal(t, 10*time.Second, cfg.Capture.SegmentInterval())
	require.Equal(t, time.Second, cfg.Frames.Interval())
	require.Equal(t, 5*time.Second, cfg.Messages.ErrorTTL())
}
