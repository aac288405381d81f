package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rbright/castline/internal/encoder"
)

const (
	minSampleRate          = 8000
	maxSampleRate          = 192000
	shortSegmentIntervalMS = 1000
	minSegmentIntervalMS   = 100
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateService(cfg.Service); err != nil {
		return nil, err
	}

	if cfg.Audio.SampleRate < minSampleRate || cfg.Audio.SampleRate > maxSampleRate {
		return nil, fmt.Errorf("audio.sample_rate must be between %d and %d", minSampleRate, maxSampleRate)
	}

	capture := cfg.Capture
	if capture.SegmentIntervalMS < minSegmentIntervalMS {
		return nil, fmt.Errorf("capture.segment_interval_ms must be >= %d", minSegmentIntervalMS)
	}
	if capture.SegmentIntervalMS < shortSegmentIntervalMS {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"capture.segment_interval_ms=%d produces very short segments", capture.SegmentIntervalMS)})
	}
	if capture.MinSegmentBytes < 0 {
		return nil, fmt.Errorf("capture.min_segment_bytes must be >= 0")
	}
	if capture.MaxSegmentBytes < 0 {
		return nil, fmt.Errorf("capture.max_segment_bytes must be >= 0")
	}
	if capture.MaxSegmentBytes > 0 && capture.MaxSegmentBytes < capture.MinSegmentBytes {
		return nil, fmt.Errorf("capture.max_segment_bytes must be 0 or >= capture.min_segment_bytes")
	}
	if _, err := encoder.ParseFormat(capture.Container, cfg.Audio.SampleRate, 1); err != nil {
		return nil, fmt.Errorf("capture.container: %w", err)
	}

	frames := cfg.Frames
	if frames.IntervalMS <= 0 {
		return nil, fmt.Errorf("frames.interval_ms must be > 0")
	}
	if frames.MaxFrameBytes < 0 {
		return nil, fmt.Errorf("frames.max_frame_bytes must be >= 0")
	}
	if frames.Enable && len(frames.CaptureCmd.Argv) == 0 {
		return nil, fmt.Errorf("frames.capture_cmd must not be empty when frames.enable=true")
	}

	if cfg.Messages.Capacity <= 0 {
		return nil, fmt.Errorf("messages.capacity must be > 0")
	}
	if cfg.Messages.ErrorTTLMS <= 0 {
		return nil, fmt.Errorf("messages.error_ttl_ms must be > 0")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.TimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.timeout_ms must be >= 0")
	}

	return warnings, nil
}

func validateService(service ServiceConfig) error {
	raw := strings.TrimSpace(service.URL)
	if raw == "" {
		return fmt.Errorf("service.url must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("service.url is invalid: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("service.url must use ws:// or wss://")
	}
	if parsed.Host == "" {
		return fmt.Errorf("service.url must include a host")
	}
	if service.HandshakeTimeoutMS < 0 {
		return fmt.Errorf("service.handshake_timeout_ms must be >= 0")
	}
	if service.WriteTimeoutMS < 0 {
		return fmt.Errorf("service.write_timeout_ms must be >= 0")
	}
	if service.ResultLingerMS < 0 {
		return fmt.Errorf("service.result_linger_ms must be >= 0")
	}
	return nil
}
