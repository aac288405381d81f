package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Service   *jsoncService   `json:"service"`
	Audio     *jsoncAudio     `json:"audio"`
	Capture   *jsoncCapture   `json:"capture"`
	Frames    *jsoncFrames    `json:"frames"`
	Messages  *jsoncMessages  `json:"messages"`
	Indicator *jsoncIndicator `json:"indicator"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncService struct {
	URL                *string `json:"url"`
	HandshakeTimeoutMS *int    `json:"handshake_timeout_ms"`
	WriteTimeoutMS     *int    `json:"write_timeout_ms"`
	ResultLingerMS     *int    `json:"result_linger_ms"`
}

type jsoncAudio struct {
	Input      *string `json:"input"`
	Fallback   *string `json:"fallback"`
	SampleRate *int    `json:"sample_rate"`
}

type jsoncCapture struct {
	SegmentIntervalMS *int    `json:"segment_interval_ms"`
	MinSegmentBytes   *int    `json:"min_segment_bytes"`
	MaxSegmentBytes   *int    `json:"max_segment_bytes"`
	Container         *string `json:"container"`
}

type jsoncFrames struct {
	Enable        *bool   `json:"enable"`
	IntervalMS    *int    `json:"interval_ms"`
	CaptureCmd    *string `json:"capture_cmd"`
	MaxFrameBytes *int    `json:"max_frame_bytes"`
}

type jsoncMessages struct {
	Capacity   *int `json:"capacity"`
	ErrorTTLMS *int `json:"error_ttl_ms"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	TimeoutMS      *int    `json:"timeout_ms"`
}

type jsoncDebug struct {
	SegmentDump *bool `json:"segment_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if s := payload.Service; s != nil {
		setString(&cfg.Service.URL, s.URL)
		setInt(&cfg.Service.HandshakeTimeoutMS, s.HandshakeTimeoutMS)
		setInt(&cfg.Service.WriteTimeoutMS, s.WriteTimeoutMS)
		setInt(&cfg.Service.ResultLingerMS, s.ResultLingerMS)
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = *a.Input
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = *a.Fallback
		}
		setInt(&cfg.Audio.SampleRate, a.SampleRate)
	}

	if c := payload.Capture; c != nil {
		setInt(&cfg.Capture.SegmentIntervalMS, c.SegmentIntervalMS)
		setInt(&cfg.Capture.MinSegmentBytes, c.MinSegmentBytes)
		setInt(&cfg.Capture.MaxSegmentBytes, c.MaxSegmentBytes)
		if c.Container != nil {
			cfg.Capture.Container = strings.ToLower(strings.TrimSpace(*c.Container))
		}
	}

	if f := payload.Frames; f != nil {
		if f.Enable != nil {
			cfg.Frames.Enable = *f.Enable
		}
		setInt(&cfg.Frames.IntervalMS, f.IntervalMS)
		setInt(&cfg.Frames.MaxFrameBytes, f.MaxFrameBytes)
		if f.CaptureCmd != nil {
			raw := *f.CaptureCmd
			argv, err := splitCommand(raw)
			if err != nil {
				return fmt.Errorf("invalid frames.capture_cmd: %w", err)
			}
			cfg.Frames.CaptureCmd = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if m := payload.Messages; m != nil {
		setInt(&cfg.Messages.Capacity, m.Capacity)
		setInt(&cfg.Messages.ErrorTTLMS, m.ErrorTTLMS)
	}

	if i := payload.Indicator; i != nil {
		if i.Enable != nil {
			cfg.Indicator.Enable = *i.Enable
		}
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setInt(&cfg.Indicator.TimeoutMS, i.TimeoutMS)
	}

	if payload.Debug != nil && payload.Debug.SegmentDump != nil {
		cfg.Debug.SegmentDump = *payload.Debug.SegmentDump
	}

	return nil
}

// setString applies a trimmed override when present.
func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func setInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

// wrapJSONDecodeError prefixes decode failures with a 1-based line and column.
func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	if offset, ok := unknownFieldOffset(content, err); ok {
		line, col := offsetToLineCol(content, offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

// unknownFieldOffset locates the first key named by an unknown-field error.
// encoding/json reports no offset for these.
func unknownFieldOffset(content string, err error) (int64, bool) {
	const prefix = "json: unknown field "
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return 0, false
	}
	key := strings.TrimPrefix(msg, prefix)
	for from := 0; from < len(content); {
		idx := strings.Index(content[from:], key)
		if idx < 0 {
			return 0, false
		}
		start := from + idx
		rest := strings.TrimLeft(content[start+len(key):], " \t\r\n")
		if strings.HasPrefix(rest, ":") {
			return int64(start + 1), true
		}
		from = start + len(key)
	}
	return 0, false
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}
	if limit == 0 {
		return 1, 1
	}

	prefix := content[:limit-1]
	line := strings.Count(prefix, "\n") + 1
	col := limit - strings.LastIndexByte(prefix, '\n') - 1
	return line, col
}
