// Package config resolves, parses, validates, and defaults castline configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by castline.
type Config struct {
	Service   ServiceConfig
	Audio     AudioConfig
	Capture   CaptureConfig
	Frames    FramesConfig
	Messages  MessagesConfig
	Indicator IndicatorConfig
	Debug     DebugConfig
}

// ServiceConfig locates the analysis service and bounds connection timing.
type ServiceConfig struct {
	URL                string
	HandshakeTimeoutMS int
	WriteTimeoutMS     int
	ResultLingerMS     int
}

// HandshakeTimeout is zero when the dial is bounded only by its context.
func (s ServiceConfig) HandshakeTimeout() time.Duration {
	return millis(s.HandshakeTimeoutMS)
}

func (s ServiceConfig) WriteTimeout() time.Duration {
	return millis(s.WriteTimeoutMS)
}

func (s ServiceConfig) ResultLinger() time.Duration {
	return millis(s.ResultLingerMS)
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input      string
	Fallback   string
	SampleRate int
}

// CaptureConfig controls segment cadence, size filtering, and container.
type CaptureConfig struct {
	SegmentIntervalMS int
	MinSegmentBytes   int
	MaxSegmentBytes   int
	Container         string
}

func (c CaptureConfig) SegmentInterval() time.Duration {
	return millis(c.SegmentIntervalMS)
}

// FramesConfig controls periodic still-frame sampling.
type FramesConfig struct {
	Enable        bool
	IntervalMS    int
	CaptureCmd    CommandConfig
	MaxFrameBytes int
}

func (f FramesConfig) Interval() time.Duration {
	return millis(f.IntervalMS)
}

// MessagesConfig bounds the chat log and the banner lifetime.
type MessagesConfig struct {
	Capacity   int
	ErrorTTLMS int
}

func (m MessagesConfig) ErrorTTL() time.Duration {
	return millis(m.ErrorTTLMS)
}

// IndicatorConfig controls the desktop banner surface.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	TimeoutMS      int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	SegmentDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
