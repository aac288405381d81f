package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			URL:            "ws://127.0.0.1:8000/ws",
			WriteTimeoutMS: 10000,
			ResultLingerMS: 1500,
		},
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
		},
		Capture: CaptureConfig{
			SegmentIntervalMS: 10000,
			MinSegmentBytes:   4096,
			Container:         "wav",
		},
		Frames: FramesConfig{
			IntervalMS: 1000,
			CaptureCmd: CommandConfig{
				Raw:  "grim -t jpeg -",
				Argv: []string{"grim", "-t", "jpeg", "-"},
			},
		},
		Messages: MessagesConfig{
			Capacity:   100,
			ErrorTTLMS: 5000,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "castline",
			TimeoutMS:      5000,
		},
	}
}
