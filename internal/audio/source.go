package audio

import (
	"context"
	"log/slog"

	"github.com/rbright/castline/internal/encoder"
)

// Source acquires live tracks from the configured input/fallback devices.
type Source struct {
	Input      string
	Fallback   string
	SampleRate int
	Logger     *slog.Logger
}

// Acquire resolves the device selection and starts a Pulse track on it.
func (s Source) Acquire(ctx context.Context) (encoder.Track, error) {
	selection, err := SelectDevice(ctx, s.Input, s.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && s.Logger != nil {
		s.Logger.Warn(selection.Warning, "device", selection.Device.ID)
	}

	track, err := StartTrack(ctx, selection.Device, s.SampleRate)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("audio track started",
			"device", Describe(selection.Device),
			"sample_rate", s.SampleRate,
			"fallback", selection.Fallback,
		)
	}
	return track, nil
}
