package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/castline/internal/audio"
	"github.com/rbright/castline/internal/capture"
	"github.com/rbright/castline/internal/chat"
	"github.com/rbright/castline/internal/config"
	"github.com/rbright/castline/internal/dispatch"
	"github.com/rbright/castline/internal/encoder"
	"github.com/rbright/castline/internal/frames"
	"github.com/rbright/castline/internal/hypr"
	"github.com/rbright/castline/internal/indicator"
	"github.com/rbright/castline/internal/ipc"
	"github.com/rbright/castline/internal/logging"
	"github.com/rbright/castline/internal/session"
	"github.com/rbright/castline/internal/version"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	mirrorHideTimeout   = 2 * time.Second
)

// commandToggle stops a running owner, or becomes the owner and runs one session.
func (r Runner) commandToggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if code, handled := r.forwardToggle(ctx, socketPath); handled {
		return code
	}

	listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			if code, handled := r.forwardToggle(ctx, socketPath); handled {
				return code
			}
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	owner, err := newOwner(cfg, logger, r.Stdout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer owner.close()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, owner.session)
	}()

	result := owner.session.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	return 0
}

func (r Runner) forwardToggle(ctx context.Context, socketPath string) (int, bool) {
	resp, running, err := forward(ctx, socketPath, ipc.CommandToggle)
	if !running {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0, true
}

// owner holds every component of one running session.
type owner struct {
	session *session.Controller
	mirror  *indicator.Mirror
	cleanup []func()
}

func newOwner(cfg config.Config, logger *slog.Logger, stdout io.Writer) (*owner, error) {
	format, err := encoder.ParseFormat(cfg.Capture.Container, cfg.Audio.SampleRate, 1)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if logger == nil {
		logger = logging.Discard().Logger
	}
	sessionLogger := logger
	logger = logger.With("session_id", sessionID)

	store := chat.NewStore(cfg.Messages.Capacity)
	banner := chat.NewBanner(cfg.Messages.ErrorTTL(), nil)

	client := dispatch.New(dispatch.Options{
		URL: cfg.Service.URL,
		Dialer: dispatch.WebSocketDialer{
			HandshakeTimeout: cfg.Service.HandshakeTimeout(),
			Header:           http.Header{"User-Agent": []string{version.UserAgent()}},
		},
		Store:        store,
		Banner:       banner,
		Logger:       logger,
		WriteTimeout: cfg.Service.WriteTimeout(),
	})

	var dump *session.Dumper
	if cfg.Debug.SegmentDump {
		dir, err := logging.DebugDir()
		if err != nil {
			return nil, fmt.Errorf("resolve debug dir: %w", err)
		}
		dump = &session.Dumper{Dir: dir, SessionID: sessionID, Extension: format.Extension()}
	}

	capturer := capture.NewController(capture.Options{
		Source: audio.Source{
			Input:      cfg.Audio.Input,
			Fallback:   cfg.Audio.Fallback,
			SampleRate: cfg.Audio.SampleRate,
			Logger:     logger,
		},
		Format:          format,
		Sink:            session.NewSegmentSink(client, dump, logger),
		Reporter:        capture.NewBannerReporter(banner),
		Logger:          logger,
		Interval:        cfg.Capture.SegmentInterval(),
		MinSegmentBytes: cfg.Capture.MinSegmentBytes,
		MaxSegmentBytes: cfg.Capture.MaxSegmentBytes,
	})

	var sampler session.FrameSampler
	if cfg.Frames.Enable {
		sampler = frames.NewSampler(frames.Options{
			Grabber: frames.CommandGrabber{
				Argv:    cfg.Frames.CaptureCmd.Argv,
				Monitor: hypr.QueryFocusedMonitor,
			},
			Sink:          session.FrameSink(client),
			Logger:        logger,
			Interval:      cfg.Frames.Interval(),
			MaxFrameBytes: cfg.Frames.MaxFrameBytes,
		})
	}

	o := &owner{}

	mirrorCtx, stopMirror := context.WithCancel(context.Background())
	o.mirror = indicator.NewMirror(mirrorCtx, indicator.NewHyprNotify(cfg.Indicator, logger))
	unsubscribeBanner := banner.Subscribe(o.mirror.Notices)

	printer := newPrinter(stdout)
	unsubscribeStore := store.Subscribe(printer.Entries)

	o.cleanup = append(o.cleanup,
		unsubscribeStore,
		unsubscribeBanner,
		func() {
			stopMirror()
			select {
			case <-o.mirror.Done():
			case <-time.After(mirrorHideTimeout):
			}
		},
	)

	o.session = session.NewController(session.Options{
		ID:        sessionID,
		Logger:    sessionLogger,
		Dispatch:  client,
		Capture:   capturer,
		Frames:    sampler,
		Store:     store,
		Banner:    banner,
		Indicator: o.mirror,
		Linger:    cfg.Service.ResultLinger(),
	})
	return o, nil
}

func (o *owner) close() {
	for _, fn := range o.cleanup {
		fn()
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session_id", result.SessionID,
		"state", result.Phase,
		"stopped", result.Stopped,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"segments", result.Segments.Sent,
		"segments_discarded", result.Segments.Discarded,
		"bytes", result.Segments.BytesSent,
		"frames", result.Frames.Sent,
		"messages", result.Messages,
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
