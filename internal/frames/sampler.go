// Package frames samples still screen or camera frames on a fixed cadence.
package frames

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultInterval matches the one-frame-per-second sampling cadence.
	DefaultInterval = time.Second
	grabTimeout     = 5 * time.Second
)

// Frame is one sniffed still image ready for transmission.
type Frame struct {
	Sequence   uint64
	Payload    []byte
	MimeType   string
	CapturedAt time.Time
}

// Sink receives accepted frames. It reports whether the frame was sent.
type Sink interface {
	DeliverFrame(Frame) bool
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(Frame) bool

// DeliverFrame implements Sink.
func (f SinkFunc) DeliverFrame(frame Frame) bool { return f(frame) }

// Stats counts sampler outcomes.
type Stats struct {
	Sent      uint64
	Discarded uint64
	Failed    uint64
}

// Options configures a Sampler.
type Options struct {
	Grabber       Grabber
	Sink          Sink
	Logger        *slog.Logger
	Interval      time.Duration
	MaxFrameBytes int
	// Tick overrides the sampling clock in tests.
	Tick <-chan time.Time
}

// Sampler grabs a frame on every tick until its context ends.
type Sampler struct {
	grabber  Grabber
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	maxBytes int
	tick     <-chan time.Time

	mu      sync.Mutex
	stats   Stats
	nextSeq uint64
	now     func() time.Time
}

// NewSampler builds a sampler.
func NewSampler(opts Options) *Sampler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		grabber:  opts.Grabber,
		sink:     opts.Sink,
		logger:   opts.Logger,
		interval: interval,
		maxBytes: opts.MaxFrameBytes,
		tick:     opts.Tick,
		now:      time.Now,
	}
}

// Stats returns a copy of the sampler counters.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run samples until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	tick := s.tick
	if tick == nil {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.sample(ctx)
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	grabCtx, cancel := context.WithTimeout(ctx, grabTimeout)
	data, err := s.grabber.Grab(grabCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.count(func(st *Stats) { st.Failed++ })
		s.log(slog.LevelWarn, "frame grab failed", "error", err.Error())
		return
	}

	mimeType, ok := Sniff(data)
	switch {
	case !ok:
		s.discard("unrecognized format", len(data))
		return
	case s.maxBytes > 0 && len(data) > s.maxBytes:
		s.discard("above maximum", len(data))
		return
	}

	s.mu.Lock()
	frame := Frame{Sequence: s.nextSeq, Payload: data, MimeType: mimeType, CapturedAt: s.now()}
	s.mu.Unlock()

	if s.sink == nil || !s.sink.DeliverFrame(frame) {
		s.discard("not sent", len(data))
		return
	}

	s.mu.Lock()
	s.nextSeq++
	s.stats.Sent++
	s.mu.Unlock()
	s.log(slog.LevelDebug, "frame sent", "sequence", frame.Sequence, "bytes", len(data), "mime_type", mimeType)
}

func (s *Sampler) discard(reason string, size int) {
	s.count(func(st *Stats) { st.Discarded++ })
	s.log(slog.LevelDebug, "frame discarded", "reason", reason, "bytes", size)
}

func (s *Sampler) count(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

func (s *Sampler) log(level slog.Level, msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Log(context.Background(), level, msg, attrs...)
}
