// Package capture runs one segmented capture session: cut timer, size filter, and drain on stop.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/castline/internal/encoder"
	"github.com/rbright/castline/internal/fsm"
)

const (
	// DefaultInterval is the cut cadence when none is configured.
	DefaultInterval = 10 * time.Second
	// DefaultMinSegmentBytes drops cuts too small to carry useful audio.
	DefaultMinSegmentBytes = 4096
)

var (
	// ErrDeviceUnavailable reports a track that could not be acquired.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrAlreadyCapturing is returned by Begin while a session is active.
	ErrAlreadyCapturing = errors.New("capture already in progress")
)

// Segment is one transmitted, independently decodable media unit.
type Segment struct {
	Sequence   uint64
	Payload    []byte
	MimeType   string
	Final      bool
	CapturedAt time.Time
}

// TrackSource acquires a live track for one capture session.
type TrackSource interface {
	Acquire(ctx context.Context) (encoder.Track, error)
}

// Sink receives segments in sequence order from the capture loop.
// Deliver may call Controller.Stop but never Controller.End.
type Sink interface {
	Deliver(Segment)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(Segment)

// Deliver implements Sink.
func (f SinkFunc) Deliver(seg Segment) { f(seg) }

// Reporter surfaces capture failures to the user.
type Reporter interface {
	Failure(err error)
	Recovered()
}

// Stats counts what one session handed off or dropped.
type Stats struct {
	Sent      uint64
	Discarded uint64
	BytesSent uint64
}

// Ticker drives cuts. Tests substitute a manual implementation.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.ticker.C }
func (t timeTicker) Stop()               { t.ticker.Stop() }

// NewTimeTicker is the default Ticker factory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{ticker: time.NewTicker(d)}
}

// Options configures a Controller.
type Options struct {
	Source          TrackSource
	Format          encoder.Format
	Sink            Sink
	Reporter        Reporter
	Logger          *slog.Logger
	Interval        time.Duration
	MinSegmentBytes int
	MaxSegmentBytes int
	NewTicker       func(time.Duration) Ticker
}

// Controller owns the capture state machine and the active encoder.
type Controller struct {
	source    TrackSource
	format    encoder.Format
	sink      Sink
	reporter  Reporter
	logger    *slog.Logger
	interval  time.Duration
	minBytes  int
	maxBytes  int
	newTicker func(time.Duration) Ticker

	mu          sync.RWMutex
	state       fsm.State
	lastErr     error
	stats       Stats
	nextSeq     uint64
	active      *run
	done        chan struct{}
	pendingStop bool
}

type run struct {
	enc    *encoder.Encoder
	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewController builds an idle controller.
func NewController(opts Options) *Controller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	newTicker := opts.NewTicker
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	minBytes := opts.MinSegmentBytes
	if minBytes < 0 {
		minBytes = 0
	}
	maxBytes := opts.MaxSegmentBytes
	if maxBytes < 0 {
		maxBytes = 0
	}
	done := make(chan struct{})
	close(done)

	return &Controller{
		source:    opts.Source,
		format:    opts.Format,
		sink:      opts.Sink,
		reporter:  opts.Reporter,
		logger:    opts.Logger,
		interval:  interval,
		minBytes:  minBytes,
		maxBytes:  maxBytes,
		newTicker: newTicker,
		state:     fsm.StateIdle,
		done:      done,
	}
}

// State returns the current capture state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns counters for the current or most recent session.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LastError returns the most recent session failure.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Buffered returns PCM bytes waiting for the next cut.
func (c *Controller) Buffered() int {
	c.mu.RLock()
	active := c.active
	c.mu.RUnlock()
	if active == nil {
		return 0
	}
	return active.enc.Buffered()
}

// Done is closed when the current session has drained back to idle.
func (c *Controller) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Begin acquires a track and starts the cut loop.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.state != fsm.StateIdle {
		c.mu.Unlock()
		return ErrAlreadyCapturing
	}
	if err := c.transitionLocked(fsm.EventBegin); err != nil {
		c.mu.Unlock()
		return err
	}
	c.stats = Stats{}
	c.nextSeq = 0
	c.lastErr = nil
	c.pendingStop = false
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	if c.source == nil {
		return c.abortBegin(done, fmt.Errorf("%w: no track source", ErrDeviceUnavailable))
	}
	track, err := c.source.Acquire(ctx)
	if err != nil {
		return c.abortBegin(done, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err))
	}

	enc, err := encoder.Start(track, c.format)
	if err != nil {
		_ = track.Stop()
		return c.abortBegin(done, fmt.Errorf("%w: %w", encoder.ErrEncoderFault, err))
	}

	r := &run{
		enc:    enc,
		ticker: c.newTicker(c.interval),
		stop:   make(chan struct{}, 1),
		done:   done,
	}

	c.mu.Lock()
	c.active = r
	if c.pendingStop {
		r.stop <- struct{}{}
	}
	c.mu.Unlock()

	if c.reporter != nil {
		c.reporter.Recovered()
	}
	c.log(slog.LevelInfo, "capture started",
		"track", track.ID(),
		"mime_type", enc.MimeType(),
		"interval_ms", c.interval.Milliseconds(),
	)

	go c.loop(r)
	return nil
}

// End requests a drain and blocks until idle. It is safe in every state.
// A sink must not call End from inside Deliver; it calls Stop instead.
func (c *Controller) End() {
	<-c.requestStop()
}

// Stop queues a drain and returns without waiting. Done reports completion.
func (c *Controller) Stop() {
	c.requestStop()
}

func (c *Controller) requestStop() <-chan struct{} {
	c.mu.Lock()
	r := c.active
	if r == nil {
		if c.state == fsm.StateCapturing {
			// Begin is still acquiring; it honors the stop once the track is up.
			c.pendingStop = true
		}
		done := c.done
		c.mu.Unlock()
		return done
	}
	c.mu.Unlock()

	select {
	case r.stop <- struct{}{}:
	default:
	}
	return r.done
}

func (c *Controller) loop(r *run) {
	defer close(r.done)

	for {
		// A queued stop wins over a ready tick.
		select {
		case <-r.stop:
			c.drain(r, nil)
			return
		default:
		}

		select {
		case <-r.stop:
			c.drain(r, nil)
			return
		case <-r.enc.Ended():
			var fault error
			select {
			case fault = <-r.enc.Faults():
			default:
				c.log(slog.LevelInfo, "capture track closed")
			}
			c.drain(r, fault)
			return
		case <-r.ticker.C():
			if err := c.cut(r); err != nil {
				c.drain(r, err)
				return
			}
		}
	}
}

func (c *Controller) cut(r *run) error {
	c.transition(fsm.EventCut)
	chunk, err := r.enc.Cut()
	if err != nil {
		c.transition(fsm.EventResume)
		return err
	}
	c.deliver(chunk)
	c.transition(fsm.EventResume)
	return nil
}

func (c *Controller) drain(r *run, fault error) {
	r.ticker.Stop()
	c.transition(fsm.EventEnd)

	chunk, err := r.enc.Finish()
	if err != nil {
		c.log(slog.LevelWarn, "terminal cut failed", "error", err.Error())
		if fault == nil && !errors.Is(err, encoder.ErrClosed) {
			fault = err
		}
	} else {
		c.deliver(chunk)
	}

	c.mu.Lock()
	c.active = nil
	if fault != nil {
		c.lastErr = fault
		_ = c.transitionLocked(fsm.EventFail)
		_ = c.transitionLocked(fsm.EventReset)
	} else {
		_ = c.transitionLocked(fsm.EventDrained)
	}
	stats := c.stats
	c.mu.Unlock()

	if fault != nil {
		c.log(slog.LevelError, "capture failed", "error", fault.Error())
		if c.reporter != nil {
			c.reporter.Failure(fault)
		}
	}
	c.log(slog.LevelInfo, "capture drained",
		"sent", stats.Sent,
		"discarded", stats.Discarded,
		"bytes", stats.BytesSent,
	)
}

// deliver applies the size filter and hands passing chunks to the sink.
func (c *Controller) deliver(chunk encoder.Chunk) {
	size := len(chunk.Data)

	c.mu.Lock()
	if reason := c.rejectLocked(chunk, size); reason != "" {
		c.stats.Discarded++
		c.mu.Unlock()
		c.log(slog.LevelDebug, "segment discarded",
			"reason", reason,
			"bytes", size,
			"cut", chunk.Index,
			"final", chunk.Final,
		)
		return
	}
	seg := Segment{
		Sequence:   c.nextSeq,
		Payload:    chunk.Data,
		MimeType:   chunk.MimeType,
		Final:      chunk.Final,
		CapturedAt: chunk.CutAt,
	}
	c.nextSeq++
	c.stats.Sent++
	c.stats.BytesSent += uint64(size)
	c.mu.Unlock()

	c.log(slog.LevelDebug, "segment ready", "sequence", seg.Sequence, "bytes", size, "final", seg.Final)
	if c.sink == nil {
		return
	}
	c.sink.Deliver(seg)
}

func (c *Controller) rejectLocked(chunk encoder.Chunk, size int) string {
	switch {
	case chunk.Empty() || size == 0:
		return "empty"
	case size < c.minBytes:
		return "below minimum"
	case c.maxBytes > 0 && size > c.maxBytes:
		return "above maximum"
	default:
		return ""
	}
}

func (c *Controller) abortBegin(done chan struct{}, err error) error {
	c.mu.Lock()
	c.lastErr = err
	_ = c.transitionLocked(fsm.EventFail)
	_ = c.transitionLocked(fsm.EventReset)
	c.mu.Unlock()
	close(done)

	c.log(slog.LevelError, "capture start failed", "error", err.Error())
	if c.reporter != nil {
		c.reporter.Failure(err)
	}
	return err
}

func (c *Controller) transition(event fsm.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.transitionLocked(event)
}

func (c *Controller) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.log(slog.LevelWarn, "invalid capture transition", "state", string(c.state), "event", string(event))
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) log(level slog.Level, msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, attrs...)
}
