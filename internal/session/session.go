// Package session coordinates one owner lifecycle: connect, capture, stream, linger, close.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/castline/internal/capture"
	"github.com/rbright/castline/internal/chat"
	"github.com/rbright/castline/internal/dispatch"
	"github.com/rbright/castline/internal/fsm"
	"github.com/rbright/castline/internal/frames"
	"github.com/rbright/castline/internal/ipc"
)

// ErrConnectionLost reports that the service connection dropped mid-session.
var ErrConnectionLost = errors.New("connection to analysis service lost")

// DefaultLinger is how long the session waits for late results after the terminal segment.
const DefaultLinger = 1500 * time.Millisecond

// Phase is the owner-level lifecycle position reported over IPC.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseCapturing  Phase = "capturing"
	PhaseDraining   Phase = "draining"
	PhaseLingering  Phase = "lingering"
)

type action int

const (
	actionStop action = iota + 1
)

// Dispatcher is the session-facing subset of the dispatch client.
type Dispatcher interface {
	Connect(context.Context) error
	Close() error
	State() dispatch.State
	Done() <-chan struct{}
	Err() error
}

// Capturer is the session-facing subset of the capture controller.
type Capturer interface {
	Begin(context.Context) error
	End()
	State() fsm.State
	Stats() capture.Stats
	LastError() error
	Done() <-chan struct{}
}

// FrameSampler streams frames until its context ends.
type FrameSampler interface {
	Run(context.Context)
	Stats() frames.Stats
}

// Indicator mirrors whether capture is live.
type Indicator interface {
	SetCapturing(bool)
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	SessionID  string
	Phase      Phase
	Stopped    bool
	Err        error
	Segments   capture.Stats
	Frames     frames.Stats
	Messages   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options wires a Controller.
type Options struct {
	ID        string
	Logger    *slog.Logger
	Dispatch  Dispatcher
	Capture   Capturer
	Frames    FrameSampler
	Store     *chat.Store
	Banner    *chat.Banner
	Indicator Indicator
	Linger    time.Duration
}

// Controller orchestrates one session and serves IPC commands while it runs.
type Controller struct {
	id        string
	logger    *slog.Logger
	dispatch  Dispatcher
	capture   Capturer
	frames    FrameSampler
	store     *chat.Store
	banner    *chat.Banner
	indicator Indicator
	linger    time.Duration

	mu    sync.RWMutex
	phase Phase

	actions chan action
}

// NewController constructs a session controller. A missing ID gets a fresh UUID.
func NewController(opts Options) *Controller {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	linger := opts.Linger
	if linger < 0 {
		linger = 0
	}
	store := opts.Store
	if store == nil {
		store = chat.NewStore(0)
	}

	return &Controller{
		id:        id,
		logger:    opts.Logger,
		dispatch:  opts.Dispatch,
		capture:   opts.Capture,
		frames:    opts.Frames,
		store:     store,
		banner:    opts.Banner,
		indicator: opts.Indicator,
		linger:    linger,
		phase:     PhaseIdle,
		actions:   make(chan action, 1),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) setPhase(phase Phase) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()
	c.log(slog.LevelDebug, "session phase", "state", string(phase))
}

// Run executes one owner lifecycle and returns once the connection is closed.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{SessionID: c.id, StartedAt: time.Now()}
	finish := func(err error) Result {
		c.setIndicator(false)
		c.setPhase(PhaseIdle)
		result.Err = err
		result.Phase = PhaseIdle
		result.Segments = c.capture.Stats()
		if c.frames != nil {
			result.Frames = c.frames.Stats()
		}
		result.Messages = c.store.Len()
		result.FinishedAt = time.Now()
		c.log(slog.LevelInfo, "session finished",
			"segments", result.Segments.Sent,
			"discarded", result.Segments.Discarded,
			"bytes", result.Segments.BytesSent,
			"frames", result.Frames.Sent,
			"messages", result.Messages,
			"stopped", result.Stopped,
			"error", errString(err),
		)
		return result
	}

	if c.Phase() != PhaseIdle {
		return finish(fmt.Errorf("session already running in phase %s", c.Phase()))
	}

	c.setPhase(PhaseConnecting)
	c.log(slog.LevelInfo, "session starting")
	if err := c.dispatch.Connect(ctx); err != nil {
		return finish(err)
	}
	connDone := c.dispatch.Done()

	if err := c.capture.Begin(ctx); err != nil {
		_ = c.dispatch.Close()
		return finish(err)
	}
	captureDone := c.capture.Done()
	c.setPhase(PhaseCapturing)
	c.setIndicator(true)

	framesCtx, stopFrames := context.WithCancel(ctx)
	framesDone := make(chan struct{})
	if c.frames != nil {
		go func() {
			defer close(framesDone)
			c.frames.Run(framesCtx)
		}()
	} else {
		close(framesDone)
	}
	haltFrames := func() {
		stopFrames()
		<-framesDone
	}

	select {
	case <-ctx.Done():
		haltFrames()
		c.drain()
		_ = c.dispatch.Close()
		return finish(ctx.Err())
	case <-connDone:
		haltFrames()
		c.drain()
		_ = c.dispatch.Close()
		cause := c.dispatch.Err()
		if cause == nil {
			cause = ErrConnectionLost
		} else {
			cause = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
		}
		return finish(cause)
	case <-captureDone:
		haltFrames()
		err := c.capture.LastError()
		if err == nil {
			// The track ends on its own when ctx is cancelled.
			err = ctx.Err()
		}
		c.lingerFor(ctx, connDone)
		_ = c.dispatch.Close()
		return finish(err)
	case <-c.actions:
		result.Stopped = true
		haltFrames()
		c.drain()
		c.lingerFor(ctx, connDone)
		_ = c.dispatch.Close()
		return finish(c.capture.LastError())
	}
}

// drain ends capture and waits for the terminal segment to be delivered.
func (c *Controller) drain() {
	c.setPhase(PhaseDraining)
	c.setIndicator(false)
	c.capture.End()
}

// lingerFor keeps the connection open so results for the last segment can still arrive.
func (c *Controller) lingerFor(ctx context.Context, connDone <-chan struct{}) {
	if c.linger <= 0 {
		return
	}
	c.setPhase(PhaseLingering)
	timer := time.NewTimer(c.linger)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-connDone:
	case <-ctx.Done():
	}
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.status()
	case ipc.CommandToggle, ipc.CommandStop:
		return c.requestStop(req.Command)
	case ipc.CommandMessages:
		resp := ipc.Response{OK: true, State: string(c.Phase()), SessionID: c.id, Messages: c.store.Texts()}
		if c.banner != nil {
			resp.Notices = c.banner.Active()
		}
		return resp
	default:
		return ipc.Response{OK: false, State: string(c.Phase()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) status() ipc.Response {
	resp := ipc.Response{
		OK:         true,
		State:      string(c.Phase()),
		Connection: string(c.dispatch.State()),
		SessionID:  c.id,
		Live:       fsm.Active(c.capture.State()),
		Segments:   c.capture.Stats().Sent,
		Message:    "status",
	}
	if c.frames != nil {
		resp.Frames = c.frames.Stats().Sent
	}
	return resp
}

// requestStop enqueues a stop action when the session is capturing.
func (c *Controller) requestStop(source string) ipc.Response {
	phase := c.Phase()
	switch phase {
	case PhaseDraining, PhaseLingering:
		return ipc.Response{OK: false, State: string(phase), Error: "already stopping"}
	case PhaseCapturing:
	default:
		return ipc.Response{OK: false, State: string(phase), Error: fmt.Sprintf("cannot %s from state %s", source, phase)}
	}

	select {
	case c.actions <- actionStop:
		return ipc.Response{OK: true, State: string(phase), SessionID: c.id, Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(phase), SessionID: c.id, Message: "stop already requested"}
	}
}

func (c *Controller) setIndicator(capturing bool) {
	if c.indicator != nil {
		c.indicator.SetCapturing(capturing)
	}
}

func (c *Controller) log(level slog.Level, msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, append([]any{"session_id", c.id}, attrs...)...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
