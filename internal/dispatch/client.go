// Package dispatch owns the single WebSocket connection to the analysis service.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/castline/internal/chat"
)

var (
	// ErrTransport reports a dial, read, or write failure on the connection.
	ErrTransport = errors.New("transport error")
	// ErrAlreadyConnected is returned by Connect when a connection is open or pending.
	ErrAlreadyConnected = errors.New("dispatch client already connected")
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosing      State = "closing"
)

// Handler consumes classified inbound messages.
// Implementations must be comparable; use pointer receivers.
type Handler interface {
	HandleMessage(Message)
}

// FuncHandler adapts a function into a Handler with a stable identity.
type FuncHandler struct {
	fn func(Message)
}

// NewHandler wraps fn so it can be subscribed and later unsubscribed.
func NewHandler(fn func(Message)) *FuncHandler {
	return &FuncHandler{fn: fn}
}

// HandleMessage implements Handler.
func (h *FuncHandler) HandleMessage(msg Message) {
	if h != nil && h.fn != nil {
		h.fn(msg)
	}
}

// Outbound is one frame queued for the service.
type Outbound struct {
	Binary  bool
	Payload []byte
}

// BinaryFrame wraps payload as a binary frame.
func BinaryFrame(payload []byte) Outbound {
	return Outbound{Binary: true, Payload: payload}
}

// TextFrame wraps text as a text frame.
func TextFrame(text string) Outbound {
	return Outbound{Payload: []byte(text)}
}

func (o Outbound) messageType() int {
	if o.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Options configures a Client.
type Options struct {
	URL          string
	Dialer       Dialer
	Store        *chat.Store
	Banner       *chat.Banner
	Logger       *slog.Logger
	WriteTimeout time.Duration
}

// Client is the process-wide connection owner. Construct one and share it.
type Client struct {
	url          string
	dialer       Dialer
	store        *chat.Store
	banner       *chat.Banner
	logger       *slog.Logger
	writeTimeout time.Duration

	mu      sync.RWMutex
	state   State
	conn    Conn
	lastErr error
	done    chan struct{}

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   []Handler
}

// New builds a disconnected client.
func New(opts Options) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = writeWait
	}
	closed := make(chan struct{})
	close(closed)

	return &Client{
		url:          opts.URL,
		dialer:       dialer,
		store:        opts.Store,
		banner:       opts.Banner,
		logger:       opts.Logger,
		writeTimeout: writeTimeout,
		state:        StateDisconnected,
		done:         closed,
	}
}

// URL returns the configured service endpoint.
func (c *Client) URL() string {
	return c.url
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the most recent transport failure, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Done is closed when the current connection's read loop exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Connect dials the service and starts the inbound read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.log(slog.LevelInfo, "dispatch connecting", "url", c.url)
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		err = fmt.Errorf("%w: dial %s: %w", ErrTransport, c.url, err)
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.lastErr = err
		c.mu.Unlock()
		c.surface(err)
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: closed while connecting", ErrTransport)
	}
	done := make(chan struct{})
	c.conn = conn
	c.state = StateOpen
	c.lastErr = nil
	c.done = done
	c.mu.Unlock()

	c.log(slog.LevelInfo, "dispatch connected", "url", c.url)
	go c.readLoop(conn, done)
	return nil
}

// Send writes one frame when the connection is open. It never queues.
func (c *Client) Send(msg Outbound) bool {
	conn := c.openConn()
	if conn == nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Close may have detached the connection while this send waited.
	if c.openConn() != conn {
		return false
	}

	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteMessage(msg.messageType(), msg.Payload); err != nil {
		c.fail(conn, fmt.Errorf("%w: write: %w", ErrTransport, err))
		return false
	}
	return true
}

// SendSegment writes payload as one binary frame.
func (c *Client) SendSegment(payload []byte) bool {
	return c.Send(BinaryFrame(payload))
}

// SendText writes text as one text frame.
func (c *Client) SendText(text string) bool {
	return c.Send(TextFrame(text))
}

// Subscribe appends h to the delivery order. Duplicates are ignored.
func (c *Client) Subscribe(h Handler) {
	if h == nil {
		return
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	for _, existing := range c.handlers {
		if existing == h {
			return
		}
	}
	c.handlers = append(c.handlers, h)
}

// Unsubscribe removes h. Unknown handlers are ignored.
func (c *Client) Unsubscribe(h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	for i, existing := range c.handlers {
		if existing == h {
			c.handlers = append(c.handlers[:i:i], c.handlers[i+1:]...)
			return
		}
	}
}

// Handlers returns the number of subscribed handlers.
func (c *Client) Handlers() int {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return len(c.handlers)
}

// Close sends a normal closure and releases the connection. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected, StateClosing:
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateClosing
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()
		err = conn.Close()
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()

	c.log(slog.LevelInfo, "dispatch closed")
	return err
}

func (c *Client) openConn() Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateOpen {
		return nil
	}
	return c.conn
}

func (c *Client) readLoop(conn Conn, done chan struct{}) {
	defer close(done)

	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.detach(conn, nil)
				return
			}
			c.fail(conn, fmt.Errorf("%w: read: %w", ErrTransport, err))
			return
		}
		c.handleFrame(frameType, data)
	}
}

func (c *Client) handleFrame(frameType int, data []byte) {
	msg, err := Classify(frameType, data)
	if err != nil {
		c.log(slog.LevelWarn, "drop malformed message", "error", err.Error(), "bytes", len(data))
		return
	}
	if msg == nil {
		c.log(slog.LevelDebug, "ignore binary frame", "bytes", len(data))
		return
	}
	if _, ok := msg.(ControlPing); ok {
		c.SendText(pongText)
		return
	}

	c.apply(msg)

	c.handlersMu.RLock()
	handlers := append([]Handler(nil), c.handlers...)
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h.HandleMessage(msg)
	}
}

// apply performs the built-in store and banner side effects.
func (c *Client) apply(msg Message) {
	switch m := msg.(type) {
	case TextResult:
		c.log(slog.LevelInfo, "result received", "chars", len(m.Text))
		if c.store != nil {
			c.store.Append(m.Text)
		}
	case AnalysisResult:
		c.log(slog.LevelInfo, "analysis received", "motion_detected", m.MotionDetected)
		if c.store != nil {
			c.store.Append(m.Summary())
		}
	case ErrorNotice:
		c.log(slog.LevelWarn, "service error", "type", m.Type, "message", m.Message)
		if c.banner != nil {
			c.banner.Push(m.Text())
		}
	}
}

// fail drops conn after a transport error and surfaces it once.
func (c *Client) fail(conn Conn, err error) {
	if c.detach(conn, err) {
		c.surface(err)
	}
}

func (c *Client) detach(conn Conn, cause error) bool {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return false
	}
	c.conn = nil
	c.state = StateDisconnected
	if cause != nil {
		c.lastErr = cause
	}
	c.mu.Unlock()

	_ = conn.Close()
	if cause == nil {
		c.log(slog.LevelInfo, "dispatch remote closed")
	}
	return true
}

func (c *Client) surface(err error) {
	c.log(slog.LevelError, "dispatch transport failure", "error", err.Error())
	if c.banner != nil {
		c.banner.Push("Connection to analysis service failed")
	}
}

func (c *Client) log(level slog.Level, msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, attrs...)
}
