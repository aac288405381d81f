package dispatch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rbright/castline/internal/chat"
	"github.com/rbright/castline/internal/chat/chattest"
)

type frame struct {
	messageType int
	data        []byte
}

type fakeConn struct {
	inbound chan frame

	mu       sync.Mutex
	writes   []frame
	controls []frame
	writeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan frame, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case fr := <-f.inbound:
		return fr.messageType, fr.data, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, frame{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, frame{messageType: messageType, data: data})
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) push(messageType int, data string) {
	f.inbound <- frame{messageType: messageType, data: []byte(data)}
}

func (f *fakeConn) written() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frame(nil), f.writes...)
}

func (f *fakeConn) controlFrames() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frame(nil), f.controls...)
}

func (f *fakeConn) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

type fakeDialer struct {
	conn *fakeConn
	err  error

	mu    sync.Mutex
	dials int
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type harness struct {
	client *Client
	conn   *fakeConn
	store  *chat.Store
	banner *chat.Banner
	clock  *chattest.Clock
}

func newHarness(t *testing.T) harness {
	t.Helper()

	conn := newFakeConn()
	clock := chattest.NewClock()
	store := chat.NewStore(10)
	banner := chat.NewBanner(5*time.Second, clock)
	client := New(Options{
		URL:    "ws://service.test/ws",
		Dialer: &fakeDialer{conn: conn},
		Store:  store,
		Banner: banner,
	})
	t.Cleanup(func() { _ = client.Close() })

	return harness{client: client, conn: conn, store: store, banner: banner, clock: clock}
}

func TestSendWhileDisconnectedRecordsNoWrites(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, StateDisconnected, h.client.State())
	require.False(t, h.client.SendSegment([]byte("segment")))
	require.False(t, h.client.SendText("hello"))
	require.Empty(t, h.conn.written())
}

func TestSendPreservesCallOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Connect(context.Background()))
	require.Equal(t, StateOpen, h.client.State())

	require.True(t, h.client.SendSegment([]byte{1, 2, 3}))
	require.True(t, h.client.SendText("note"))
	require.True(t, h.client.SendSegment([]byte{4}))

	writes := h.conn.written()
	require.Len(t, writes, 3)
	require.Equal(t, frame{websocket.BinaryMessage, []byte{1, 2, 3}}, writes[0])
	require.Equal(t, frame{websocket.TextMessage, []byte("note")}, writes[1])
	require.Equal(t, frame{websocket.BinaryMessage, []byte{4}}, writes[2])
}

func TestConnectTwiceFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Connect(context.Background()))
	require.ErrorIs(t, h.client.Connect(context.Background()), ErrAlreadyConnected)
}

func TestConnectFailureSurfacesTransportError(t *testing.T) {
	clock := chattest.NewClock()
	banner := chat.NewBanner(5*time.Second, clock)
	dialer := &fakeDialer{err: errors.New("connection refused")}
	client := New(Options{URL: "ws://service.test/ws", Dialer: dialer, Banner: banner})

	err := client.Connect(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, StateDisconnected, client.State())
	require.ErrorIs(t, client.Err(), ErrTransport)
	require.Len(t, banner.Active(), 1)

	require.False(t, client.SendText("x"))
}

func TestPingIsAnsweredAndNotForwarded(t *testing.T) {
	h := newHarness(t)
	var delivered []Message
	var mu sync.Mutex
	h.client.Subscribe(NewHandler(func(msg Message) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, msg)
	}))
	require.NoError(t, h.client.Connect(context.Background()))

	h.conn.push(websocket.TextMessage, "ping")
	h.conn.push(websocket.TextMessage, `{"type":"result","text":"after ping"}`)

	require.Eventually(t, func() bool { return h.store.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []frame{{websocket.TextMessage, []byte("pong")}}, h.conn.written())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Message{TextResult{Text: "after ping"}}, delivered)
}

func TestErrorNoticeShowsBannerAndExpires(t *testing.T) {
	h := newHarness(t)
	h.store.Append("existing")
	require.NoError(t, h.client.Connect(context.Background()))

	h.conn.push(websocket.TextMessage, `{"type":"error","error":{"type":"x","message":"boom"}}`)
	require.Eventually(t, func() bool { return len(h.banner.Active()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"boom"}, h.banner.Active())

	h.clock.Advance(4900 * time.Millisecond)
	require.Equal(t, []string{"boom"}, h.banner.Active())
	h.clock.Advance(200 * time.Millisecond)
	require.Empty(t, h.banner.Active())

	require.Equal(t, []string{"existing"}, h.store.Texts())
	require.Equal(t, StateOpen, h.client.State())
}

func TestResultsAndAnalysisAppendToStore(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Connect(context.Background()))

	h.conn.push(websocket.TextMessage, `{"type":"message","text":"first"}`)
	h.conn.push(websocket.TextMessage, `{"type":"analysis","data":{"frame_size":[2,4],"average_brightness":1,"motion_detected":false}}`)

	require.Eventually(t, func() bool { return h.store.Len() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"first", "[screen] frame 4x2, brightness 1.0, still"}, h.store.Texts())
}

func TestMalformedFramesAreDropped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Connect(context.Background()))

	h.conn.push(websocket.TextMessage, `{broken`)
	h.conn.push(websocket.TextMessage, `{"type":"mystery"}`)
	h.conn.push(websocket.BinaryMessage, "\x00\x01")
	h.conn.push(websocket.TextMessage, `{"type":"result","text":"ok"}`)

	require.Eventually(t, func() bool { return h.store.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"ok"}, h.store.Texts())
	require.Empty(t, h.banner.Active())
	require.Equal(t, StateOpen, h.client.State())
}

func TestHandlersRunInRegistrationOrderWithIdentity(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) *FuncHandler {
		return NewHandler(func(Message) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		})
	}
	first, second, third := record("first"), record("second"), record("third")

	h.client.Subscribe(first)
	h.client.Subscribe(second)
	h.client.Subscribe(first)
	h.client.Subscribe(third)
	h.client.Unsubscribe(second)
	h.client.Unsubscribe(record("unknown"))
	require.Equal(t, 2, h.client.Handlers())

	require.NoError(t, h.client.Connect(context.Background()))
	h.conn.push(websocket.TextMessage, `{"type":"result","text":"a"}`)
	h.conn.push(websocket.TextMessage, `{"type":"result","text":"b"}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "third", "first", "third"}, order)
}

func TestWriteFailureDisconnects(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Connect(context.Background()))

	h.conn.setWriteErr(errors.New("broken pipe"))
	require.False(t, h.client.SendSegment([]byte{1}))
	require.Equal(t, StateDisconnected, h.client.State())
	require.ErrorIs(t, h.client.Err(), ErrTransport)
	require.Equal(t, []string{"Connection to analysis service failed"}, h.banner.Active())

	require.False(t, h.client.SendSegment([]byte{2}))
}

func TestCloseIsIdempotentAndSendsNormalClosure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Connect(context.Background()))

	require.NoError(t, h.client.Close())
	require.NoError(t, h.client.Close())
	require.Equal(t, StateDisconnected, h.client.State())

	controls := h.conn.controlFrames()
	require.Len(t, controls, 1)
	require.Equal(t, websocket.CloseMessage, controls[0].messageType)

	require.False(t, h.client.SendText("late"))
	require.Empty(t, h.conn.written())

	select {
	case <-h.client.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop did not exit")
	}
	require.Empty(t, h.banner.Active())
}

func TestReconnectAfterClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Connect(context.Background()))
	require.NoError(t, h.client.Close())

	h.client.dialer = &fakeDialer{conn: newFakeConn()}
	require.NoError(t, h.client.Connect(context.Background()))
	require.Equal(t, StateOpen, h.client.State())
}

func TestWebSocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	pong := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
			return
		}
		_, reply, err := conn.ReadMessage()
		if err != nil {
			return
		}
		pong <- string(reply)

		messageType, payload, err := conn.ReadMessage()
		if err != nil || messageType != websocket.BinaryMessage {
			return
		}
		_ = conn.WriteJSON(map[string]string{"type": "message", "text": "received " + string(payload)})

		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	store := chat.NewStore(10)
	client := New(Options{
		URL:    "ws" + strings.TrimPrefix(server.URL, "http"),
		Dialer: WebSocketDialer{HandshakeTimeout: 2 * time.Second},
		Store:  store,
	})
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	select {
	case got := <-pong:
		require.Equal(t, "pong", got)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}

	require.True(t, client.SendSegment([]byte("segment")))
	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"received segment"}, store.Texts())
}

func TestWebSocketDialerReportsHandshakeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := WebSocketDialer{}.Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"))
	var handshake *HandshakeError
	require.ErrorAs(t, err, &handshake)
	require.Equal(t, http.StatusForbidden, handshake.Status)
}
