package indicator

import (
	"context"
	"sync"
)

// Mirror keeps the indicator in step with the banner and capture state.
// Updates coalesce so slow backends never block the banner's caller.
type Mirror struct {
	indicator Controller

	mu        sync.Mutex
	notices   []string
	capturing bool
	shown     string

	wake chan struct{}
	done chan struct{}
}

// NewMirror starts a mirror worker that stops when ctx ends.
func NewMirror(ctx context.Context, indicator Controller) *Mirror {
	m := &Mirror{
		indicator: indicator,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go m.loop(ctx)
	return m
}

// Notices records the banner's visible lines. It matches chat.Banner.Subscribe.
func (m *Mirror) Notices(active []string) {
	m.mu.Lock()
	m.notices = append(m.notices[:0:0], active...)
	m.mu.Unlock()
	m.poke()
}

// SetCapturing records whether a capture session is live.
func (m *Mirror) SetCapturing(capturing bool) {
	m.mu.Lock()
	m.capturing = capturing
	m.mu.Unlock()
	m.poke()
}

// Done is closed after the worker hid the indicator and exited.
func (m *Mirror) Done() <-chan struct{} {
	return m.done
}

func (m *Mirror) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) loop(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.indicator.Hide(context.Background())
			return
		case <-m.wake:
			m.render(ctx)
		}
	}
}

// render shows the newest notice, else the capturing state, else nothing.
func (m *Mirror) render(ctx context.Context) {
	m.mu.Lock()
	var want string
	switch {
	case len(m.notices) > 0:
		want = "notice:" + m.notices[len(m.notices)-1]
	case m.capturing:
		want = "capturing"
	}
	if want == m.shown {
		m.mu.Unlock()
		return
	}
	m.shown = want
	var latest string
	if len(m.notices) > 0 {
		latest = m.notices[len(m.notices)-1]
	}
	m.mu.Unlock()

	switch want {
	case "":
		m.indicator.Hide(ctx)
	case "capturing":
		m.indicator.ShowCapturing(ctx)
	default:
		m.indicator.ShowNotice(ctx, latest)
	}
}
