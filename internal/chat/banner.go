package chat

import (
	"sync"
	"time"
)

// DefaultNoticeTTL is how long transient notices stay visible.
const DefaultNoticeTTL = 5 * time.Second

// Notice is one banner line. Removal is by pointer identity, never by text.
type Notice struct {
	Text       string
	Persistent bool

	timer Timer
}

// Banner is the ephemeral notice channel shown next to the durable chat log.
type Banner struct {
	ttl   time.Duration
	clock Clock

	// notifyMu keeps subscriber deliveries in mutation order.
	notifyMu sync.Mutex

	mu      sync.Mutex
	notices []*Notice
	subs    []*bannerSub
}

type bannerSub struct {
	fn func([]string)
}

// NewBanner creates a banner whose transient notices expire after ttl.
func NewBanner(ttl time.Duration, clock Clock) *Banner {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Banner{ttl: ttl, clock: clock}
}

// TTL returns the transient notice lifetime.
func (b *Banner) TTL() time.Duration {
	return b.ttl
}

// Push shows text immediately and removes this exact notice after the TTL.
func (b *Banner) Push(text string) *Notice {
	notice := &Notice{Text: text}

	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	b.notices = append(b.notices, notice)
	notice.timer = b.clock.AfterFunc(b.ttl, func() { b.Dismiss(notice) })
	active, subs := b.activeLocked(), b.subscribersLocked()
	b.mu.Unlock()

	notifyBanner(subs, active)
	return notice
}

// Pin shows text until Dismiss is called for the returned notice.
func (b *Banner) Pin(text string) *Notice {
	notice := &Notice{Text: text, Persistent: true}

	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	b.notices = append(b.notices, notice)
	active, subs := b.activeLocked(), b.subscribersLocked()
	b.mu.Unlock()

	notifyBanner(subs, active)
	return notice
}

// Dismiss removes notice if it is still visible. Unknown or nil notices are ignored.
func (b *Banner) Dismiss(notice *Notice) {
	if notice == nil {
		return
	}

	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	index := -1
	for i, existing := range b.notices {
		if existing == notice {
			index = i
			break
		}
	}
	if index < 0 {
		b.mu.Unlock()
		return
	}
	b.notices = append(b.notices[:index:index], b.notices[index+1:]...)
	if notice.timer != nil {
		notice.timer.Stop()
	}
	active, subs := b.activeLocked(), b.subscribersLocked()
	b.mu.Unlock()

	notifyBanner(subs, active)
}

// Active returns the visible notice texts, oldest first.
func (b *Banner) Active() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeLocked()
}

// Subscribe delivers the visible notices immediately and then after every change.
func (b *Banner) Subscribe(fn func([]string)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	sub := &bannerSub{fn: fn}
	b.notifyMu.Lock()
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	active := b.activeLocked()
	b.mu.Unlock()
	fn(active)
	b.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, existing := range b.subs {
				if existing == sub {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Banner) activeLocked() []string {
	out := make([]string, len(b.notices))
	for i, notice := range b.notices {
		out[i] = notice.Text
	}
	return out
}

func (b *Banner) subscribersLocked() []*bannerSub {
	out := make([]*bannerSub, len(b.subs))
	copy(out, b.subs)
	return out
}

func notifyBanner(subs []*bannerSub, active []string) {
	for _, sub := range subs {
		sub.fn(active)
	}
}
