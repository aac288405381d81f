// Package chattest provides a manually advanced clock for banner expiry tests.
package chattest

import (
	"sort"
	"sync"
	"time"

	"github.com/rbright/castline/internal/chat"
)

// Clock fires AfterFunc callbacks only when Advance moves past their deadline.
type Clock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*timer
}

type timer struct {
	clock    *Clock
	deadline time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewClock returns a clock positioned at zero elapsed time.
func NewClock() *Clock {
	return &Clock{}
}

// AfterFunc implements chat.Clock.
func (c *Clock) AfterFunc(d time.Duration, fn func()) chat.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, deadline: c.now + d, fn: fn}
	c.pending = append(c.pending, t)
	return t
}

// Elapsed returns the total advanced duration.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward by d and runs due callbacks in deadline order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	due := make([]*timer, 0, len(c.pending))
	keep := c.pending[:0]
	for _, t := range c.pending {
		switch {
		case t.stopped:
		case t.deadline <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.pending = keep
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		t.fn()
	}
}
