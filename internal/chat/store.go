// Package chat holds the bounded display log and the ephemeral notice banner.
package chat

import "sync"

// DefaultCapacity bounds the log when no capacity is configured.
const DefaultCapacity = 100

// Entry is one display line plus its insertion ordinal.
type Entry struct {
	Text string
	Seq  uint64
}

// Store is a capacity-bounded, insertion-ordered log with snapshot subscriptions.
//
// Subscribers are invoked synchronously from the mutating call with the full
// ordered snapshot, outside the store lock. Notifications are serialized, so
// every subscriber sees snapshots in mutation order. A subscriber must not call
// Append, Clear or Subscribe on the same store.
type Store struct {
	capacity int

	notifyMu sync.Mutex

	mu      sync.Mutex
	entries []Entry
	nextSeq uint64
	subs    []*storeSub
}

type storeSub struct {
	fn func([]Entry)
}

// NewStore creates an empty log holding at most capacity entries.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Capacity returns the configured entry bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Append adds text at the end, evicts oldest entries beyond capacity, and notifies subscribers.
func (s *Store) Append(text string) Entry {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	entry := Entry{Text: text, Seq: s.nextSeq}
	s.nextSeq++
	s.entries = append(s.entries, entry)
	if overflow := len(s.entries) - s.capacity; overflow > 0 {
		s.entries = append(s.entries[:0:0], s.entries[overflow:]...)
	}
	snapshot, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snapshot)
	return entry
}

// Clear empties the log and notifies subscribers with an empty snapshot.
func (s *Store) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.entries = nil
	snapshot, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snapshot)
}

// Snapshot returns a copy of the current ordered entries.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Texts returns the current ordered display strings.
func (s *Store) Texts() []string {
	return Texts(s.Snapshot())
}

// Len returns the current entry count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Subscribe delivers the current snapshot immediately and then after every change.
func (s *Store) Subscribe(fn func([]Entry)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	sub := &storeSub{fn: fn}
	s.notifyMu.Lock()
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	fn(snapshot)
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, existing := range s.subs {
				if existing == sub {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) snapshotLocked() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) subscribersLocked() []*storeSub {
	out := make([]*storeSub, len(s.subs))
	copy(out, s.subs)
	return out
}

func notify(subs []*storeSub, snapshot []Entry) {
	for _, sub := range subs {
		sub.fn(snapshot)
	}
}

// Texts projects entries onto their display strings.
func Texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.Text
	}
	return out
}
