package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/rbright/castline/internal/chat"
)

// printer writes each chat entry to out exactly once, in arrival order.
type printer struct {
	out io.Writer

	mu      sync.Mutex
	next    uint64
	started bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

// Entries matches chat.Store.Subscribe. Evicted or cleared entries are never reprinted.
func (p *printer) Entries(entries []chat.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range entries {
		if p.started && entry.Seq < p.next {
			continue
		}
		fmt.Fprintln(p.out, entry.Text)
		p.next = entry.Seq + 1
		p.started = true
	}
}
