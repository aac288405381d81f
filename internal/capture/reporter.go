package capture

import (
	"errors"
	"sync"

	"github.com/rbright/castline/internal/chat"
	"github.com/rbright/castline/internal/encoder"
)

const (
	deviceFailureText  = "Failed to access the microphone"
	captureFailureText = "Recording stopped because of an error"
)

// BannerReporter shows capture failures on a chat banner.
// Device failures stay pinned until the next successful Begin.
type BannerReporter struct {
	banner *chat.Banner

	mu     sync.Mutex
	pinned *chat.Notice
}

// NewBannerReporter reports onto banner.
func NewBannerReporter(banner *chat.Banner) *BannerReporter {
	return &BannerReporter{banner: banner}
}

// Failure implements Reporter.
func (r *BannerReporter) Failure(err error) {
	if r.banner == nil || err == nil {
		return
	}
	text := FailureText(err)
	if !errors.Is(err, ErrDeviceUnavailable) {
		r.banner.Push(text)
		return
	}

	r.mu.Lock()
	previous := r.pinned
	r.pinned = r.banner.Pin(text)
	r.mu.Unlock()
	r.banner.Dismiss(previous)
}

// Recovered implements Reporter.
func (r *BannerReporter) Recovered() {
	r.mu.Lock()
	pinned := r.pinned
	r.pinned = nil
	r.mu.Unlock()
	if r.banner != nil {
		r.banner.Dismiss(pinned)
	}
}

// FailureText maps a capture failure to its user-facing line.
func FailureText(err error) string {
	switch {
	case errors.Is(err, ErrDeviceUnavailable), errors.Is(err, encoder.ErrMediaAccess):
		return deviceFailureText
	default:
		return captureFailureText
	}
}
