package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rbright/castline/internal/capture"
	"github.com/rbright/castline/internal/frames"
)

// Sender writes one binary frame on the shared connection.
type Sender interface {
	SendSegment([]byte) bool
}

// Dumper writes transmitted segments to disk for offline inspection.
type Dumper struct {
	Dir       string
	SessionID string
	Extension string
}

// Path returns the dump location for one segment sequence.
func (d Dumper) Path(sequence uint64) string {
	return filepath.Join(d.Dir, fmt.Sprintf("segment-%s-%d.%s", d.SessionID, sequence, d.Extension))
}

// Write stores one segment payload.
func (d Dumper) Write(sequence uint64, payload []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	path := d.Path(sequence)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write segment dump: %w", err)
	}
	return path, nil
}

// SegmentSink forwards capture segments to the connection.
type SegmentSink struct {
	sender Sender
	dump   *Dumper
	logger *slog.Logger

	mu      sync.Mutex
	dropped uint64
}

// NewSegmentSink builds a capture sink. dump may be nil.
func NewSegmentSink(sender Sender, dump *Dumper, logger *slog.Logger) *SegmentSink {
	return &SegmentSink{sender: sender, dump: dump, logger: logger}
}

// Deliver sends one segment. A closed connection drops it silently apart from a log line.
func (s *SegmentSink) Deliver(seg capture.Segment) {
	if !s.sender.SendSegment(seg.Payload) {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.log(slog.LevelWarn, "segment not sent",
			"sequence", seg.Sequence,
			"bytes", len(seg.Payload),
			"final", seg.Final,
		)
	} else {
		s.log(slog.LevelDebug, "segment sent",
			"sequence", seg.Sequence,
			"bytes", len(seg.Payload),
			"final", seg.Final,
		)
	}

	if s.dump == nil {
		return
	}
	path, err := s.dump.Write(seg.Sequence, seg.Payload)
	if err != nil {
		s.log(slog.LevelWarn, "segment dump failed", "sequence", seg.Sequence, "error", err.Error())
		return
	}
	s.log(slog.LevelDebug, "segment dumped", "sequence", seg.Sequence, "path", path)
}

// Dropped counts segments the connection refused.
func (s *SegmentSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *SegmentSink) log(level slog.Level, msg string, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Log(context.Background(), level, msg, attrs...)
}

// FrameSink forwards sampled frames to the connection.
func FrameSink(sender Sender) frames.SinkFunc {
	return func(frame frames.Frame) bool {
		return sender.SendSegment(frame.Payload)
	}
}

var (
	_ capture.Sink = (*SegmentSink)(nil)
	_ frames.Sink  = FrameSink(nil)
)
