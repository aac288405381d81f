// Package encoder turns one live PCM track into independently decodable segments.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrMediaAccess reports a track that is missing or no longer live.
	ErrMediaAccess = errors.New("media track is not active")
	// ErrEncoderFault reports an encoder that can no longer produce segments.
	ErrEncoderFault = errors.New("segment encoder fault")
	// ErrClosed is returned by Cut/Finish after the terminal chunk was produced.
	ErrClosed = errors.New("segment encoder closed")
)

// Track is one live PCM source owned by a capture session.
type Track interface {
	ID() string
	Active() bool
	Chunks() <-chan []byte
	Err() error
	Stop() error
}

// Chunk is one finalized encode unit produced by a cut.
type Chunk struct {
	Index    uint64
	Data     []byte
	MimeType string
	Final    bool
	PCMBytes int
	CutAt    time.Time
}

// Empty reports whether the cut carried no audio at all.
func (c Chunk) Empty() bool {
	return c.PCMBytes == 0
}

// Encoder buffers track PCM and finalizes it into container-wrapped chunks on demand.
type Encoder struct {
	track  Track
	format Format
	now    func() time.Time

	mu        sync.Mutex
	buffer    []byte
	index     uint64
	finishing bool
	finished  bool

	pumpDone chan struct{}
	faults   chan error
}

// Start binds an encoder to track and begins buffering its PCM output.
func Start(track Track, format Format) (*Encoder, error) {
	if track == nil {
		return nil, fmt.Errorf("%w: no track", ErrMediaAccess)
	}
	if !track.Active() {
		return nil, fmt.Errorf("%w: %s", ErrMediaAccess, track.ID())
	}
	if format == nil {
		format = WAV{SampleRate: DefaultSampleRate, Channels: 1}
	}

	e := &Encoder{
		track:    track,
		format:   format,
		now:      time.Now,
		pumpDone: make(chan struct{}),
		faults:   make(chan error, 1),
	}
	go e.pump()
	return e, nil
}

// Faults delivers at most one ErrEncoderFault when the track ends without Finish.
// A track stopped by its own context cancellation ends cleanly instead.
func (e *Encoder) Faults() <-chan error {
	return e.faults
}

// Ended is closed once the track stops delivering PCM. Any fault is already
// queued on Faults by then.
func (e *Encoder) Ended() <-chan struct{} {
	return e.pumpDone
}

// MimeType returns the container type of produced chunks.
func (e *Encoder) MimeType() string {
	return e.format.MimeType()
}

// Buffered returns the PCM byte count waiting for the next cut.
func (e *Encoder) Buffered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// Cut finalizes the buffered PCM as one chunk and keeps the track flowing into a fresh buffer.
func (e *Encoder) Cut() (Chunk, error) {
	e.mu.Lock()
	if e.finished || e.finishing {
		e.mu.Unlock()
		return Chunk{}, ErrClosed
	}
	pcm := e.buffer
	e.buffer = make([]byte, 0, cap(pcm))
	index := e.index
	e.index++
	e.mu.Unlock()

	return e.encode(index, pcm, false)
}

// Finish stops the track, drains every pending PCM chunk, and returns the terminal chunk.
func (e *Encoder) Finish() (Chunk, error) {
	e.mu.Lock()
	if e.finished || e.finishing {
		e.mu.Unlock()
		return Chunk{}, ErrClosed
	}
	e.finishing = true
	e.mu.Unlock()

	_ = e.track.Stop()
	<-e.pumpDone

	e.mu.Lock()
	pcm := e.buffer
	e.buffer = nil
	index := e.index
	e.index++
	e.finished = true
	e.mu.Unlock()

	return e.encode(index, pcm, true)
}

// pump moves track PCM into the open buffer until the track closes.
func (e *Encoder) pump() {
	defer close(e.pumpDone)

	for chunk := range e.track.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		e.mu.Lock()
		e.buffer = append(e.buffer, chunk...)
		e.mu.Unlock()
	}

	e.mu.Lock()
	finishing := e.finishing
	e.mu.Unlock()
	if finishing {
		return
	}

	cause := e.track.Err()
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return
	}
	if cause == nil {
		cause = errors.New("track ended unexpectedly")
	}
	e.faults <- fmt.Errorf("%w: %s: %v", ErrEncoderFault, e.track.ID(), cause)
}

// encode wraps raw PCM in the configured container.
func (e *Encoder) encode(index uint64, pcm []byte, final bool) (Chunk, error) {
	chunk := Chunk{
		Index:    index,
		MimeType: e.format.MimeType(),
		Final:    final,
		PCMBytes: len(pcm),
		CutAt:    e.now(),
	}
	if len(pcm) == 0 {
		return chunk, nil
	}

	data, err := e.format.Encode(pcm)
	if err != nil {
		return chunk, fmt.Errorf("%w: encode chunk %d: %v", ErrEncoderFault, index, err)
	}
	chunk.Data = data
	return chunk, nil
}
