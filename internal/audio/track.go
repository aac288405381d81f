package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// DefaultSampleRate is the capture rate used when config leaves it unset.
const DefaultSampleRate = 16000

// Track streams 20ms PCM16 mono chunks from one selected Pulse source.
type Track struct {
	device    Device
	chunkSize int

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool
	err     error

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// StartTrack creates and starts a mono s16 record stream at sampleRate.
func StartTrack(ctx context.Context, selected Device, sampleRate int) (*Track, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	track := newTrack(selected, chunkSizeFor(sampleRate))
	track.client = client

	writer := pulse.NewWriter(writerFunc(track.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(uint32(track.chunkSize)),
		pulse.RecordMediaName("castline capture"),
	)
	if err != nil {
		track.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	track.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			track.fail(ctx.Err())
			_ = track.Stop()
		case <-track.stopCh:
		}
	}()

	return track, nil
}

func newTrack(device Device, chunkSize int) *Track {
	return &Track{
		device:    device,
		chunkSize: chunkSize,
		chunks:    make(chan []byte, 128),
		stopCh:    make(chan struct{}),
	}
}

// chunkSizeFor returns the byte length of 20ms of mono s16 audio.
func chunkSizeFor(sampleRate int) int {
	return sampleRate / 50 * 2
}

// ID returns the Pulse source name backing this track.
func (t *Track) ID() string {
	return t.device.ID
}

// Device returns track metadata for logging and diagnostics.
func (t *Track) Device() Device {
	return t.device
}

// Active reports whether the track is still delivering audio.
func (t *Track) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// Err returns the reason the track ended on its own, if any.
func (t *Track) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Chunks returns the PCM stream as fixed-size byte slices.
func (t *Track) Chunks() <-chan []byte {
	return t.chunks
}

// BytesCaptured reports total bytes accepted from Pulse.
func (t *Track) BytesCaptured() int64 {
	return t.bytes.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (t *Track) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	close(t.stopCh)
	t.mu.Unlock()

	if t.stream != nil {
		t.stream.Stop()
		t.stream.Close()
	}
	if t.client != nil {
		t.client.Close()
	}

	t.inflight.Wait()

	t.mu.Lock()
	pending := append([]byte(nil), t.pending...)
	t.pending = nil
	t.mu.Unlock()

	if len(pending) > 0 {
		select {
		case t.chunks <- pending:
		default:
		}
	}

	close(t.chunks)
	return nil
}

// Close is a convenience alias for Stop.
func (t *Track) Close() {
	_ = t.Stop()
}

// fail records the first terminal cause before the track is stopped.
func (t *Track) fail(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

// onPCM receives raw Pulse frames and emits chunkSize slices to t.chunks.
func (t *Track) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-t.stopCh:
		return 0, io.EOF
	default:
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return 0, io.EOF
	}
	// Add must happen under the same mutex as t.stopped to avoid Add/Wait races.
	t.inflight.Add(1)

	t.pending = append(t.pending, buffer...)

	chunks := make([][]byte, 0, len(t.pending)/t.chunkSize)
	for len(t.pending) >= t.chunkSize {
		chunk := make([]byte, t.chunkSize)
		copy(chunk, t.pending[:t.chunkSize])
		t.pending = t.pending[t.chunkSize:]
		chunks = append(chunks, chunk)
	}
	t.mu.Unlock()
	defer t.inflight.Done()

	t.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case <-t.stopCh:
			return 0, io.EOF
		case t.chunks <- chunk:
		}
	}

	return len(buffer), nil
}
