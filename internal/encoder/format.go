package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultSampleRate = 16000
	bitsPerSample     = 16
	wavHeaderSize     = 44
)

// Format wraps raw PCM16LE bytes into one self-contained payload.
type Format interface {
	MimeType() string
	Extension() string
	Encode(pcm []byte) ([]byte, error)
}

// WAV emits a RIFF/WAVE container with a PCM16 fmt chunk.
type WAV struct {
	SampleRate int
	Channels   int
}

func (w WAV) MimeType() string  { return "audio/wav" }
func (w WAV) Extension() string { return "wav" }

// Encode prefixes pcm with a minimal 44-byte WAV header.
func (w WAV) Encode(pcm []byte) ([]byte, error) {
	sampleRate, channels := normalize(w.SampleRate, w.Channels)
	if len(pcm)%(channels*bitsPerSample/8) != 0 {
		return nil, fmt.Errorf("pcm length %d is not frame aligned for %d channel(s)", len(pcm), channels)
	}

	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	var out bytes.Buffer
	out.Grow(wavHeaderSize + len(pcm))

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	out.Write(header)
	out.Write(pcm)
	return out.Bytes(), nil
}

// PCM passes raw samples through and describes them with an audio/L16 type.
type PCM struct {
	SampleRate int
	Channels   int
}

func (p PCM) MimeType() string {
	sampleRate, channels := normalize(p.SampleRate, p.Channels)
	return fmt.Sprintf("audio/L16;rate=%d;channels=%d", sampleRate, channels)
}

func (p PCM) Extension() string { return "pcm" }

func (p PCM) Encode(pcm []byte) ([]byte, error) {
	out := make([]byte, len(pcm))
	copy(out, pcm)
	return out, nil
}

// ParseFormat maps a capture.container config value to a Format.
func ParseFormat(name string, sampleRate int, channels int) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "wav":
		return WAV{SampleRate: sampleRate, Channels: channels}, nil
	case "pcm", "l16":
		return PCM{SampleRate: sampleRate, Channels: channels}, nil
	default:
		return nil, fmt.Errorf("unsupported container %q (expected wav or pcm)", name)
	}
}

// Duration converts a PCM16 byte count into playback time.
func Duration(pcmBytes int, sampleRate int, channels int) time.Duration {
	sampleRate, channels = normalize(sampleRate, channels)
	frames := pcmBytes / (channels * bitsPerSample / 8)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

func normalize(sampleRate int, channels int) (int, int) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	return sampleRate, channels
}
