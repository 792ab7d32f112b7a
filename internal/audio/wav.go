package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// HeaderSize is the length of a canonical PCM WAV header. Streaming
	// responses emit the header as their first chunk.
	HeaderSize = 44

	// StreamChunkSize is the payload size of each streamed chunk after the
	// header.
	StreamChunkSize = 8192

	bitDepth = 16
	channels = 1
)

// EncodeWAV renders a waveform as 16-bit mono PCM WAV bytes.
func EncodeWAV(w Waveform) ([]byte, error) {
	if w.SampleRate <= 0 {
		return nil, errors.New("waveform sample rate must be positive")
	}

	buffer := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: w.SampleRate},
		SourceBitDepth: bitDepth,
	}
	buffer.Data = make([]int, len(w.Samples))
	for i, s := range w.Samples {
		buffer.Data[i] = clampSample(s)
	}

	sink := &seekableBuffer{}
	enc := wav.NewEncoder(sink, w.SampleRate, bitDepth, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return sink.data, nil
}

func clampSample(s float64) int {
	scaled := math.Round(s * 32767)
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int(scaled)
}

// seekableBuffer adapts an in-memory byte slice to io.WriteSeeker so the wav
// encoder can patch chunk sizes after writing.
type seekableBuffer struct {
	data []byte
	pos  int
}

func (b *seekableBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = int(next)
	return next, nil
}
