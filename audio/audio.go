// Package audio provides sources of signed 16 bit mono samples: WAV files, raw sample streams and Pulseaudio.
package audio

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const DefaultBufferSize = 1024

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Source provides mono samples at a fixed sample rate. Read returns io.EOF when the source is exhausted.
type Source interface {
	Read(samples []int16) (int, error)
	SampleRate() int
}

type SampleWriter interface {
	Write(samples []int16) (int, error)
}

// Copy reads samples from src and writes them to dst until src is exhausted or the context is canceled.
// It returns the number of copied samples.
func Copy(ctx context.Context, dst SampleWriter, src Source, bufferSize int) (int, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	buf := make([]int16, bufferSize)
	total := 0
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, errors.Wrap(err, "cannot write samples")
			}
			total += n
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, errors.Wrap(err, "cannot read samples")
		}
	}
}

// RawSource reads headerless signed 16 bit little endian samples.
type RawSource struct {
	r          io.Reader
	sampleRate int
	buf        []byte
}

func NewRawSource(r io.Reader, sampleRate int) *RawSource {
	return &RawSource{
		r:          r,
		sampleRate: sampleRate,
	}
}

func (s *RawSource) SampleRate() int {
	return s.sampleRate
}

func (s *RawSource) Read(samples []int16) (int, error) {
	size := 2 * len(samples)
	if len(s.buf) < size {
		s.buf = make([]byte, size)
	}

	n, err := io.ReadFull(s.r, s.buf[:size])
	count := n / 2
	for i := 0; i < count; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(s.buf[2*i:]))
	}

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF) && count > 0:
		return count, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return 0, io.EOF
	default:
		return count, err
	}
}
