package audio

import (
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	dspwav "github.com/mjibson/go-dsp/wav"
	"github.com/pkg/errors"

	"github.com/ftl/dcf39/dsp"
)

const (
	wavBitDepth    = 16
	wavFormatPCM   = 1
	wavChannelMono = 1
)

// WAVSource reads the first channel of a PCM or IEEE float WAV file.
type WAVSource struct {
	wav       *dspwav.Wav
	channels  int
	remaining int
}

func OpenWAV(r io.Reader) (*WAVSource, error) {
	w, err := dspwav.New(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read WAV header")
	}
	if w.NumChannels == 0 {
		return nil, errors.Wrap(ErrUnsupportedFormat, "WAV file without channels")
	}
	if w.AudioFormat == wavFormatPCM && w.BitsPerSample != 8 && w.BitsPerSample != 16 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%d bits per sample", w.BitsPerSample)
	}
	return &WAVSource{
		wav:       w,
		channels:  int(w.NumChannels),
		remaining: w.Samples,
	}, nil
}

func (s *WAVSource) SampleRate() int {
	return int(s.wav.SampleRate)
}

func (s *WAVSource) Channels() int {
	return s.channels
}

func (s *WAVSource) Read(samples []int16) (int, error) {
	n := min(len(samples)*s.channels, s.remaining)
	n -= n % s.channels
	if n == 0 {
		return 0, io.EOF
	}

	data, err := s.wav.ReadSamples(n)
	if err != nil {
		return 0, errors.Wrap(err, "cannot read WAV samples")
	}
	s.remaining -= n

	count := n / s.channels
	switch d := data.(type) {
	case []int16:
		for i := 0; i < count; i++ {
			samples[i] = d[i*s.channels]
		}
	case []uint8:
		for i := 0; i < count; i++ {
			samples[i] = (int16(d[i*s.channels]) - 128) << 8
		}
	case []float32:
		for i := 0; i < count; i++ {
			samples[i] = dsp.SaturateInt16(d[i*s.channels] * math.MaxInt16)
		}
	default:
		return 0, errors.Wrapf(ErrUnsupportedFormat, "sample type %T", data)
	}
	return count, nil
}

// WriteWAV writes the given samples as 16 bit mono PCM WAV file.
func WriteWAV(w io.WriteSeeker, sampleRate int, samples []int16) error {
	encoder := wav.NewEncoder(w, sampleRate, wavBitDepth, wavChannelMono, wavFormatPCM)
	buffer := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: wavChannelMono,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: wavBitDepth,
	}
	for i, sample := range samples {
		buffer.Data[i] = int(sample)
	}

	if err := encoder.Write(buffer); err != nil {
		return errors.Wrap(err, "cannot write WAV samples")
	}
	return errors.Wrap(encoder.Close(), "cannot finish WAV file")
}
