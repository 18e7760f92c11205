package audio

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jfreymuth/pulse"
	"github.com/pkg/errors"

	"github.com/ftl/dcf39/dsp"
)

const pulseBlockBuffer = 64

// PulseSource records mono samples from a Pulseaudio source.
type PulseSource struct {
	client     *pulse.Client
	stream     *pulse.RecordStream
	sampleRate int

	blocks    chan []int16
	pending   []int16
	done      chan struct{}
	closeOnce sync.Once
}

// OpenPulse starts recording from the Pulseaudio source with the given ID, or from the default source if the ID
// is empty.
func OpenPulse(applicationName string, sourceID string, sampleRate int, bufferSize int) (*PulseSource, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName(applicationName))
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to Pulseaudio")
	}

	var source *pulse.Source
	if sourceID == "" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(sourceID)
	}
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "cannot find Pulseaudio source")
	}

	result := &PulseSource{
		client:     client,
		sampleRate: sampleRate,
		blocks:     make(chan []int16, pulseBlockBuffer),
		done:       make(chan struct{}),
	}

	stream, err := client.NewRecord(pulse.Float32Writer(result.write),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(uint32(4*bufferSize)),
	)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "cannot open record stream")
	}
	result.stream = stream
	log.Infof("recording from %s at %d Hz", source.ID(), stream.SampleRate())

	stream.Start()
	return result, nil
}

func (s *PulseSource) SampleRate() int {
	return s.sampleRate
}

func (s *PulseSource) write(buf []float32) (int, error) {
	block := make([]int16, len(buf))
	for i, v := range buf {
		block[i] = dsp.SaturateInt16(v * 32767)
	}

	select {
	case <-s.done:
		return 0, io.EOF
	case s.blocks <- block:
	default:
		log.Warnf("audio overrun, %d samples dropped", len(block))
	}
	return len(buf), nil
}

func (s *PulseSource) Read(samples []int16) (int, error) {
	if len(s.pending) == 0 {
		select {
		case <-s.done:
			return 0, io.EOF
		case block := <-s.blocks:
			s.pending = block
		}
	}
	n := copy(samples, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close stops the recording. Pending and subsequent reads return io.EOF.
func (s *PulseSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.stream.Stop()
		s.stream.Close()
		s.client.Close()
	})
	return nil
}
