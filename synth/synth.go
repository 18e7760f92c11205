// Package synth generates the audio of FSK telegrams.
package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/ftl/dcf39/dsp"
	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/telegram"
)

type Config struct {
	SampleRate     int
	BaudRate       int
	MarkFrequency  float64
	SpaceFrequency float64
	// Amplitude of the tone in sample units.
	Amplitude float64
	// NoiseLevel is the standard deviation of additive Gaussian noise in sample units.
	NoiseLevel float64
	Seed       int64
	// LeadIn and Tail are the durations of idle (mark) tone around each telegram.
	LeadIn time.Duration
	Tail   time.Duration
}

var DefaultConfig = Config{
	SampleRate:     fsk.SampleRate,
	BaudRate:       fsk.BaudRate,
	MarkFrequency:  fsk.MarkFrequency,
	SpaceFrequency: fsk.SpaceFrequency,
	Amplitude:      8000,
	LeadIn:         200 * time.Millisecond,
	Tail:           100 * time.Millisecond,
}

// Synthesizer produces continuous phase FSK. Consecutive calls continue the phase of the previous call.
type Synthesizer struct {
	config           Config
	samplesPerSymbol float64
	random           *rand.Rand

	phase float64
	clock float64
}

func New(config Config) *Synthesizer {
	return &Synthesizer{
		config:           config,
		samplesPerSymbol: float64(config.SampleRate) / float64(config.BaudRate),
		random:           rand.New(rand.NewSource(config.Seed)),
	}
}

// Telegram frames the payload and returns the samples of the telegram, including lead-in and tail.
func (s *Synthesizer) Telegram(payload []byte) ([]int16, error) {
	frame, err := telegram.Encode(payload)
	if err != nil {
		return nil, err
	}

	result := s.Idle(s.config.LeadIn)
	result = append(result, s.Symbols(telegram.Symbols(frame))...)
	result = append(result, s.Idle(s.config.Tail)...)
	return result, nil
}

// Idle returns the samples of the mark tone for the given duration, rounded to whole symbols.
func (s *Synthesizer) Idle(duration time.Duration) []int16 {
	symbolCount := int(math.Round(duration.Seconds() * float64(s.config.BaudRate)))
	symbols := make([]bool, symbolCount)
	for i := range symbols {
		symbols[i] = true
	}
	return s.Symbols(symbols)
}

// Symbols returns the samples for the given symbols, mark for true, space for false.
func (s *Synthesizer) Symbols(symbols []bool) []int16 {
	result := make([]int16, 0, int(float64(len(symbols))*s.samplesPerSymbol)+1)
	for _, symbol := range symbols {
		frequency := s.config.SpaceFrequency
		if symbol {
			frequency = s.config.MarkFrequency
		}
		delta := 2 * math.Pi * frequency / float64(s.config.SampleRate)

		count := int(math.Round(s.clock+s.samplesPerSymbol)) - int(math.Round(s.clock))
		s.clock += s.samplesPerSymbol
		for i := 0; i < count; i++ {
			value := s.config.Amplitude * math.Sin(s.phase)
			if s.config.NoiseLevel > 0 {
				value += s.random.NormFloat64() * s.config.NoiseLevel
			}
			result = append(result, dsp.SaturateInt16(value))
			s.phase = math.Mod(s.phase+delta, 2*math.Pi)
		}
	}
	return result
}
