// Package survey finds the tones of an FSK signal in the averaged spectrum of the received audio.
//
// The survey is used to check whether a recording or a receiver setup matches the demodulator: the two strongest
// tones should lie symmetrically around the decision frequency.
package survey

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/ftl/dcf39/dsp"
	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/scope"
)

const (
	DefaultBlockSize = 2048

	// noiseEdgeWidth bins at both ends of the spectrum are ignored when looking for the noise floor.
	noiseEdgeWidth = 4
	// thresholdFactor is applied to the noise floor to get the threshold for peak detection.
	thresholdFactor = 10

	scopeStream = scope.StreamID("survey")
)

// Tone is a peak in the averaged magnitude spectrum.
type Tone struct {
	Frequency float64
	Magnitude float64
	// Width of the peak above the threshold in Hz.
	Width float64
}

// Result of a survey.
type Result struct {
	Blocks     int
	NoiseFloor float64
	// Tones contains the (up to) two strongest tones in order of ascending frequency.
	Tones []Tone
	// Shift between the two tones in Hz, 0 if less than two tones were found.
	Shift float64
	// Center between the two tones in Hz, the frequency of the only tone if just one was found.
	Center            float64
	DecisionFrequency float64
}

// CenterOffset is the distance of the center between the tones from the decision frequency in Hz.
func (r Result) CenterOffset() float64 {
	if len(r.Tones) == 0 {
		return 0
	}
	return r.Center - r.DecisionFrequency
}

func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d blocks, noise floor %.1f dB\n", r.Blocks, toDB(r.NoiseFloor))
	for i, tone := range r.Tones {
		fmt.Fprintf(&b, "tone %d: %.1f Hz, %.1f dB above noise, %.1f Hz wide\n", i+1, tone.Frequency, toDB(tone.Magnitude)-toDB(r.NoiseFloor), tone.Width)
	}
	if len(r.Tones) == 0 {
		b.WriteString("no tones found\n")
	}
	if len(r.Tones) > 1 {
		fmt.Fprintf(&b, "shift: %.1f Hz, center: %.1f Hz\n", r.Shift, r.Center)
	}
	fmt.Fprintf(&b, "decision frequency: %.1f Hz, center offset: %+.1f Hz\n", r.DecisionFrequency, r.CenterOffset())
	return b.String()
}

func toDB(magnitude float64) float64 {
	if magnitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(magnitude)
}

// Survey accumulates the magnitude spectra of consecutive sample blocks.
type Survey struct {
	sampleRate int
	blockSize  int
	fft        *dsp.FFT[float64]
	mapping    *dsp.FrequencyMapping[float64]
	scope      scope.Scope

	block    dsp.Block[float64]
	fill     int
	spectrum dsp.Block[float64]
	sum      dsp.Block[float64]
	blocks   int
	peaks    []dsp.Peak[float64, float64]
}

func New(sampleRate int, blockSize int) *Survey {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Survey{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		fft:        dsp.NewFFT[float64](),
		mapping:    dsp.NewFrequencyMapping[float64](sampleRate, blockSize),
		scope:      scope.NewNullScope(),
		block:      make(dsp.Block[float64], blockSize),
		spectrum:   make(dsp.Block[float64], blockSize/2),
		sum:        make(dsp.Block[float64], blockSize/2),
	}
}

func (s *Survey) SetScope(scope scope.Scope) {
	s.scope = scope
}

// Write collects the given samples. Every completed block is added to the averaged spectrum.
func (s *Survey) Write(samples []int16) (int, error) {
	for _, sample := range samples {
		s.block[s.fill] = float64(sample)
		s.fill++
		if s.fill < s.blockSize {
			continue
		}
		s.fill = 0
		s.fft.RealToSpectrum(s.spectrum, s.block, dsp.Magnitude[float64])
		for i, v := range s.spectrum {
			s.sum[i] += v
		}
		s.blocks++
		if s.scope.Active() {
			s.showSpectrum()
		}
	}
	return len(samples), nil
}

// Result evaluates the spectra collected so far.
func (s *Survey) Result() Result {
	result := Result{
		Blocks:            s.blocks,
		DecisionFrequency: fsk.DecisionFrequency(s.sampleRate),
	}
	if s.blocks == 0 {
		return result
	}

	result.NoiseFloor = dsp.FindNoiseFloor(s.sum, noiseEdgeWidth) / float64(s.blocks)
	s.peaks = dsp.FindPeaks(s.peaks, s.sum, s.blocks, result.NoiseFloor*thresholdFactor, s.mapping)
	peaks := slices.Clone(s.peaks)
	slices.SortFunc(peaks, func(a, b dsp.Peak[float64, float64]) int {
		return cmp.Compare(b.SignalValue, a.SignalValue)
	})
	if len(peaks) > 2 {
		peaks = peaks[:2]
	}
	for _, p := range peaks {
		result.Tones = append(result.Tones, Tone{
			Frequency: p.SignalFrequency,
			Magnitude: p.SignalValue,
			Width:     p.WidthHz(),
		})
	}
	slices.SortFunc(result.Tones, func(a, b Tone) int {
		return cmp.Compare(a.Frequency, b.Frequency)
	})

	switch len(result.Tones) {
	case 1:
		result.Center = result.Tones[0].Frequency
	case 2:
		result.Shift = result.Tones[1].Frequency - result.Tones[0].Frequency
		result.Center = (result.Tones[0].Frequency + result.Tones[1].Frequency) / 2
	}
	return result
}

func (s *Survey) showSpectrum() {
	result := s.Result()
	values := make([]float64, len(s.sum))
	for i, v := range s.sum {
		values[i] = v / float64(s.blocks)
	}
	frequencyMarkers := map[scope.MarkerID]float64{
		"decision": result.DecisionFrequency,
	}
	for i, tone := range result.Tones {
		frequencyMarkers[scope.MarkerID(fmt.Sprintf("tone%d", i+1))] = tone.Frequency
	}
	s.scope.ShowSpectralFrame(&scope.SpectralFrame{
		Frame: scope.Frame{
			Stream:    scopeStream,
			Timestamp: time.Now(),
		},
		FromFrequency:    s.mapping.BinToFrequency(0, dsp.BinFrom),
		ToFrequency:      s.mapping.BinToFrequency(len(values)-1, dsp.BinTo),
		Values:           values,
		FrequencyMarkers: frequencyMarkers,
		MagnitudeMarkers: map[scope.MarkerID]float64{
			"noise_floor": result.NoiseFloor,
			"threshold":   result.NoiseFloor * thresholdFactor,
		},
	})
}
