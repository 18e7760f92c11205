package dsp

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

type Float interface {
	constraints.Float
}

// FFT computes spectra of real valued sample blocks.
type FFT[T Number] struct {
	samples []float64
	window  []float64
}

func NewFFT[T Number]() *FFT[T] {
	return &FFT[T]{}
}

// RealToSpectrum windows the given block of real samples and writes the projection of the lower half of the
// FFT result into spectrum. The spectrum must have half the size of the sample block.
func (f *FFT[T]) RealToSpectrum(spectrum []T, samples []T, projection func(complex128, int) T) {
	f.setSamples(samples)

	fftResult := fft.FFTReal(f.samples)
	blockSize := len(fftResult)
	if len(spectrum) != blockSize/2 {
		panic(fmt.Sprintf("the spectrum slice must have half the length of the FFT's result: %d", blockSize/2))
	}

	for i := range spectrum {
		spectrum[i] = projection(fftResult[i], blockSize)
	}
}

func (f *FFT[T]) setSamples(samples []T) {
	blockSize := len(samples)
	if len(f.samples) != blockSize {
		f.samples = make([]float64, blockSize)
		f.window = window.Hann(blockSize)
	}
	for i, s := range samples {
		f.samples[i] = float64(s) * f.window[i]
	}
}

func PSD[T Number](fftValue complex128, blockSize int) T {
	return T(math.Pow(real(fftValue), 2) + math.Pow(imag(fftValue), 2))
}

func Magnitude[T Number](fftValue complex128, blockSize int) T {
	return T(math.Sqrt(float64(PSD[T](fftValue, blockSize))))
}

type BinLocation float64

const (
	BinFrom   BinLocation = -0.5
	BinCenter BinLocation = 0
	BinTo     BinLocation = 0.5
)

// FrequencyMapping maps the bins of a spectrum of real samples to audio frequencies. Bin 0 is DC.
type FrequencyMapping[F Number] struct {
	sampleRate int
	blockSize  int
	binSize    float64
}

func NewFrequencyMapping[F Number](sampleRate int, blockSize int) *FrequencyMapping[F] {
	return &FrequencyMapping[F]{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		binSize:    float64(sampleRate) / float64(blockSize),
	}
}

func (m *FrequencyMapping[F]) String() string {
	return fmt.Sprintf("[0 - %v]", m.BinToFrequency(m.blockSize/2-1, BinTo))
}

// BinSize in Hz.
func (m *FrequencyMapping[F]) BinSize() float64 {
	return m.binSize
}

func (m *FrequencyMapping[F]) BinToFrequency(bin int, location BinLocation) F {
	return F((float64(bin) + float64(location)) * m.binSize)
}

func (m *FrequencyMapping[F]) FrequencyToBin(frequency F) int {
	bin := int(math.Round(float64(frequency) / m.binSize))
	return max(0, min(bin, m.blockSize/2-1))
}

// Block represents a block of samples that are processed as one unit.
type Block[T Number] []T

// Size returns the blocksize.
func (b Block[T]) Size() int {
	return len(b)
}

// Sum of the values in the given section of this block.
func (b Block[T]) Sum(from, to int) T {
	var sum T
	for i := from; i <= to; i++ {
		sum += b[i]
	}
	return sum
}

// Mean of the values in the given section of this block.
func (b Block[T]) Mean(from, to int) T {
	return b.Sum(from, to) / T(to-from+1)
}

// Peak represents a section in a block that contains a peak.
// M is used to represent magnitude values in the spectrum, F is the type used to represent frequencies
type Peak[M, F Number] struct {
	From          int
	To            int
	FromFrequency F
	ToFrequency   F

	SignalFrequency F
	SignalValue     M
	SignalBin       int
}

// Width in bins.
func (p Peak[T, F]) Width() int {
	return (p.To - p.From) + 1
}

// WidthHz in Hz, based on the FromFrequency and ToFrequency fields.
func (p Peak[T, F]) WidthHz() F {
	return p.ToFrequency - p.FromFrequency
}

// FindNoiseFloor returns the lowest mean of ten equally sized windows over the spectrum,
// ignoring edgeWidth bins at both ends.
func FindNoiseFloor[T Number](spectrum Block[T], edgeWidth int) T {
	windowSize := max(1, (len(spectrum)-2*edgeWidth)/10)
	var minValue T
	var sum T
	count := 0
	first := true
	for i := edgeWidth; i < len(spectrum)-edgeWidth; i++ {
		sum += spectrum[i]
		count++
		if count < windowSize {
			continue
		}
		mean := sum / T(windowSize)
		if mean < minValue || first {
			minValue = mean
			first = false
		}
		sum = 0
		count = 0
	}

	return minValue
}

// FindPeaks collects all sections of the spectrum that exceed the threshold. The spectrum values are divided by
// cumulationSize before they are compared.
func FindPeaks[T, F Number](peaks []Peak[T, F], spectrum Block[T], cumulationSize int, threshold T, frequencyMapping *FrequencyMapping[F]) []Peak[T, F] {
	peaks = peaks[:0]

	closePeak := func(peak *Peak[T, F], to int) {
		peak.To = to
		peak.FromFrequency = frequencyMapping.BinToFrequency(peak.From, BinFrom)
		peak.ToFrequency = frequencyMapping.BinToFrequency(peak.To, BinTo)
		centerCorrection := PeakCenterCorrection(peak.SignalBin, spectrum)
		peak.SignalFrequency = frequencyMapping.BinToFrequency(peak.SignalBin, centerCorrection)
		peaks = append(peaks, *peak)
	}

	var currentPeak *Peak[T, F]
	for i, v := range spectrum {
		value := v / T(cumulationSize)
		switch {
		case currentPeak == nil && value > threshold:
			currentPeak = &Peak[T, F]{From: i, SignalValue: value, SignalBin: i}
		case currentPeak != nil && value <= threshold:
			closePeak(currentPeak, i-1)
			currentPeak = nil
		case currentPeak != nil && currentPeak.SignalValue < value:
			currentPeak.SignalValue = value
			currentPeak.SignalBin = i
		}
	}
	if currentPeak != nil {
		closePeak(currentPeak, len(spectrum)-1)
	}

	return peaks
}

// PeakCenterCorrection estimates the offset of the true peak from the given bin by quadratic interpolation.
func PeakCenterCorrection[T Number](bin int, spectrum Block[T]) BinLocation {
	// see https://dspguru.com/dsp/howtos/how-to-interpolate-fft-peak/
	if bin <= 0 || bin >= spectrum.Size()-1 {
		return 0
	}

	value := func(i int) float64 {
		return math.Abs(float64(spectrum[i]))
	}

	y1 := value(bin - 1)
	y2 := value(bin)
	y3 := value(bin + 1)
	denominator := 2 * (2*y2 - y1 - y3)
	if denominator == 0 {
		return 0
	}

	return BinLocation((y3 - y1) / denominator)
}
