package dsp

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyMapping(t *testing.T) {
	sampleRate := 15000
	blockSize := 1500
	tt := []struct {
		bin       int
		frequency float64
	}{
		{0, 0},
		{1, 10},
		{83, 830},
		{120, 1200},
		{749, 7490},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%d", tc.bin), func(t *testing.T) {
			m := NewFrequencyMapping[float64](sampleRate, blockSize)

			assert.Equal(t, tc.bin, m.FrequencyToBin(tc.frequency), "frequency to bin")
			assert.InDelta(t, tc.frequency, m.BinToFrequency(tc.bin, BinCenter), 1e-9, "bin to frequency")
			assert.InDelta(t, tc.frequency-5, m.BinToFrequency(tc.bin, BinFrom), 1e-9, "bin from")
			assert.InDelta(t, tc.frequency+5, m.BinToFrequency(tc.bin, BinTo), 1e-9, "bin to")
		})
	}
}

func TestFrequencyMapping_Clamp(t *testing.T) {
	m := NewFrequencyMapping[float64](15000, 1500)

	assert.Equal(t, 0, m.FrequencyToBin(-100))
	assert.Equal(t, 749, m.FrequencyToBin(10000))
	assert.Equal(t, 10.0, m.BinSize())
}

func sine(frequency float64, amplitude float64, sampleRate int, count int) []float64 {
	result := make([]float64, count)
	for i := range result {
		result[i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
	}
	return result
}

func TestFFT_RealToSpectrum(t *testing.T) {
	fft := NewFFT[float64]()
	spectrum := make(Block[float64], 512)

	fft.RealToSpectrum(spectrum, sine(1200, 1000, 15000, 1024), Magnitude[float64])

	maxBin := 0
	for i, v := range spectrum {
		if v > spectrum[maxBin] {
			maxBin = i
		}
	}
	m := NewFrequencyMapping[float64](15000, 1024)
	assert.Equal(t, m.FrequencyToBin(1200), maxBin)
}

func TestFFT_RealToSpectrum_WrongSize(t *testing.T) {
	fft := NewFFT[float64]()

	assert.Panics(t, func() {
		fft.RealToSpectrum(make([]float64, 100), make([]float64, 1024), Magnitude[float64])
	})
}

func TestFindNoiseFloor(t *testing.T) {
	spectrum := make(Block[float64], 100)
	for i := range spectrum {
		spectrum[i] = 5
	}
	spectrum[0] = 0
	spectrum[99] = 0
	for i := 40; i < 45; i++ {
		spectrum[i] = 100
	}

	assert.Equal(t, 5.0, FindNoiseFloor(spectrum, 2))
}

func TestFindPeaks(t *testing.T) {
	fft := NewFFT[float64]()
	blockSize := 1024
	samples := sine(830, 1000, 15000, blockSize)
	for i, v := range sine(1200, 1000, 15000, blockSize) {
		samples[i] += v
	}
	spectrum := make(Block[float64], blockSize/2)
	fft.RealToSpectrum(spectrum, samples, Magnitude[float64])
	m := NewFrequencyMapping[float64](15000, blockSize)

	peaks := FindPeaks(nil, spectrum, 1, 10000, m)

	require.Len(t, peaks, 2)
	assert.InDelta(t, 830, peaks[0].SignalFrequency, m.BinSize()/2)
	assert.InDelta(t, 1200, peaks[1].SignalFrequency, m.BinSize()/2)
	assert.True(t, peaks[0].From <= peaks[0].SignalBin && peaks[0].SignalBin <= peaks[0].To)
	assert.Equal(t, peaks[0].Width(), peaks[0].To-peaks[0].From+1)
	assert.InDelta(t, float64(peaks[0].Width())*m.BinSize(), peaks[0].WidthHz(), 1e-9)
}

func TestPeakCenterCorrection(t *testing.T) {
	tt := []struct {
		desc     string
		spectrum Block[float64]
		bin      int
		expected BinLocation
	}{
		{"symmetric", Block[float64]{1, 4, 1}, 1, 0},
		{"right", Block[float64]{1, 4, 3}, 1, 0.25},
		{"left", Block[float64]{3, 4, 1}, 1, -0.25},
		{"edge", Block[float64]{4, 1, 1}, 0, 0},
		{"flat", Block[float64]{2, 2, 2}, 1, 0},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, float64(tc.expected), float64(PeakCenterCorrection(tc.bin, tc.spectrum)), 1e-9)
		})
	}
}

func TestBlock(t *testing.T) {
	block := Block[int]{1, 2, 3, 4, 5}

	assert.Equal(t, 5, block.Size())
	assert.Equal(t, 9, block.Sum(1, 3))
	assert.Equal(t, 3, block.Mean(1, 3))
}
