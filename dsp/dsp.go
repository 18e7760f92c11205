// Package dsp provides generic implementations of the DSP building blocks of the decoder.
package dsp

import "math"

// RollingMean calculates the mean over the last n values. Until n values were put, the mean covers only the values
// put so far.
type RollingMean[T Number] struct {
	values []T
	next   int
	count  int
	sum    T
	mean   T
}

// NewRollingMean with size n.
func NewRollingMean[T Number](n int) *RollingMean[T] {
	return &RollingMean[T]{
		values: make([]T, max(1, n)),
	}
}

// Put a new value into the rolling window and get the new mean back.
func (v *RollingMean[T]) Put(value T) T {
	v.sum += value - v.values[v.next]
	v.values[v.next] = value
	v.next = (v.next + 1) % len(v.values)
	if v.count < len(v.values) {
		v.count++
	}
	v.mean = v.sum / T(v.count)
	return v.mean
}

// Get the current mean value.
func (v *RollingMean[T]) Get() T {
	return v.mean
}

// Full indicates that the window is completely filled.
func (v *RollingMean[T]) Full() bool {
	return v.count == len(v.values)
}

// Reset the rolling window.
func (v *RollingMean[T]) Reset() {
	clear(v.values)
	v.next = 0
	v.count = 0
	v.sum = 0
	v.mean = 0
}

// LevelMeter measures the root mean square of a stream of samples over a rolling window.
type LevelMeter struct {
	squares *RollingMean[float64]
}

func NewLevelMeter(windowSize int) *LevelMeter {
	return &LevelMeter{
		squares: NewRollingMean[float64](windowSize),
	}
}

// Put the next sample and get the new level back.
func (m *LevelMeter) Put(sample int16) float64 {
	value := float64(sample)
	return math.Sqrt(max(0, m.squares.Put(value*value)))
}

// Level returns the current RMS level in sample units.
func (m *LevelMeter) Level() float64 {
	return math.Sqrt(max(0, m.squares.Get()))
}

// LevelIndBFS returns the current level relative to a full scale sine wave.
func (m *LevelMeter) LevelIndBFS() float64 {
	level := m.Level()
	if level == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(level/(math.MaxInt16/math.Sqrt2))
}

func (m *LevelMeter) Reset() {
	m.squares.Reset()
}
