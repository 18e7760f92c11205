package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRollingMean(t *testing.T) {
	mean := NewRollingMean[float64](3)

	assert.Equal(t, 3.0, mean.Put(3))
	assert.False(t, mean.Full())
	assert.Equal(t, 4.0, mean.Put(5))
	assert.Equal(t, 5.0, mean.Put(7))
	assert.True(t, mean.Full())
	assert.Equal(t, 7.0, mean.Put(9))
	assert.Equal(t, 7.0, mean.Get())

	mean.Reset()

	assert.Equal(t, 0.0, mean.Get())
	assert.False(t, mean.Full())
	assert.Equal(t, 1.0, mean.Put(1))
}

func TestLevelMeter(t *testing.T) {
	meter := NewLevelMeter(75)
	for _, v := range sine(1000, 10000, 15000, 750) {
		meter.Put(int16(v))
	}

	assert.InDelta(t, 10000/math.Sqrt2, meter.Level(), 100)
	assert.InDelta(t, 20*math.Log10(10000.0/math.MaxInt16), meter.LevelIndBFS(), 0.2)

	meter.Reset()

	assert.Equal(t, 0.0, meter.Level())
	assert.True(t, math.IsInf(meter.LevelIndBFS(), -1))
}

func TestSaturateInt16(t *testing.T) {
	tt := []struct {
		desc     string
		value    float64
		expected int16
	}{
		{"zero", 0, 0},
		{"truncate positive", 1.9, 1},
		{"truncate negative", -1.9, -1},
		{"max", 32767, 32767},
		{"above max", 40000.5, 32767},
		{"below min", -40000.5, -32768},
		{"min", -32768, -32768},
		{"NaN", math.NaN(), 0},
		{"+Inf", math.Inf(1), 32767},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, SaturateInt16(tc.value))
		})
	}
}

func TestAnalyticSignal_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := rapid.SliceOfN(rapid.Int16(), 1, 500).Draw(t, "samples")
		a := NewAnalyticSignal()
		b := NewAnalyticSignal()
		for i, sample := range samples {
			ai, aq := a.Advance(sample)
			bi, bq := b.Advance(sample)
			if ai != bi || aq != bq {
				t.Fatalf("sample %d: (%d, %d) != (%d, %d)", i, ai, aq, bi, bq)
			}
		}
	})
}

func TestAnalyticSignal_Silence(t *testing.T) {
	a := NewAnalyticSignal()
	for i := 0; i < 100; i++ {
		i, q := a.Advance(0)
		assert.Equal(t, int16(0), i)
		assert.Equal(t, int16(0), q)
	}
}

// In the pass band, both branches carry the full tone, 90° apart, so the magnitude of the I/Q pair is nearly
// constant.
func TestAnalyticSignal_Quadrature(t *testing.T) {
	a := NewAnalyticSignal()
	tone := sine(1000, 8000, 15000, 3000)
	var minMagnitude, maxMagnitude float64 = math.Inf(1), 0
	for n, v := range tone {
		i, q := a.Advance(int16(v))
		if n < 1500 {
			continue
		}
		magnitude := math.Hypot(float64(i), float64(q))
		minMagnitude = min(minMagnitude, magnitude)
		maxMagnitude = max(maxMagnitude, magnitude)
	}

	assert.Greater(t, minMagnitude, 0.0)
	assert.Less(t, maxMagnitude/minMagnitude, 1.05)
}
