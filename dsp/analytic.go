package dsp

import "math"

const analyticHistory = 5

// The in-phase and quadrature branches are two all-pass IIR sections whose phase responses
// differ by 90° over the audio band.
var (
	inPhaseCoefficients    = [analyticHistory]float32{0.06733479193339252, 0.0, -0.735203246, 0.0, 1.0}
	quadratureCoefficients = [analyticHistory + 1]float32{0.0, 0.3120175276959214, 0.0, -1.231536616, 0.0, 1.0}
)

// AnalyticSignal turns a stream of real samples into a stream of I/Q pairs.
// Index 0 of each history holds the most recent value.
type AnalyticSignal struct {
	x  [analyticHistory]int16
	yi [analyticHistory]float32
	yq [analyticHistory]float32
}

// NewAnalyticSignal returns a new AnalyticSignal with all histories zeroed.
func NewAnalyticSignal() *AnalyticSignal {
	return &AnalyticSignal{}
}

// Advance feeds the next real sample into the filters and returns the corresponding I/Q pair.
// It must be called exactly once per sample, in arrival order.
func (a *AnalyticSignal) Advance(sample int16) (int16, int16) {
	bi := &inPhaseCoefficients
	bq := &quadratureCoefficients
	x := float32(sample)

	yi := bi[0] * x
	for k := 0; k < 4; k++ {
		yi += bi[k+1]*float32(a.x[k]) - bi[3-k]*a.yi[k]
	}

	yq := bq[0] * x
	for k := 0; k < 5; k++ {
		yq += bq[k+1]*float32(a.x[k]) - bq[4-k]*a.yq[k]
	}

	copy(a.x[1:], a.x[:analyticHistory-1])
	copy(a.yi[1:], a.yi[:analyticHistory-1])
	copy(a.yq[1:], a.yq[:analyticHistory-1])
	a.x[0] = sample
	a.yi[0] = yi
	a.yq[0] = yq

	return SaturateInt16(yi), SaturateInt16(yq)
}

// SaturateInt16 truncates the value toward zero and clamps it to the int16 range.
func SaturateInt16[T Float](value T) int16 {
	v := float64(value)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
