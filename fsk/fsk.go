// Package fsk recovers the chip stream of a 200 Bd FSK signal from its analytic (I/Q) representation.
//
// The demodulator is a frequency discriminator followed by a leaky integrator and a fourth order
// CIC decimator. Every DecimationFactor input pairs it emits one chip: true if the instantaneous
// frequency is below the decision frequency (mark), false otherwise (space).
package fsk

import (
	"math"

	"github.com/ftl/dcf39/dsp"
)

const (
	// SampleRate is the design sample rate of the demodulator in Hz.
	SampleRate = 15000
	// BaudRate of the signal.
	BaudRate = 200
	// MarkFrequency is the nominal audio frequency of a logical 1 in Hz. Marks are demodulated as true chips.
	MarkFrequency = 830.0
	// SpaceFrequency is the nominal audio frequency of a logical 0 in Hz.
	SpaceFrequency = MarkFrequency + Shift
	// Shift between mark and space in Hz.
	Shift = 370.0

	// SamplesPerSymbol at the design sample rate.
	SamplesPerSymbol = SampleRate / BaudRate

	// DecimationFactor is the number of I/Q pairs per chip.
	DecimationFactor = 5
	// ChipsPerSymbol at the design sample rate.
	ChipsPerSymbol = SamplesPerSymbol / DecimationFactor

	// PhaseScale scales the phase difference in radians into the integer domain.
	PhaseScale = 2411
	// SmoothingFactor is the divisor of the leaky integrator and of the CIC input.
	SmoothingFactor = 16
	// CICStages is the number of integrator and comb stages.
	CICStages = 4
	// CombShift is the arithmetic right shift applied to the comb output.
	CombShift = 10
	// ChipThreshold separates mark from space on the shifted comb output.
	ChipThreshold = 625
)

// DecisionFrequency returns the tone frequency in Hz at which the demodulator output flips, for the given sample
// rate. In steady state the shifted comb output is (phaseDelta * DecimationFactor^CICStages) >> CombShift.
func DecisionFrequency(sampleRate int) float64 {
	gain := math.Pow(DecimationFactor, CICStages) / math.Pow(2, CombShift)
	phaseDelta := ChipThreshold / gain
	return phaseDelta / PhaseScale * float64(sampleRate) / (2 * math.Pi)
}

// Probe exposes the internal values of the last decimation instant.
type Probe struct {
	PhaseDelta    int16
	SmoothedPhase int32
	// Comb is the shifted output of the last comb stage.
	Comb int32
	Chip bool
}

// Demodulator converts I/Q pairs into chips.
type Demodulator struct {
	prevI int32
	prevQ int32

	smoothedPhase int32
	integrator    [CICStages]int32
	combDelay     [CICStages]int32
	decimation    int

	analytic *dsp.AnalyticSignal
	probe    Probe
}

// NewDemodulator returns a new demodulator with zeroed state.
func NewDemodulator() *Demodulator {
	return &Demodulator{
		analytic: dsp.NewAnalyticSignal(),
	}
}

// Push feeds the next I/Q pair into the demodulator. Every DecimationFactor calls, ok is true and chip carries the
// demodulated value.
func (d *Demodulator) Push(i, q int16) (chip bool, ok bool) {
	xi, xq := int32(i), int32(q)
	crossI := xi*d.prevI + xq*d.prevQ
	crossQ := xq*d.prevI - xi*d.prevQ
	phaseDelta := int16(math.Atan2(float64(crossQ), float64(crossI)) * PhaseScale)

	d.smoothedPhase += int32(phaseDelta) - d.smoothedPhase/SmoothingFactor

	d.integrator[0] += d.smoothedPhase / SmoothingFactor
	for k := 1; k < CICStages; k++ {
		d.integrator[k] += d.integrator[k-1]
	}

	d.decimation++
	if d.decimation == DecimationFactor {
		d.decimation = 0
		comb := d.comb() >> CombShift
		chip = comb < ChipThreshold
		ok = true
		d.probe = Probe{
			PhaseDelta:    phaseDelta,
			SmoothedPhase: d.smoothedPhase,
			Comb:          comb,
			Chip:          chip,
		}
	}

	d.prevI = xi
	d.prevQ = xq
	return chip, ok
}

func (d *Demodulator) comb() int32 {
	value := d.integrator[CICStages-1]
	for k := 0; k < CICStages; k++ {
		next := value - d.combDelay[k]
		d.combDelay[k] = value
		value = next
	}
	return value
}

// PushSample feeds a real sample through the demodulator's own analytic signal generator.
func (d *Demodulator) PushSample(sample int16) (chip bool, ok bool) {
	return d.Push(d.analytic.Advance(sample))
}

// Probe returns the internal values of the last decimation instant.
func (d *Demodulator) Probe() Probe {
	return d.probe
}
