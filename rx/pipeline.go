package rx

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/ftl/dcf39/dsp"
	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/scope"
	"github.com/ftl/dcf39/telegram"
	"github.com/ftl/dcf39/trace"
)

const (
	traceDemod  = "demod"
	traceDecode = "decode"

	scopeStream scope.StreamID = "demod"

	minScopeLevel = -120.0
)

type Scope interface {
	Active() bool
	ShowTimeFrame(frame *scope.TimeFrame)
}

// Pipeline runs the complete signal chain synchronously: analytic signal, demodulator, decoder.
type Pipeline struct {
	analytic    *dsp.AnalyticSignal
	demodulator *fsk.Demodulator
	decoder     *telegram.Decoder
	level       *dsp.LevelMeter

	sampleRate int
	samples    int
	chips      int
	start      time.Time

	tracer trace.Tracer
	scope  Scope
}

// NewPipeline returns a new pipeline for a stream of samples at the given sample rate.
func NewPipeline(sampleRate int) *Pipeline {
	result := &Pipeline{
		analytic:    dsp.NewAnalyticSignal(),
		demodulator: fsk.NewDemodulator(),
		decoder:     telegram.NewDecoder(),
		level:       dsp.NewLevelMeter(fsk.SamplesPerSymbol),
		sampleRate:  sampleRate,
		start:       time.Now(),
		tracer:      new(trace.NoTracer),
		scope:       scope.NewNullScope(),
	}
	result.decoder.SetObserver(result.rejected)
	return result
}

func (p *Pipeline) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = new(trace.NoTracer)
	}
	p.tracer = tracer
}

func (p *Pipeline) SetScope(s Scope) {
	if s == nil {
		s = scope.NewNullScope()
	}
	p.scope = s
}

// SetStart sets the point in time that corresponds to the first sample. It is used to timestamp scope frames.
func (p *Pipeline) SetStart(start time.Time) {
	p.start = start
}

// Push feeds the next sample into the signal chain. It returns the telegram completed by this sample, if any.
func (p *Pipeline) Push(sample int16) (telegram.Telegram, bool) {
	p.samples++
	p.level.Put(sample)
	chip, ok := p.demodulator.Push(p.analytic.Advance(sample))
	if !ok {
		return nil, false
	}
	p.chips++

	probe := p.demodulator.Probe()
	p.tracer.Trace(traceDemod, "%d;%d;%d;%d;%d\n", p.chips, probe.PhaseDelta, probe.SmoothedPhase, probe.Comb, boolToInt(chip))
	if p.scope.Active() {
		p.showProbe(probe)
	}

	b, ok := p.decoder.Push(chip)
	if ok {
		p.tracer.Trace(traceDecode, "%d;byte;%02X;%d\n", p.chips, b, p.decoder.ByteCount())
	}
	return p.decoder.Telegram()
}

// Write feeds all given samples into the signal chain and returns the completed telegrams.
func (p *Pipeline) Write(samples []int16) []telegram.Telegram {
	var result []telegram.Telegram
	for _, sample := range samples {
		if t, ok := p.Push(sample); ok {
			result = append(result, t)
		}
	}
	return result
}

// Reset discards the telegram in progress. The filter states are kept.
func (p *Pipeline) Reset() {
	p.decoder.Reset()
}

// Samples returns the number of samples processed so far.
func (p *Pipeline) Samples() int {
	return p.samples
}

// Chips returns the number of chips demodulated so far.
func (p *Pipeline) Chips() int {
	return p.chips
}

// Offset returns the stream position of the last processed sample.
func (p *Pipeline) Offset() time.Duration {
	if p.sampleRate == 0 {
		return 0
	}
	return time.Duration(p.samples) * time.Second / time.Duration(p.sampleRate)
}

// Level returns the RMS level of the last symbol period in sample units.
func (p *Pipeline) Level() float64 {
	return p.level.Level()
}

// State returns the synchronization state of the decoder.
func (p *Pipeline) State() telegram.SyncState {
	return p.decoder.State()
}

func (p *Pipeline) rejected(rejection telegram.Rejection, state telegram.SyncState) {
	log.Debug("discarded", "reason", rejection, "state", state, "chip", p.chips)
	p.tracer.Trace(traceDecode, "%d;reject;%s;%s\n", p.chips, rejection, state)
}

func (p *Pipeline) showProbe(probe fsk.Probe) {
	p.scope.ShowTimeFrame(&scope.TimeFrame{
		Frame: scope.Frame{
			Stream:    scopeStream,
			Timestamp: p.start.Add(p.Offset()),
		},
		Values: map[scope.ChannelID]float64{
			"phase": float64(probe.SmoothedPhase),
			"comb":  float64(probe.Comb),
			"chip":  float64(boolToInt(probe.Chip)),
			"state": float64(p.decoder.State()),
			"bytes": float64(p.decoder.ByteCount()),
			"level": max(minScopeLevel, p.level.LevelIndBFS()),
		},
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
