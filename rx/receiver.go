package rx

import (
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/ftl/dcf39/telegram"
	"github.com/ftl/dcf39/trace"
)

const defaultBufferSize = 64

var ErrClosed = errors.New("receiver already closed")

// Stats summarizes the work of a receiver.
type Stats struct {
	Samples   int
	Chips     int
	Telegrams int
	// Level is the RMS level of the last symbol period in sample units.
	Level float64
}

// Receiver runs a pipeline in its own goroutine and reports every received telegram.
type Receiver struct {
	pipeline *Pipeline
	reporter Reporter
	clock    Clock
	tracer   trace.Tracer

	telegrams int

	in     chan []int16
	op     chan func()
	close  chan struct{}
	closed chan struct{}
}

// NewReceiver starts a new receiver for a stream with the given sample rate.
func NewReceiver(reporter Reporter, clock Clock, sampleRate int, bufferSize int) *Receiver {
	if reporter == nil {
		reporter = NewTextReporter(nil)
	}
	if clock == nil {
		clock = WallClock
	}
	if bufferSize == 0 {
		bufferSize = defaultBufferSize
	}
	result := &Receiver{
		pipeline: NewPipeline(sampleRate),
		reporter: reporter,
		clock:    clock,
		tracer:   new(trace.NoTracer),
		in:       make(chan []int16, bufferSize),
		op:       make(chan func()),
		close:    make(chan struct{}),
		closed:   make(chan struct{}),
	}
	result.pipeline.SetStart(clock.Now())

	go result.run()

	return result
}

// Close processes all pending samples and stops the receiver.
func (r *Receiver) Close() {
	select {
	case <-r.close:
		<-r.closed
		return
	default:
		close(r.close)
		<-r.closed
	}
}

func (r *Receiver) SetTracer(tracer trace.Tracer) {
	r.do(func() {
		r.tracer.Stop()
		if tracer == nil {
			tracer = new(trace.NoTracer)
		}
		r.tracer = tracer
		r.tracer.Start()
		r.pipeline.SetTracer(tracer)
	})
}

func (r *Receiver) SetScope(s Scope) {
	r.do(func() {
		r.pipeline.SetScope(s)
	})
}

// Reset discards the telegram in progress.
func (r *Receiver) Reset() {
	r.do(func() {
		r.pipeline.Reset()
	})
}

func (r *Receiver) Stats() Stats {
	var result Stats
	r.do(func() {
		result = r.stats()
	})
	return result
}

func (r *Receiver) stats() Stats {
	return Stats{
		Samples:   r.pipeline.Samples(),
		Chips:     r.pipeline.Chips(),
		Telegrams: r.telegrams,
		Level:     r.pipeline.Level(),
	}
}

// Write hands a copy of the given samples to the receiver.
func (r *Receiver) Write(samples []int16) (int, error) {
	buf := make([]int16, len(samples))
	copy(buf, samples)

	select {
	case <-r.close:
		return 0, ErrClosed
	default:
	}

	select {
	case r.in <- buf:
		return len(samples), nil
	case <-r.closed:
		return 0, ErrClosed
	}
}

// do runs f inside the receiver loop and returns when f is done.
func (r *Receiver) do(f func()) {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		f()
	}
	select {
	case <-r.closed:
		op()
	case r.op <- op:
		<-done
	}
}

func (r *Receiver) run() {
	defer close(r.closed)
	defer func() {
		r.tracer.Stop()
	}()

	for {
		select {
		case op := <-r.op:
			// samples written before the operation was requested are processed first
			r.drain()
			op()
		case samples := <-r.in:
			r.process(samples)
		case <-r.close:
			r.drain()
			stats := r.stats()
			log.Debug("receiver closed", "samples", stats.Samples, "chips", stats.Chips, "telegrams", stats.Telegrams)
			return
		}
	}
}

func (r *Receiver) drain() {
	for {
		select {
		case samples := <-r.in:
			r.process(samples)
		default:
			return
		}
	}
}

func (r *Receiver) process(samples []int16) {
	for _, sample := range samples {
		t, ok := r.pipeline.Push(sample)
		if ok {
			r.received(t)
		}
	}
}

func (r *Receiver) received(t telegram.Telegram) {
	r.telegrams++
	reception := NewReception(r.telegrams, r.clock.Now(), r.pipeline.Offset(), t)
	log.Debug("telegram received", "sequence", reception.Sequence, "bytes", len(t), "offset", reception.Offset)
	r.reporter.TelegramReceived(reception)
}
