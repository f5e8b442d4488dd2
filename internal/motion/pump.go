package motion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/banshee-data/deadreckon/internal/kalman"
	"github.com/banshee-data/deadreckon/internal/monitoring"
	"github.com/banshee-data/deadreckon/internal/timeutil"
)

var logf = monitoring.Prefixed("motion")

// Sink consumes estimator output. Sinks run on the pump goroutine and must
// not retain the estimator; MotionSample is a value and safe to keep.
type Sink interface {
	Consume(kalman.MotionSample) error
}

// Resetter is implemented by sinks that hold samples of the current
// estimator run. The pump calls Reset on its own goroutine whenever the
// estimator restarts, before the first sample of the new run.
type Resetter interface {
	Reset()
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(kalman.MotionSample) error

// Consume implements Sink.
func (f SinkFunc) Consume(s kalman.MotionSample) error { return f(s) }

// PumpConfig controls Δt derivation.
type PumpConfig struct {
	// SampleInterval is the nominal Δt used when readings carry no device
	// time, and for the first reading of a run.
	SampleInterval time.Duration
	// MaxDt is the largest gap treated as continuous motion. Longer gaps,
	// and device clocks running backwards, reset the estimator.
	MaxDt time.Duration
}

// DefaultPumpConfig matches the reference 10 Hz source.
func DefaultPumpConfig() PumpConfig {
	return PumpConfig{SampleInterval: 100 * time.Millisecond, MaxDt: time.Second}
}

// Stats are cumulative pump counters.
type Stats struct {
	Readings   uint64 `json:"readings"`    // readings received, including dropped
	Samples    uint64 `json:"samples"`     // samples produced by the estimator
	Dropped    uint64 `json:"dropped"`     // malformed lines and rejected readings
	Duplicates uint64 `json:"duplicates"`  // readings with Δt == 0
	Resyncs    uint64 `json:"resyncs"`     // discontinuities that reset the estimator
	Resets     uint64 `json:"resets"`      // explicit Reset requests
	SinkErrors uint64 `json:"sink_errors"` // errors returned by sinks
}

// Pump is the single writer of a TriAxisEstimator. Run owns the estimator;
// every other goroutine interacts through Reset and Stats.
type Pump struct {
	est   *kalman.TriAxisEstimator
	src   Source
	sinks []Sink
	cfg   PumpConfig
	clock timeutil.Clock

	resetCh chan chan struct{}

	// Device time of the previous accepted reading.
	lastTime float64
	haveLast bool

	readings, samples, dropped, duplicates atomic.Uint64
	resyncs, resets, sinkErrors            atomic.Uint64
}

// NewPump wires src through est into sinks. A nil clock uses the wall clock.
func NewPump(est *kalman.TriAxisEstimator, src Source, cfg PumpConfig, clock timeutil.Clock, sinks ...Sink) *Pump {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	def := DefaultPumpConfig()
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = def.SampleInterval
	}
	if cfg.MaxDt < cfg.SampleInterval {
		cfg.MaxDt = max(def.MaxDt, cfg.SampleInterval)
	}
	return &Pump{
		est:     est,
		src:     src,
		sinks:   sinks,
		cfg:     cfg,
		clock:   clock,
		resetCh: make(chan chan struct{}),
	}
}

type sourceResult struct {
	r   Reading
	err error
}

// Run processes readings until the source ends (returns nil), ctx is
// cancelled (returns ctx.Err()) or the source fails.
func (p *Pump) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The source blocks; read it on a helper goroutine so Reset requests are
	// still served while waiting for the next sample.
	results := make(chan sourceResult)
	go func() {
		defer close(results)
		for {
			r, err := p.src.Next(ctx)
			select {
			case results <- sourceResult{r, err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.Is(err, ErrMalformedLine) {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ack := <-p.resetCh:
			p.restart()
			p.haveLast = false
			p.resets.Add(1)
			close(ack)

		case res, ok := <-results:
			if !ok {
				return ctx.Err()
			}
			switch {
			case res.err == nil:
				p.handle(res.r)
			case errors.Is(res.err, ErrMalformedLine):
				p.readings.Add(1)
				p.dropped.Add(1)
				logf("dropping line: %v", res.err)
			case errors.Is(res.err, io.EOF):
				return nil
			default:
				return fmt.Errorf("motion source: %w", res.err)
			}
		}
	}
}

// handle derives Δt for r, feeds the estimator and publishes the sample.
func (p *Pump) handle(r Reading) {
	p.readings.Add(1)
	nominal := p.cfg.SampleInterval.Seconds()

	dt := nominal
	if r.HasTime && p.haveLast {
		dt = r.DeviceTime - p.lastTime
		switch {
		case dt == 0:
			p.duplicates.Add(1)
			return
		case dt < 0 || dt > p.cfg.MaxDt.Seconds():
			logf("discontinuity of %.3fs at device time %.3f, resetting estimator", dt, r.DeviceTime)
			p.restart()
			p.resyncs.Add(1)
			dt = nominal
		}
	}

	sample, err := p.est.UpdateAt(p.clock.Now(), r.AX, r.AY, r.AZ, dt)
	if err != nil {
		p.dropped.Add(1)
		logf("rejected reading %+v: %v", r, err)
		return
	}
	if r.HasTime {
		p.lastTime, p.haveLast = r.DeviceTime, true
	}
	p.samples.Add(1)

	for _, s := range p.sinks {
		if err := s.Consume(sample); err != nil {
			p.sinkErrors.Add(1)
			logf("sink error: %v", err)
		}
	}
}

// restart resets the estimator and every sink holding run state.
func (p *Pump) restart() {
	p.est.Reset()
	for _, s := range p.sinks {
		if r, ok := s.(Resetter); ok {
			r.Reset()
		}
	}
}

// Reset asks the running pump to reset the estimator and its resettable
// sinks, and waits until it has. It fails if ctx ends first, e.g. because Run is not running.
func (p *Pump) Reset(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case p.resetCh <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pump counters.
func (p *Pump) Stats() Stats {
	return Stats{
		Readings:   p.readings.Load(),
		Samples:    p.samples.Load(),
		Dropped:    p.dropped.Load(),
		Duplicates: p.duplicates.Load(),
		Resyncs:    p.resyncs.Load(),
		Resets:     p.resets.Load(),
		SinkErrors: p.sinkErrors.Load(),
	}
}
