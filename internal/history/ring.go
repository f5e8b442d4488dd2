// Package history retains the most recent motion samples for readers that
// run outside the estimator goroutine.
package history

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/deadreckon/internal/kalman"
)

// DefaultSize is the number of samples kept when NewRing is given n <= 0.
const DefaultSize = 50

// Ring is a bounded, oldest-first-evicting sample history. It is safe for
// one writer and many readers.
type Ring struct {
	mu    sync.RWMutex
	buf   []kalman.MotionSample
	start int
	n     int
}

// NewRing returns a Ring holding at most n samples.
func NewRing(n int) *Ring {
	if n <= 0 {
		n = DefaultSize
	}
	return &Ring{buf: make([]kalman.MotionSample, n)}
}

// Consume appends s, evicting the oldest sample when full. It implements
// motion.Sink and never fails.
func (r *Ring) Consume(s kalman.MotionSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return nil
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
	return nil
}

// Snapshot returns the retained samples, oldest first.
func (r *Ring) Snapshot() []kalman.MotionSample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]kalman.MotionSample, r.n)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Latest returns the newest sample, if any.
func (r *Ring) Latest() (kalman.MotionSample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.n == 0 {
		return kalman.MotionSample{}, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

// Len returns the number of retained samples.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

// Cap returns the maximum number of retained samples.
func (r *Ring) Cap() int { return len(r.buf) }

// Clear drops every sample.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.start, r.n = 0, 0
}

// Reset implements motion.Resetter: samples from an earlier estimator run
// are dropped when the estimator restarts.
func (r *Ring) Reset() { r.Clear() }

// Summary describes the retained window.
type Summary struct {
	Count           int           `json:"count"`
	Span            time.Duration `json:"span_ns"`
	MeanSpeed       float64       `json:"mean_speed"`
	StdDevSpeed     float64       `json:"stddev_speed"`
	MaxSpeed        float64       `json:"max_speed"`
	MeanAccel       float64       `json:"mean_accel"`
	StdDevAccel     float64       `json:"stddev_accel"`
	Displacement    float64       `json:"displacement"`     // straight-line distance first to last (m)
	PathLength      float64       `json:"path_length"`      // summed step distance (m)
	StationaryRatio float64       `json:"stationary_ratio"` // share of samples with all axes stationary
}

// Summary computes window statistics. The zero Summary is returned for an
// empty ring; standard deviations need at least two samples.
func (r *Ring) Summary() Summary {
	samples := r.Snapshot()
	if len(samples) == 0 {
		return Summary{}
	}

	speeds := make([]float64, len(samples))
	accels := make([]float64, len(samples))
	var stationary int
	var path float64
	for i, s := range samples {
		speeds[i] = s.Speed()
		accels[i] = s.AccelerationMagnitude()
		if s.Stationary == [3]bool{true, true, true} {
			stationary++
		}
		if i > 0 {
			path += distance(samples[i-1], s)
		}
	}

	sum := Summary{
		Count:           len(samples),
		Span:            samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp),
		MaxSpeed:        speeds[0],
		Displacement:    distance(samples[0], samples[len(samples)-1]),
		PathLength:      path,
		StationaryRatio: float64(stationary) / float64(len(samples)),
	}
	for _, v := range speeds {
		sum.MaxSpeed = math.Max(sum.MaxSpeed, v)
	}
	if len(samples) == 1 {
		sum.MeanSpeed, sum.MeanAccel = speeds[0], accels[0]
		return sum
	}
	sum.MeanSpeed, sum.StdDevSpeed = stat.MeanStdDev(speeds, nil)
	sum.MeanAccel, sum.StdDevAccel = stat.MeanStdDev(accels, nil)
	return sum
}

func distance(a, b kalman.MotionSample) float64 {
	dx := b.X.Position - a.X.Position
	dy := b.Y.Position - a.Y.Position
	dz := b.Z.Position - a.Z.Position
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
