package kalman

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/deadreckon/internal/timeutil"
)

// Axis identifies one of the three orthogonal estimation axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "unknown"
}

// MotionSample is the combined output of one TriAxisEstimator update.
type MotionSample struct {
	Timestamp  time.Time `json:"timestamp"`
	Seq        uint64    `json:"seq"`
	X          AxisState `json:"x"`
	Y          AxisState `json:"y"`
	Z          AxisState `json:"z"`
	Stationary [3]bool   `json:"stationary"`
	Distance   float64   `json:"distance"` // Euclidean norm of the position (m)
}

// Axis returns the state of the given axis.
func (s MotionSample) Axis(a Axis) AxisState {
	switch a {
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	}
	return s.X
}

// Speed returns the velocity magnitude (m/s).
func (s MotionSample) Speed() float64 {
	return math.Sqrt(s.X.Velocity*s.X.Velocity + s.Y.Velocity*s.Y.Velocity + s.Z.Velocity*s.Z.Velocity)
}

// AccelerationMagnitude returns the estimated acceleration magnitude (m/s²).
func (s MotionSample) AccelerationMagnitude() float64 {
	return math.Sqrt(s.X.Acceleration*s.X.Acceleration + s.Y.Acceleration*s.Y.Acceleration + s.Z.Acceleration*s.Z.Acceleration)
}

// TriAxisEstimator runs three independent AxisEstimators sharing one
// Config. Axes never share covariance or bias filter memory.
type TriAxisEstimator struct {
	axes  [3]*AxisEstimator
	clock timeutil.Clock
	seq   uint64
	last  MotionSample
}

// NewTriAxisEstimator builds X, Y and Z estimators from cfg. Samples are
// stamped with clock; a nil clock uses the wall clock.
func NewTriAxisEstimator(cfg Config, clock timeutil.Clock) (*TriAxisEstimator, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	t := &TriAxisEstimator{clock: clock}
	for i := range t.axes {
		e, err := NewAxisEstimator(cfg)
		if err != nil {
			return nil, err
		}
		t.axes[i] = e
	}
	return t, nil
}

// Update feeds one 3-axis sample taken dt seconds after the previous one
// and stamps the result with the estimator clock.
func (t *TriAxisEstimator) Update(ax, ay, az, dt float64) (MotionSample, error) {
	return t.UpdateAt(t.clock.Now(), ax, ay, az, dt)
}

// UpdateAt is Update with a caller-supplied timestamp, for sources that
// carry their own sample time. All three axes are validated before any is
// mutated, so a rejected call changes nothing.
func (t *TriAxisEstimator) UpdateAt(ts time.Time, ax, ay, az, dt float64) (MotionSample, error) {
	raw := [3]float64{ax, ay, az}
	for i, v := range raw {
		if err := checkSample(v, dt); err != nil {
			return t.last, fmt.Errorf("axis %s: %w", Axis(i), err)
		}
	}
	for i, e := range t.axes {
		e.step(raw[i], dt)
	}
	t.seq++
	t.last = t.sample(ts)
	return t.last, nil
}

func (t *TriAxisEstimator) sample(ts time.Time) MotionSample {
	s := MotionSample{
		Timestamp: ts,
		Seq:       t.seq,
		X:         t.axes[AxisX].State(),
		Y:         t.axes[AxisY].State(),
		Z:         t.axes[AxisZ].State(),
	}
	for i, e := range t.axes {
		s.Stationary[i] = e.Stationary()
	}
	s.Distance = math.Sqrt(s.X.Position*s.X.Position + s.Y.Position*s.Y.Position + s.Z.Position*s.Z.Position)
	return s
}

// Reset resets all three axes and the sample sequence; Last returns the
// zero sample afterwards.
func (t *TriAxisEstimator) Reset() {
	for _, e := range t.axes {
		e.Reset()
	}
	t.seq = 0
	t.last = MotionSample{}
}

// Last returns the most recent sample, or the zero sample after
// construction or Reset.
func (t *TriAxisEstimator) Last() MotionSample { return t.last }

// Covariance returns a copy of one axis covariance.
func (t *TriAxisEstimator) Covariance(a Axis) Covariance { return t.axes[a].Covariance() }

// Config returns the shared tuning.
func (t *TriAxisEstimator) Config() Config { return t.axes[AxisX].Config() }
