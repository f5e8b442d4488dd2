package kalman

import (
	"fmt"
	"math"
)

// AxisState is the filter state along one axis in SI units.
type AxisState struct {
	Position     float64 `json:"position"`     // m
	Velocity     float64 `json:"velocity"`     // m/s
	Acceleration float64 `json:"acceleration"` // m/s²
}

// AxisEstimator is a single-axis constant-acceleration Kalman filter fed
// by a scalar accelerometer. It is not safe for concurrent use.
type AxisEstimator struct {
	cfg Config

	state AxisState
	cov   Covariance
	gain  [3]float64

	// high-pass bias filter memory
	prevRaw  float64
	filtered float64

	stationary bool
}

// NewAxisEstimator returns an estimator at rest with the configured initial
// covariance.
func NewAxisEstimator(cfg Config) (*AxisEstimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &AxisEstimator{cfg: cfg}
	e.Reset()
	return e, nil
}

// Update runs one bias-filter, predict and correct cycle for a raw
// acceleration sample taken dt seconds after the previous one. Invalid
// input is rejected with ErrInvalidInput and leaves the estimator unchanged.
func (e *AxisEstimator) Update(rawAcceleration, dt float64) (AxisState, error) {
	if err := checkSample(rawAcceleration, dt); err != nil {
		return e.state, err
	}
	e.step(rawAcceleration, dt)
	return e.state, nil
}

func checkSample(raw, dt float64) error {
	if !finite(raw) {
		return fmt.Errorf("%w: acceleration %v is not finite", ErrInvalidInput, raw)
	}
	if !finite(dt) || dt <= 0 {
		return fmt.Errorf("%w: dt must be positive and finite, got %v", ErrInvalidInput, dt)
	}
	return nil
}

// step assumes validated input.
func (e *AxisEstimator) step(raw, dt float64) {
	e.filtered = e.cfg.BiasAlpha * (e.filtered + raw - e.prevRaw)
	e.prevRaw = raw

	e.stationary = math.Abs(e.filtered) < e.cfg.StationaryThreshold
	if e.stationary {
		// Zero-velocity update: hold position, pin velocity. Velocity is
		// decorrelated from the other states so P stays positive
		// semi-definite with the shrunken variance.
		e.state.Velocity = 0
		e.cov[0][1], e.cov[1][0] = 0, 0
		e.cov[1][2], e.cov[2][1] = 0, 0
		e.cov[1][1] = e.cfg.StationaryVelocityVariance
	} else {
		s := e.state
		e.state.Position = s.Position + s.Velocity*dt + 0.5*s.Acceleration*dt*dt
		e.state.Velocity = s.Velocity + s.Acceleration*dt
	}

	// Uncertainty grows with elapsed time in both branches.
	e.cov = e.cov.predict(dt, e.cfg.ProcessNoise)

	k, ok := e.cov.gain(e.cfg.MeasurementNoise)
	if !ok {
		e.gain = [3]float64{}
		return
	}
	e.gain = k

	innovation := e.filtered - e.state.Acceleration
	e.state.Acceleration += k[2] * innovation
	if !e.stationary {
		e.state.Position += k[0] * innovation
		e.state.Velocity += k[1] * innovation
	}

	e.cov = e.cov.correct(k)
}

// Reset zeroes the state and bias filter memory and restores the initial
// covariance, so the estimator behaves exactly like a new one.
func (e *AxisEstimator) Reset() {
	e.state = AxisState{}
	e.prevRaw = 0
	e.filtered = 0
	e.stationary = false
	e.gain = [3]float64{}
	e.cov = diagonal(e.cfg.InitialCovariance)
}

// State returns a copy of the current state.
func (e *AxisEstimator) State() AxisState { return e.state }

// Covariance returns a copy of the current covariance.
func (e *AxisEstimator) Covariance() Covariance { return e.cov }

// Gain returns the Kalman gain applied by the last Update.
func (e *AxisEstimator) Gain() [3]float64 { return e.gain }

// Filtered returns the bias-filtered acceleration of the last Update.
func (e *AxisEstimator) Filtered() float64 { return e.filtered }

// Stationary reports whether the last Update detected zero motion.
func (e *AxisEstimator) Stationary() bool { return e.stationary }

// Config returns the estimator tuning.
func (e *AxisEstimator) Config() Config { return e.cfg }
