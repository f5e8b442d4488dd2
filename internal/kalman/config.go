package kalman

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig is returned by constructors when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid estimator config")
	// ErrInvalidInput is returned by Update when a sample or dt is unusable.
	// The estimator state is left untouched.
	ErrInvalidInput = errors.New("invalid estimator input")
)

// Config holds the fixed tuning of an AxisEstimator. Diagonal terms are
// ordered {position, velocity, acceleration}.
type Config struct {
	InitialCovariance [3]float64 // P0 diagonal
	ProcessNoise      [3]float64 // Q diagonal, injected every prediction
	MeasurementNoise  float64    // R, accelerometer variance (m/s²)²

	BiasAlpha           float64 // high-pass coefficient, 0 < α < 1
	StationaryThreshold float64 // |filtered| below this is treated as stationary (m/s²)

	// StationaryVelocityVariance replaces P[v][v] while stationary.
	StationaryVelocityVariance float64
}

// DefaultConfig returns the reference tuning for a 10 Hz accelerometer.
func DefaultConfig() Config {
	return Config{
		InitialCovariance:          [3]float64{10, 5, 1},
		ProcessNoise:               [3]float64{0.01, 0.01, 1.0},
		MeasurementNoise:           0.3,
		BiasAlpha:                  0.8,
		StationaryThreshold:        0.05,
		StationaryVelocityVariance: 0.001,
	}
}

// Validate checks that every tuning value is finite and in range.
func (c Config) Validate() error {
	names := [3]string{"position", "velocity", "acceleration"}
	for i := 0; i < 3; i++ {
		if !finite(c.InitialCovariance[i]) || c.InitialCovariance[i] < 0 {
			return fmt.Errorf("%w: initial %s covariance must be non-negative, got %v", ErrInvalidConfig, names[i], c.InitialCovariance[i])
		}
		if !finite(c.ProcessNoise[i]) || c.ProcessNoise[i] < 0 {
			return fmt.Errorf("%w: %s process noise must be non-negative, got %v", ErrInvalidConfig, names[i], c.ProcessNoise[i])
		}
	}
	if !finite(c.MeasurementNoise) || c.MeasurementNoise <= 0 {
		return fmt.Errorf("%w: measurement noise must be positive, got %v", ErrInvalidConfig, c.MeasurementNoise)
	}
	if !finite(c.BiasAlpha) || c.BiasAlpha <= 0 || c.BiasAlpha >= 1 {
		return fmt.Errorf("%w: bias alpha must be in (0,1), got %v", ErrInvalidConfig, c.BiasAlpha)
	}
	if !finite(c.StationaryThreshold) || c.StationaryThreshold <= 0 {
		return fmt.Errorf("%w: stationary threshold must be positive, got %v", ErrInvalidConfig, c.StationaryThreshold)
	}
	if !finite(c.StationaryVelocityVariance) || c.StationaryVelocityVariance <= 0 {
		return fmt.Errorf("%w: stationary velocity variance must be positive, got %v", ErrInvalidConfig, c.StationaryVelocityVariance)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
