package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/deadreckon/internal/kalman"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for estimator and pipeline
// tuning. Every field is optional; the Get* methods supply defaults, so
// partial files are safe.
type TuningConfig struct {
	// Estimator covariance seeds
	InitialPositionVariance     *float64 `json:"initial_position_variance,omitempty"`
	InitialVelocityVariance     *float64 `json:"initial_velocity_variance,omitempty"`
	InitialAccelerationVariance *float64 `json:"initial_acceleration_variance,omitempty"`

	// Estimator noise
	ProcessNoisePos  *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel  *float64 `json:"process_noise_vel,omitempty"`
	ProcessNoiseAcc  *float64 `json:"process_noise_acc,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`

	// Bias filter and zero-velocity detection
	BiasAlpha                  *float64 `json:"bias_alpha,omitempty"`
	StationaryThreshold        *float64 `json:"stationary_threshold,omitempty"`
	StationaryVelocityVariance *float64 `json:"stationary_velocity_variance,omitempty"`

	// Pipeline params
	SampleInterval *string `json:"sample_interval,omitempty"` // duration string like "100ms"
	MaxDt          *string `json:"max_dt,omitempty"`          // duration string like "1s"
	HistorySize    *int    `json:"history_size,omitempty"`
	RecordSamples  *bool   `json:"record_samples,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and its parents.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.BiasAlpha != nil && (*c.BiasAlpha <= 0 || *c.BiasAlpha >= 1) {
		return fmt.Errorf("bias_alpha must be between 0 and 1 (exclusive), got %f", *c.BiasAlpha)
	}
	if c.MeasurementNoise != nil && *c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive, got %f", *c.MeasurementNoise)
	}
	if c.SampleInterval != nil && *c.SampleInterval != "" {
		d, err := time.ParseDuration(*c.SampleInterval)
		if err != nil {
			return fmt.Errorf("invalid sample_interval '%s': %w", *c.SampleInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("sample_interval must be positive, got %s", d)
		}
	}
	if c.MaxDt != nil && *c.MaxDt != "" {
		if _, err := time.ParseDuration(*c.MaxDt); err != nil {
			return fmt.Errorf("invalid max_dt '%s': %w", *c.MaxDt, err)
		}
	}
	if c.HistorySize != nil && *c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", *c.HistorySize)
	}
	if c.GetMaxDt() < c.GetSampleInterval() {
		return fmt.Errorf("max_dt %s must not be shorter than sample_interval %s", c.GetMaxDt(), c.GetSampleInterval())
	}
	// Remaining estimator ranges are owned by the kalman package.
	return c.EstimatorConfig().Validate()
}

// EstimatorConfig builds the per-axis estimator tuning.
func (c *TuningConfig) EstimatorConfig() kalman.Config {
	return kalman.Config{
		InitialCovariance: [3]float64{
			c.GetInitialPositionVariance(),
			c.GetInitialVelocityVariance(),
			c.GetInitialAccelerationVariance(),
		},
		ProcessNoise: [3]float64{
			c.GetProcessNoisePos(),
			c.GetProcessNoiseVel(),
			c.GetProcessNoiseAcc(),
		},
		MeasurementNoise:           c.GetMeasurementNoise(),
		BiasAlpha:                  c.GetBiasAlpha(),
		StationaryThreshold:        c.GetStationaryThreshold(),
		StationaryVelocityVariance: c.GetStationaryVelocityVariance(),
	}
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetInitialPositionVariance returns the initial_position_variance value or the default.
func (c *TuningConfig) GetInitialPositionVariance() float64 {
	return getFloat(c.InitialPositionVariance, 10)
}

// GetInitialVelocityVariance returns the initial_velocity_variance value or the default.
func (c *TuningConfig) GetInitialVelocityVariance() float64 {
	return getFloat(c.InitialVelocityVariance, 5)
}

// GetInitialAccelerationVariance returns the initial_acceleration_variance value or the default.
func (c *TuningConfig) GetInitialAccelerationVariance() float64 {
	return getFloat(c.InitialAccelerationVariance, 1)
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	return getFloat(c.ProcessNoisePos, 0.01)
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	return getFloat(c.ProcessNoiseVel, 0.01)
}

// GetProcessNoiseAcc returns the process_noise_acc value or the default.
func (c *TuningConfig) GetProcessNoiseAcc() float64 {
	return getFloat(c.ProcessNoiseAcc, 1.0)
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	return getFloat(c.MeasurementNoise, 0.3)
}

// GetBiasAlpha returns the bias_alpha value or the default.
func (c *TuningConfig) GetBiasAlpha() float64 {
	return getFloat(c.BiasAlpha, 0.8)
}

// GetStationaryThreshold returns the stationary_threshold value or the default.
func (c *TuningConfig) GetStationaryThreshold() float64 {
	return getFloat(c.StationaryThreshold, 0.05)
}

// GetStationaryVelocityVariance returns the stationary_velocity_variance value or the default.
func (c *TuningConfig) GetStationaryVelocityVariance() float64 {
	return getFloat(c.StationaryVelocityVariance, 0.001)
}

// GetSampleInterval returns the nominal motion source interval.
func (c *TuningConfig) GetSampleInterval() time.Duration {
	return getDuration(c.SampleInterval, 100*time.Millisecond)
}

// GetMaxDt returns the largest sample gap treated as continuous motion.
func (c *TuningConfig) GetMaxDt() time.Duration {
	return getDuration(c.MaxDt, time.Second)
}

// GetHistorySize returns the history_size value or the default.
func (c *TuningConfig) GetHistorySize() int {
	if c.HistorySize == nil {
		return 50
	}
	return *c.HistorySize
}

// GetRecordSamples returns the record_samples value or the default.
func (c *TuningConfig) GetRecordSamples() bool {
	if c.RecordSamples == nil {
		return true
	}
	return *c.RecordSamples
}

// ResolveTuningConfig loads path when set. An empty path loads
// DefaultConfigPath if it exists relative to the working directory and
// otherwise falls back to built-in defaults.
func ResolveTuningConfig(path string) (*TuningConfig, error) {
	if path != "" {
		return LoadTuningConfig(path)
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return LoadTuningConfig(DefaultConfigPath)
	}
	return EmptyTuningConfig(), nil
}
