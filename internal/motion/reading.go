// Package motion connects motion sources to the estimator: it parses raw
// accelerometer lines, derives Δt between samples and drives a
// TriAxisEstimator from a single goroutine, fanning samples out to sinks.
package motion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/deadreckon/internal/serialmux"
)

var (
	// ErrMalformedLine wraps every line that looks like a sample but cannot
	// be parsed. The pump drops such lines and keeps running.
	ErrMalformedLine = errors.New("malformed sample line")
	// ErrNotSample is returned for comments and device config echoes.
	ErrNotSample = errors.New("line is not a sample")
)

// Reading is one raw 3-axis accelerometer sample in m/s², gravity excluded.
type Reading struct {
	// DeviceTime is the sensor timestamp in seconds, valid when HasTime.
	DeviceTime float64
	HasTime    bool

	AX, AY, AZ float64
}

type jsonReading struct {
	T  *float64 `json:"t"`
	AX *float64 `json:"ax"`
	AY *float64 `json:"ay"`
	AZ *float64 `json:"az"`
}

// ParseReading parses one line from the IMU. Accepted forms:
//
//	ax,ay,az
//	t,ax,ay,az
//	{"t":12.3,"ax":0.1,"ay":0.0,"az":-0.2}   (t optional)
func ParseReading(line string) (Reading, error) {
	line = strings.TrimSpace(line)
	switch serialmux.ClassifyPayload(line) {
	case serialmux.EventTypeComment, serialmux.EventTypeConfig:
		return Reading{}, ErrNotSample
	case serialmux.EventTypeUnknown:
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	if strings.HasPrefix(line, "{") {
		return parseJSON(line)
	}
	return parseCSV(line)
}

func parseJSON(line string) (Reading, error) {
	var jr jsonReading
	if err := json.Unmarshal([]byte(line), &jr); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if jr.AX == nil || jr.AY == nil || jr.AZ == nil {
		return Reading{}, fmt.Errorf("%w: missing axis in %q", ErrMalformedLine, line)
	}
	r := Reading{AX: *jr.AX, AY: *jr.AY, AZ: *jr.AZ}
	if jr.T != nil {
		r.DeviceTime, r.HasTime = *jr.T, true
	}
	return r, r.validate()
}

func parseCSV(line string) (Reading, error) {
	segments := strings.Split(line, ",")
	values := make([]float64, len(segments))
	for i, seg := range segments {
		v, err := strconv.ParseFloat(strings.TrimSpace(seg), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: field %d: %v", ErrMalformedLine, i, err)
		}
		values[i] = v
	}

	var r Reading
	switch len(values) {
	case 3:
		r.AX, r.AY, r.AZ = values[0], values[1], values[2]
	case 4:
		r.DeviceTime, r.HasTime = values[0], true
		r.AX, r.AY, r.AZ = values[1], values[2], values[3]
	default:
		return Reading{}, fmt.Errorf("%w: expected 3 or 4 fields, got %d", ErrMalformedLine, len(values))
	}
	return r, r.validate()
}

// validate rejects non-finite values at the boundary so they never reach
// the estimator.
func (r Reading) validate() error {
	for _, v := range []float64{r.DeviceTime, r.AX, r.AY, r.AZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrMalformedLine)
		}
	}
	return nil
}
