// Package units converts SI estimator output into display units.
package units

import (
	"slices"
	"strings"
)

// Speed units. The estimator works in m/s.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

var SpeedUnits = []string{MPS, MPH, KMPH, KPH}

func IsValid(unit string) bool { return slices.Contains(SpeedUnits, unit) }

// ValidUnitsString lists the speed units for error messages.
func ValidUnitsString() string { return strings.Join(SpeedUnits, ", ") }

// ConvertSpeed converts m/s to unit; unknown units pass through as m/s.
func ConvertSpeed(mps float64, unit string) float64 {
	switch unit {
	case MPH:
		return mps * 2.2369362920544
	case KMPH, KPH:
		return mps * 3.6
	default:
		return mps
	}
}
