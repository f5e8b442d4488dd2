// Package testutil provides shared test helpers and fixtures.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/deadreckon/internal/kalman"
	"github.com/banshee-data/deadreckon/internal/monitoring"
)

// Epoch is the fixed start time used by fixtures.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeJSON decodes r into a T or fails the test.
func DecodeJSON[T any](t testing.TB, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("failed to decode json: %v", err)
	}
	return v
}

// NewTestRequest builds a request that appears to come from loopback, which
// the /debug/ routes require.
func NewTestRequest(method, path string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, path, body)
	r.RemoteAddr = "127.0.0.1:1234"
	return r
}

// MuteLogs silences monitoring.Logf for the duration of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

// Walk returns n samples moving east at speed m/s, one every step,
// starting at Epoch with Seq 1.
func Walk(n int, speed float64, step time.Duration) []kalman.MotionSample {
	out := make([]kalman.MotionSample, n)
	for i := range out {
		x := speed * step.Seconds() * float64(i)
		out[i] = kalman.MotionSample{
			Timestamp: Epoch.Add(time.Duration(i) * step),
			Seq:       uint64(i + 1),
			X:         kalman.AxisState{Position: x, Velocity: speed},
			Distance:  x,
		}
	}
	return out
}
