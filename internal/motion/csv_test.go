package motion

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/deadreckon/internal/kalman"
)

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	require.NoError(t, w.Consume(kalman.MotionSample{
		Seq:        1,
		Timestamp:  ts,
		X:          kalman.AxisState{Position: 0.04 / 23, Velocity: 0.8 / 23, Acceleration: 16.0 / 23},
		Stationary: [3]bool{false, true, true},
		Distance:   0.04 / 23,
	}))
	require.NoError(t, w.Consume(kalman.MotionSample{Seq: 2, Timestamp: ts.Add(100 * time.Millisecond)}))
	require.NoError(t, w.Flush())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2026-03-01T12:00:00.5Z", rows[1][1])
	assert.Equal(t, "0.6956521739130435", rows[1][4])
	assert.Equal(t, []string{"false", "true", "true"}, rows[1][11:14])
	assert.Equal(t, "2", rows[2][0])
}

func TestCSVWriter_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(&buf).Flush())
	assert.Zero(t, buf.Len())
}
