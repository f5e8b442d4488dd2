package history

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/deadreckon/internal/kalman"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sample(seq uint64, x, vx float64) kalman.MotionSample {
	return kalman.MotionSample{
		Timestamp: epoch.Add(time.Duration(seq) * 100 * time.Millisecond),
		Seq:       seq,
		X:         kalman.AxisState{Position: x, Velocity: vx},
	}
}

func TestRing_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, NewRing(0).Cap())
	assert.Equal(t, 50, DefaultSize)
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing(3)
	_, ok := r.Latest()
	assert.False(t, ok)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, r.Consume(sample(i, 0, 0)))
	}

	assert.Equal(t, 3, r.Len())
	var seqs []uint64
	for _, s := range r.Snapshot() {
		seqs = append(seqs, s.Seq)
	}
	assert.Equal(t, []uint64{3, 4, 5}, seqs)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), latest.Seq)
}

func TestRing_SnapshotIsIndependent(t *testing.T) {
	r := NewRing(2)
	require.NoError(t, r.Consume(sample(1, 1, 0)))
	snap := r.Snapshot()
	snap[0].X.Position = 99

	got := r.Snapshot()
	assert.Equal(t, 1.0, got[0].X.Position)
}

func TestRing_Clear(t *testing.T) {
	r := NewRing(2)
	require.NoError(t, r.Consume(sample(1, 0, 0)))
	r.Clear()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Snapshot())
	assert.Equal(t, Summary{}, r.Summary())
}

func TestRing_ResetStartsNewRun(t *testing.T) {
	r := NewRing(3)
	require.NoError(t, r.Consume(sample(1, 0, 0)))
	require.NoError(t, r.Consume(sample(2, 0, 0)))
	r.Reset()
	require.NoError(t, r.Consume(sample(3, 0, 0)))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, sample(3, 0, 0), snap[0])
}

func TestRing_Summary(t *testing.T) {
	r := NewRing(10)
	require.NoError(t, r.Consume(sample(0, 0, 1)))
	require.NoError(t, r.Consume(sample(1, 1, 3)))
	s2 := sample(2, 0.5, 2)
	s2.Stationary = [3]bool{true, true, true}
	require.NoError(t, r.Consume(s2))

	sum := r.Summary()
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 200*time.Millisecond, sum.Span)
	assert.InDelta(t, 2.0, sum.MeanSpeed, 1e-12)
	assert.InDelta(t, 1.0, sum.StdDevSpeed, 1e-12) // sample std dev of {1,3,2}
	assert.Equal(t, 3.0, sum.MaxSpeed)
	assert.InDelta(t, 0.5, sum.Displacement, 1e-12)
	assert.InDelta(t, 1.5, sum.PathLength, 1e-12)
	assert.InDelta(t, 1.0/3, sum.StationaryRatio, 1e-12)
}

func TestRing_SummarySingleSample(t *testing.T) {
	r := NewRing(4)
	require.NoError(t, r.Consume(sample(1, 2, -2)))
	sum := r.Summary()
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, 2.0, sum.MeanSpeed)
	assert.Zero(t, sum.StdDevSpeed)
	assert.False(t, math.IsNaN(sum.StdDevAccel))
}
