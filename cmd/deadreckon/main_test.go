package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/deadreckon/internal/config"
	"github.com/banshee-data/deadreckon/internal/db"
	"github.com/banshee-data/deadreckon/internal/motion"
	"github.com/banshee-data/deadreckon/internal/testutil"
	"github.com/banshee-data/deadreckon/internal/timeutil"
)

const fixture = "../../fixtures/imu_walk.csv"

func TestPipeline_ReplayFixture(t *testing.T) {
	testutil.MuteLogs(t)

	f, err := os.Open(fixture)
	require.NoError(t, err)
	defer f.Close()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	defer database.Close()

	clock := timeutil.NewMockClock(testutil.Epoch)
	tuning := config.MustLoadDefaultConfig()
	pipe, err := newPipeline(tuning, motion.NewReplaySource(f, clock, 0), database, "replay fixture", clock)
	require.NoError(t, err)
	require.NotNil(t, pipe.recorder)

	require.NoError(t, pipe.pump.Run(context.Background()))
	require.NoError(t, pipe.close())

	stats := pipe.pump.Stats()
	assert.Equal(t, uint64(100), stats.Readings)
	assert.Equal(t, uint64(100), stats.Samples)
	assert.Zero(t, stats.Dropped)
	assert.Zero(t, stats.Resyncs)

	assert.Equal(t, tuning.GetHistorySize(), pipe.ring.Len())
	latest, ok := pipe.ring.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(100), latest.Seq)

	sess, err := database.Session(pipe.recorder.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 100, sess.SampleCount)
	assert.NotNil(t, sess.EndedAt)

	samples, err := database.Samples(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, samples, 100)

	// The first second is at rest: every axis is flagged stationary and
	// nothing moves.
	for _, s := range samples[:10] {
		assert.Equal(t, [3]bool{true, true, true}, s.Stationary, "seq %d", s.Seq)
		assert.Zero(t, s.X.Position, "seq %d", s.Seq)
	}
	// The push east shows up as positive x velocity.
	var peak float64
	for _, s := range samples[10:30] {
		peak = max(peak, s.X.Velocity)
	}
	assert.Greater(t, peak, 0.0)
}

func TestPipeline_ResyncStartsFreshHistory(t *testing.T) {
	testutil.MuteLogs(t)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "resync.db"))
	require.NoError(t, err)
	defer database.Close()

	lines := strings.Join([]string{
		"0.1,1,0,0",
		"0.2,1,0,0",
		"0.3,1,0,0",
		"9.0,1,0,0", // device stalled for longer than max_dt
		"9.1,1,0,0",
	}, "\n")
	clock := timeutil.NewMockClock(testutil.Epoch)
	pipe, err := newPipeline(config.EmptyTuningConfig(), motion.NewReplaySource(strings.NewReader(lines), clock, 0), database, "gap", clock)
	require.NoError(t, err)
	require.NoError(t, pipe.pump.Run(context.Background()))
	require.NoError(t, pipe.close())

	assert.Equal(t, uint64(1), pipe.pump.Stats().Resyncs)

	snap := pipe.ring.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, []uint64{1, 2}, []uint64{snap[0].Seq, snap[1].Seq})
	sum := pipe.ring.Summary()
	assert.Equal(t, sum.Displacement, sum.PathLength)

	// The recording keeps both runs.
	samples, err := database.Samples(pipe.recorder.SessionID(), 0)
	require.NoError(t, err)
	assert.Len(t, samples, 5)
}

func TestPipeline_RecordingDisabled(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "off.db"))
	require.NoError(t, err)
	defer database.Close()

	off := false
	tuning := config.EmptyTuningConfig()
	tuning.RecordSamples = &off

	pipe, err := newPipeline(tuning, motion.NewReplaySource(nil, nil, 0), database, "x", timeutil.NewMockClock(testutil.Epoch))
	require.NoError(t, err)
	assert.Nil(t, pipe.recorder)
	assert.NoError(t, pipe.close())

	sessions, err := database.Sessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestPipeline_InvalidTuning(t *testing.T) {
	bad := -1.0
	tuning := config.EmptyTuningConfig()
	tuning.MeasurementNoise = &bad
	_, err := newPipeline(tuning, nil, nil, "x", nil)
	assert.Error(t, err)
}

func TestRunCommand_Unknown(t *testing.T) {
	assert.Error(t, runCommand("launch", nil))
}
