package motion

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/deadreckon/internal/history"
	"github.com/banshee-data/deadreckon/internal/kalman"
	"github.com/banshee-data/deadreckon/internal/monitoring"
	"github.com/banshee-data/deadreckon/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	monitoring.SetLogger(nil)
}

type collector struct {
	samples []kalman.MotionSample
	err     error
}

func (c *collector) Consume(s kalman.MotionSample) error {
	c.samples = append(c.samples, s)
	return c.err
}

// chanSource yields whatever is pushed on ch and io.EOF once it is closed.
type chanSource chan Reading

func (c chanSource) Next(ctx context.Context) (Reading, error) {
	select {
	case <-ctx.Done():
		return Reading{}, ctx.Err()
	case r, ok := <-c:
		if !ok {
			return Reading{}, io.EOF
		}
		return r, nil
	}
}

type errSource struct{ err error }

func (e errSource) Next(context.Context) (Reading, error) { return Reading{}, e.err }

func newEstimator(t *testing.T) *kalman.TriAxisEstimator {
	t.Helper()
	est, err := kalman.NewTriAxisEstimator(kalman.DefaultConfig(), nil)
	require.NoError(t, err)
	return est
}

func runReplay(t *testing.T, lines string, sinks ...Sink) (*Pump, *kalman.TriAxisEstimator) {
	t.Helper()
	est := newEstimator(t)
	src := NewReplaySource(strings.NewReader(lines), nil, 0)
	defer src.Close()
	p := NewPump(est, src, DefaultPumpConfig(), timeutil.NewMockClock(epoch), sinks...)
	require.NoError(t, p.Run(context.Background()))
	return p, est
}

func TestPump_NominalIntervalWithoutDeviceTime(t *testing.T) {
	c := &collector{}
	p, _ := runReplay(t, "1,0,0\n# note\n1,0,0\n1,0.5,0\n", c)

	ref := newEstimator(t)
	require.Len(t, c.samples, 3)
	for i, in := range [][3]float64{{1, 0, 0}, {1, 0, 0}, {1, 0.5, 0}} {
		want, err := ref.Update(in[0], in[1], in[2], 0.1)
		require.NoError(t, err)
		assert.Equal(t, want.X, c.samples[i].X, "sample %d", i)
		assert.Equal(t, want.Y, c.samples[i].Y, "sample %d", i)
		assert.Equal(t, uint64(i+1), c.samples[i].Seq)
		assert.Equal(t, epoch, c.samples[i].Timestamp)
	}
	assert.Equal(t, Stats{Readings: 3, Samples: 3}, p.Stats())
}

func TestPump_DeviceTimeDrivesDt(t *testing.T) {
	c := &collector{}
	runReplay(t, "10.00,1,0,0\n10.05,1,0,0\n10.25,0,0,0\n", c)

	ref, err := kalman.NewAxisEstimator(kalman.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, c.samples, 3)
	for i, step := range []struct{ acc, dt float64 }{{1, 0.1}, {1, 0.05}, {0, 0.2}} {
		want, err := ref.Update(step.acc, step.dt)
		require.NoError(t, err)
		assert.InDelta(t, want.Position, c.samples[i].X.Position, 1e-12, "sample %d", i)
		assert.InDelta(t, want.Velocity, c.samples[i].X.Velocity, 1e-12, "sample %d", i)
	}
}

func TestPump_DuplicatesAndDiscontinuities(t *testing.T) {
	c := &collector{}
	p, est := runReplay(t, strings.Join([]string{
		"1.0,1,0,0",
		"1.0,1,0,0", // duplicate
		"1.1,1,0,0",
		"5.0,1,0,0", // gap beyond MaxDt
		"4.0,1,0,0", // clock went backwards
		"4.1,1,0,0",
	}, "\n"), c)

	st := p.Stats()
	assert.Equal(t, uint64(6), st.Readings)
	assert.Equal(t, uint64(1), st.Duplicates)
	assert.Equal(t, uint64(2), st.Resyncs)
	assert.Equal(t, uint64(5), st.Samples)

	require.Len(t, c.samples, 5)
	seqs := make([]uint64, len(c.samples))
	for i, s := range c.samples {
		seqs[i] = s.Seq
	}
	assert.Equal(t, []uint64{1, 2, 1, 1, 2}, seqs, "resync restarts the sequence")
	assert.Equal(t, uint64(2), est.Last().Seq)
}

func TestPump_ResyncClearsResettableSinks(t *testing.T) {
	ring := history.NewRing(10)
	c := &collector{}
	p, _ := runReplay(t, strings.Join([]string{
		"1.0,1,0,0",
		"1.1,1,0,0",
		"1.2,1,0,0",
		"5.0,1,0,0", // gap beyond MaxDt
		"5.1,1,0,0",
	}, "\n"), ring, c)

	assert.Equal(t, uint64(1), p.Stats().Resyncs)
	assert.Len(t, c.samples, 5, "sinks without Reset keep every sample")

	snap := ring.Snapshot()
	require.Len(t, snap, 2, "ring holds only the run after the resync")
	assert.Equal(t, uint64(1), snap[0].Seq)
	assert.Equal(t, uint64(2), snap[1].Seq)
	assert.Equal(t, c.samples[3], snap[0])

	sum := ring.Summary()
	assert.Equal(t, sum.Displacement, sum.PathLength, "no jump back to the origin in the window")
}

func TestPump_DropsMalformedLines(t *testing.T) {
	c := &collector{}
	p, _ := runReplay(t, "1,0,0\nnot a sample\n1,x,0\nNaN,0,0\n0,0,1\n", c)

	assert.Len(t, c.samples, 2)
	assert.Equal(t, Stats{Readings: 5, Samples: 2, Dropped: 3}, p.Stats())
}

func TestPump_CountsSinkErrors(t *testing.T) {
	failing := &collector{err: errors.New("disk full")}
	ok := &collector{}
	p, _ := runReplay(t, "1,0,0\n1,0,0\n", failing, ok)

	assert.Equal(t, uint64(2), p.Stats().SinkErrors)
	assert.Len(t, ok.samples, 2, "a failing sink does not block the others")
}

func TestPump_SourceErrorStopsRun(t *testing.T) {
	p := NewPump(newEstimator(t), errSource{errors.New("port gone")}, DefaultPumpConfig(), nil)
	err := p.Run(context.Background())
	assert.ErrorContains(t, err, "port gone")
}

func TestPump_ResetWhileWaiting(t *testing.T) {
	src := make(chanSource)
	est := newEstimator(t)
	c := &collector{}
	p := NewPump(est, src, DefaultPumpConfig(), timeutil.NewMockClock(epoch), c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	src <- Reading{AX: 1}
	src <- Reading{AX: 1}
	require.Eventually(t, func() bool { return p.Stats().Samples == 2 }, 2*time.Second, time.Millisecond)

	resetCtx, resetCancel := context.WithTimeout(ctx, 2*time.Second)
	defer resetCancel()
	require.NoError(t, p.Reset(resetCtx))
	assert.Equal(t, kalman.MotionSample{}, est.Last())
	assert.Equal(t, uint64(1), p.Stats().Resets)

	src <- Reading{AX: 1}
	close(src)
	require.NoError(t, <-done)

	require.Len(t, c.samples, 3)
	assert.Equal(t, c.samples[0].X, c.samples[2].X, "after reset the estimator starts fresh")
}

func TestPump_ResetClearsRingOnPumpGoroutine(t *testing.T) {
	src := make(chanSource)
	ring := history.NewRing(10)
	p := NewPump(newEstimator(t), src, DefaultPumpConfig(), timeutil.NewMockClock(epoch), ring)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	src <- Reading{AX: 1}
	src <- Reading{AX: 1}
	require.Eventually(t, func() bool { return ring.Len() == 2 }, 2*time.Second, time.Millisecond)

	resetCtx, resetCancel := context.WithTimeout(ctx, 2*time.Second)
	defer resetCancel()
	require.NoError(t, p.Reset(resetCtx))
	assert.Zero(t, ring.Len(), "ring is cleared before Reset returns")

	src <- Reading{AX: 1}
	close(src)
	require.NoError(t, <-done)

	latest, ok := ring.Latest()
	require.True(t, ok)
	assert.Equal(t, 1, ring.Len())
	assert.Equal(t, uint64(1), latest.Seq)
}

func TestPump_RunStopsOnCancel(t *testing.T) {
	p := NewPump(newEstimator(t), make(chanSource), DefaultPumpConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer resetCancel()
	assert.ErrorIs(t, p.Reset(resetCtx), context.DeadlineExceeded, "Reset fails when Run is not serving")
}

func TestNewPump_FillsDefaults(t *testing.T) {
	p := NewPump(newEstimator(t), make(chanSource), PumpConfig{SampleInterval: 2 * time.Second}, nil)
	assert.Equal(t, 2*time.Second, p.cfg.SampleInterval)
	assert.Equal(t, 2*time.Second, p.cfg.MaxDt)
}
