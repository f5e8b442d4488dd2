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

	"github.com/banshee-data/deadreckon/internal/serialmux"
	"github.com/banshee-data/deadreckon/internal/timeutil"
)

func TestSerialSource_ReadsFromMux(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.AddReadData([]byte("# hello\n{\"rate_hz\":10}\n0.5,0,0\nbad\n"))
	mux := serialmux.NewSerialMux(port)

	src := NewSerialSource(mux)
	require.NoError(t, mux.Monitor(context.Background()))

	ctx := context.Background()
	r, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Reading{AX: 0.5}, r)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrMalformedLine)

	src.Close()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSerialSource_HonoursContext(t *testing.T) {
	src := NewSerialSource(serialmux.NewDisabledSerialMux())
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplaySource_Unpaced(t *testing.T) {
	src := NewReplaySource(strings.NewReader("1,2,3\n\n4,5,6\n"), nil, 0)
	ctx := context.Background()

	r, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Reading{AX: 1, AY: 2, AZ: 3}, r)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrMalformedLine, "blank line")

	r, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Reading{AX: 4, AY: 5, AZ: 6}, r)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplaySource_PacedByClock(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	src := NewReplaySource(strings.NewReader("1,0,0\n2,0,0\n"), clock, 100*time.Millisecond)
	defer src.Close()

	got := make(chan Reading, 2)
	go func() {
		for {
			r, err := src.Next(context.Background())
			if err != nil {
				close(got)
				return
			}
			got <- r
		}
	}()

	select {
	case <-got:
		t.Fatal("reading delivered before the first tick")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, Reading{AX: 1}, <-got)
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, Reading{AX: 2}, <-got)
	_, open := <-got
	assert.False(t, open)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk error") }

func TestReplaySource_ReaderError(t *testing.T) {
	src := NewReplaySource(failingReader{}, nil, 0)
	_, err := src.Next(context.Background())
	assert.ErrorContains(t, err, "disk error")
}
