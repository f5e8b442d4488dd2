package motion

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/banshee-data/deadreckon/internal/serialmux"
	"github.com/banshee-data/deadreckon/internal/timeutil"
)

// Source delivers raw readings in arrival order. Next blocks until a
// reading is available; io.EOF ends the stream. Errors wrapping
// ErrMalformedLine are per-line and the caller may keep reading.
type Source interface {
	Next(ctx context.Context) (Reading, error)
}

// SerialSource reads samples from a serial multiplexer subscription.
type SerialSource struct {
	mux serialmux.SerialMuxInterface
	id  string
	ch  chan string
}

// NewSerialSource subscribes to mux. Close releases the subscription.
func NewSerialSource(mux serialmux.SerialMuxInterface) *SerialSource {
	id, ch := mux.Subscribe()
	return &SerialSource{mux: mux, id: id, ch: ch}
}

// Next returns the next sample line; config echoes and comments are
// skipped.
func (s *SerialSource) Next(ctx context.Context) (Reading, error) {
	for {
		select {
		case <-ctx.Done():
			return Reading{}, ctx.Err()
		case line, ok := <-s.ch:
			if !ok {
				return Reading{}, io.EOF
			}
			r, err := ParseReading(line)
			if errors.Is(err, ErrNotSample) {
				continue
			}
			return r, err
		}
	}
}

// Close unsubscribes from the multiplexer.
func (s *SerialSource) Close() {
	s.mux.Unsubscribe(s.id)
}

// ReplaySource replays a recorded line file. With a positive interval each
// reading waits for a tick of clock, reproducing the live sample rate;
// otherwise readings are returned as fast as they are read.
type ReplaySource struct {
	scan   *bufio.Scanner
	ticker timeutil.Ticker
}

// NewReplaySource reads lines from r.
func NewReplaySource(r io.Reader, clock timeutil.Clock, interval time.Duration) *ReplaySource {
	s := &ReplaySource{scan: bufio.NewScanner(r)}
	if interval > 0 {
		if clock == nil {
			clock = timeutil.RealClock{}
		}
		s.ticker = clock.NewTicker(interval)
	}
	return s
}

// Next implements Source.
func (s *ReplaySource) Next(ctx context.Context) (Reading, error) {
	for s.scan.Scan() {
		r, err := ParseReading(s.scan.Text())
		if errors.Is(err, ErrNotSample) {
			continue
		}
		if s.ticker != nil {
			select {
			case <-ctx.Done():
				return Reading{}, ctx.Err()
			case <-s.ticker.C():
			}
		}
		return r, err
	}
	if err := s.scan.Err(); err != nil {
		return Reading{}, err
	}
	return Reading{}, io.EOF
}

// Close stops the pacing ticker.
func (s *ReplaySource) Close() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
}
