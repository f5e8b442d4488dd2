package main

import (
	"fmt"

	"github.com/banshee-data/deadreckon/internal/config"
	"github.com/banshee-data/deadreckon/internal/db"
	"github.com/banshee-data/deadreckon/internal/history"
	"github.com/banshee-data/deadreckon/internal/kalman"
	"github.com/banshee-data/deadreckon/internal/motion"
	"github.com/banshee-data/deadreckon/internal/timeutil"
)

// pipeline is the estimator with its consumers, driven by one pump.
type pipeline struct {
	ring     *history.Ring
	pump     *motion.Pump
	recorder *db.Recorder
	clock    timeutil.Clock
}

// newPipeline builds the estimator from tuning and wires src into the
// history ring and, when database is set and recording is enabled, a new
// recording session labelled source.
func newPipeline(tuning *config.TuningConfig, src motion.Source, database *db.DB, source string, clock timeutil.Clock) (*pipeline, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	est, err := kalman.NewTriAxisEstimator(tuning.EstimatorConfig(), clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimator: %w", err)
	}

	p := &pipeline{ring: history.NewRing(tuning.GetHistorySize()), clock: clock}
	sinks := []motion.Sink{p.ring}
	if database != nil && tuning.GetRecordSamples() {
		p.recorder, err = db.NewRecorder(database, source, clock.Now())
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p.recorder)
	}

	p.pump = motion.NewPump(est, src, motion.PumpConfig{
		SampleInterval: tuning.GetSampleInterval(),
		MaxDt:          tuning.GetMaxDt(),
	}, clock, sinks...)
	return p, nil
}

// close ends the recording session, if any.
func (p *pipeline) close() error {
	if p.recorder == nil {
		return nil
	}
	return p.recorder.Close(p.clock.Now())
}
