// Command replay runs a recorded IMU line file through the estimator and
// writes one CSV row per sample to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/deadreckon/internal/config"
	"github.com/banshee-data/deadreckon/internal/kalman"
	"github.com/banshee-data/deadreckon/internal/motion"
	"github.com/banshee-data/deadreckon/internal/navigation"
	"github.com/banshee-data/deadreckon/internal/timeutil"
)

var (
	tuningPath  = flag.String("config", "", "Tuning config JSON (default "+config.DefaultConfigPath+" if present)")
	geojsonPath = flag.String("geojson", "", "Also write the projected track as GeoJSON to this file")
	originLat   = flag.Float64("origin-lat", 0, "Latitude of the local origin for -geojson")
	originLon   = flag.Float64("origin-lon", 0, "Longitude of the local origin for -geojson")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: replay [flags] <file|->\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	in := io.Reader(os.Stdin)
	if name := flag.Arg(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			log.Fatalf("failed to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	tuning, err := config.ResolveTuningConfig(*tuningPath)
	if err != nil {
		log.Fatal(err)
	}

	var proj *navigation.Projector
	if *geojsonPath != "" {
		if proj, err = navigation.NewProjector(*originLat, *originLon); err != nil {
			log.Fatal(err)
		}
	}

	stats, track, err := replay(context.Background(), in, os.Stdout, tuning, proj != nil)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("replayed %d readings: %d samples, %d dropped, %d duplicates, %d resyncs",
		stats.Readings, stats.Samples, stats.Dropped, stats.Duplicates, stats.Resyncs)

	if proj != nil {
		body, err := proj.FeatureCollection(track).MarshalJSON()
		if err != nil {
			log.Fatalf("failed to encode track: %v", err)
		}
		if err := os.WriteFile(*geojsonPath, body, 0o644); err != nil {
			log.Fatalf("failed to write track: %v", err)
		}
	}
}

// replay runs in through a fresh estimator as fast as it can be read,
// writing CSV to out. When keep is set every sample is also returned.
func replay(ctx context.Context, in io.Reader, out io.Writer, tuning *config.TuningConfig, keep bool) (motion.Stats, []kalman.MotionSample, error) {
	// Sample timestamps advance by the nominal interval from the Unix epoch
	// so output is reproducible.
	clock := timeutil.NewMockClock(time.Unix(0, 0).UTC())
	est, err := kalman.NewTriAxisEstimator(tuning.EstimatorConfig(), clock)
	if err != nil {
		return motion.Stats{}, nil, err
	}

	csvOut := motion.NewCSVWriter(out)
	var track []kalman.MotionSample
	sinks := []motion.Sink{csvOut, motion.SinkFunc(func(s kalman.MotionSample) error {
		clock.Advance(tuning.GetSampleInterval())
		if keep {
			track = append(track, s)
		}
		return nil
	})}

	pump := motion.NewPump(est, motion.NewReplaySource(in, nil, 0), motion.PumpConfig{
		SampleInterval: tuning.GetSampleInterval(),
		MaxDt:          tuning.GetMaxDt(),
	}, clock, sinks...)
	if err := pump.Run(ctx); err != nil {
		return pump.Stats(), nil, err
	}
	if err := csvOut.Flush(); err != nil {
		return pump.Stats(), nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return pump.Stats(), track, nil
}
