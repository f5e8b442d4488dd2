package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/deadreckon/internal/api"
	"github.com/banshee-data/deadreckon/internal/config"
	"github.com/banshee-data/deadreckon/internal/db"
	"github.com/banshee-data/deadreckon/internal/motion"
	"github.com/banshee-data/deadreckon/internal/navigation"
	"github.com/banshee-data/deadreckon/internal/serialmux"
	"github.com/banshee-data/deadreckon/internal/timeutil"
	"github.com/banshee-data/deadreckon/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	port          = flag.String("port", "/dev/ttyUSB0", "IMU serial port")
	baud          = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	initCommands  = flag.String("init", "", "Comma-separated commands sent to the IMU after connecting")
	dbPath        = flag.String("db", "deadreckon.db", "SQLite database path (empty disables recording)")
	tuningPath    = flag.String("config", "", "Tuning config JSON (default "+config.DefaultConfigPath+" if present)")
	replayPath    = flag.String("replay", "", "Replay a recorded line file instead of reading the serial port")
	devMode       = flag.Bool("dev", false, "Loop the replay file through a mock serial port")
	disableSerial = flag.Bool("disable-serial", false, "Serve the API without a sensor")
	originLat     = flag.Float64("origin-lat", math.NaN(), "Latitude of the local origin for /motion/track")
	originLon     = flag.Float64("origin-lon", math.NaN(), "Longitude of the local origin for /motion/track")
	speedUnits    = flag.String("units", "mps", "Default speed units for the API (mps, mph, kmph, kph)")
	apiURL        = flag.String("api", "http://localhost:8080", "Service URL for the status and reset commands")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: deadreckon [flags] [command]

Commands:
  (none)            run the service
  migrate <action>  manage the database schema
  status            print the latest sample and pump counters of a running service
  reset             reset the estimator of a running service

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current())
		return
	}

	if flag.NArg() > 0 {
		if err := runCommand(flag.Arg(0), flag.Args()[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx); err != nil {
		log.Fatal(err)
	}
	log.Printf("Graceful shutdown complete")
}

func runCommand(name string, args []string) error {
	switch name {
	case "migrate":
		return db.RunMigrateCommand(args, *dbPath, os.Stdout)
	case "status", "reset":
		client, err := api.NewClient(*apiURL, nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if name == "reset" {
			if err := client.Reset(ctx); err != nil {
				return err
			}
			fmt.Println("estimator reset")
			return nil
		}
		return printStatus(ctx, client)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", name)
	}
}

func printStatus(ctx context.Context, client *api.Client) error {
	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("readings=%d samples=%d dropped=%d duplicates=%d resyncs=%d resets=%d sink_errors=%d\n",
		stats.Pump.Readings, stats.Pump.Samples, stats.Pump.Dropped, stats.Pump.Duplicates,
		stats.Pump.Resyncs, stats.Pump.Resets, stats.Pump.SinkErrors)

	latest, err := client.Latest(ctx, "")
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		fmt.Println("no samples yet")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("seq=%d pos=(%.3f, %.3f, %.3f) m speed=%.3f %s distance=%.3f m\n",
		latest.Seq, latest.X.Position, latest.Y.Position, latest.Z.Position,
		latest.Speed, latest.Units, latest.Distance)
	return nil
}

// openSource picks the motion input from the flags. The returned mux is nil
// in plain replay mode.
func openSource(clock timeutil.Clock, interval time.Duration) (motion.Source, serialmux.SerialMuxInterface, string, func(), error) {
	var cmds []string
	if *initCommands != "" {
		cmds = strings.Split(*initCommands, ",")
	}

	switch {
	case *disableSerial:
		mux := serialmux.NewDisabledSerialMux()
		src := motion.NewSerialSource(mux)
		return src, mux, "disabled", src.Close, nil

	case *devMode:
		if *replayPath == "" {
			return nil, nil, "", nil, errors.New("-dev requires -replay")
		}
		data, err := os.ReadFile(*replayPath)
		if err != nil {
			return nil, nil, "", nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		mux := serialmux.NewMockSerialMux(lines, interval)
		src := motion.NewSerialSource(mux)
		return src, mux, "dev " + *replayPath, src.Close, nil

	case *replayPath != "":
		f, err := os.Open(*replayPath)
		if err != nil {
			return nil, nil, "", nil, fmt.Errorf("failed to open replay file: %w", err)
		}
		src := motion.NewReplaySource(f, clock, interval)
		return src, nil, "replay " + *replayPath, func() { src.Close(); f.Close() }, nil

	default:
		mux, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baud}, cmds...)
		if err != nil {
			return nil, nil, "", nil, err
		}
		src := motion.NewSerialSource(mux)
		return src, mux, "serial " + *port, src.Close, nil
	}
}

func serve(ctx context.Context) error {
	if *listen == "" {
		return errors.New("listen address is required")
	}
	tuning, err := config.ResolveTuningConfig(*tuningPath)
	if err != nil {
		return err
	}
	clock := timeutil.RealClock{}

	src, mux, sourceName, closeSource, err := openSource(clock, tuning.GetSampleInterval())
	if err != nil {
		return err
	}
	defer closeSource()
	if mux != nil {
		defer mux.Close()
		if err := mux.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize device: %w", err)
		}
		log.Printf("initialized device on %s", sourceName)
	}

	var database *db.DB
	if *dbPath != "" {
		if database, err = db.NewDB(*dbPath); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
	}

	pipe, err := newPipeline(tuning, src, database, sourceName, clock)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipe.close(); err != nil {
			log.Printf("failed to close recording session: %v", err)
		}
	}()

	var projector *navigation.Projector
	if !math.IsNaN(*originLat) || !math.IsNaN(*originLon) {
		if projector, err = navigation.NewProjector(*originLat, *originLon); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if mux != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := pipe.pump.Run(ctx)
		switch {
		case err == nil:
			log.Printf("motion source finished: %+v", pipe.pump.Stats())
		case errors.Is(err, context.Canceled):
		default:
			log.Printf("motion pump stopped: %v", err)
		}
		log.Print("pump routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		handler := api.NewServer(api.Config{
			History:   pipe.ring,
			Pump:      pipe.pump,
			DB:        database,
			Projector: projector,
			Units:     *speedUnits,
		}).ServeMux()
		if mux != nil {
			mux.AttachAdminRoutes(handler)
		}
		if database != nil {
			if err := database.AttachAdminRoutes(handler); err != nil {
				log.Printf("admin routes unavailable: %v", err)
			}
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(handler),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("failed to start server: %v", err)
				cancel()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	return nil
}
