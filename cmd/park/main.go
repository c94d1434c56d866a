package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dreamware/ridepark/internal/monitor"
	"github.com/dreamware/ridepark/internal/park"
	"github.com/dreamware/ridepark/internal/telemetry"
)

// Monitor modes for -monitor.
const (
	monitorInline = "inline"
	monitorOff    = "off"
)

// monitorBuffer is the number of snapshots allowed to queue for the monitor.
const monitorBuffer = 4

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Printf("park: %v", err)
		os.Exit(1)
	}
}

type options struct {
	cfg       park.Config
	monitor   string
	listen    string
	logFormat string
	seed      int64
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	def := park.DefaultConfig()
	opts := options{cfg: def}

	fs := flag.NewFlagSet("park", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.cfg.Passengers, "n", def.Passengers, "number of passengers")
	fs.IntVar(&opts.cfg.Cars, "c", def.Cars, "number of cars")
	fs.IntVar(&opts.cfg.Capacity, "p", def.Capacity, "capacity per car")
	fs.IntVar(&opts.cfg.MaxWait, "w", def.MaxWait, "car waiting period, in units")
	fs.IntVar(&opts.cfg.RideDuration, "r", def.RideDuration, "ride duration, in units")
	fs.IntVar(&opts.cfg.Duration, "t", def.Duration, "total simulation time, in units")
	fs.IntVar(&opts.cfg.QueueCapacity, "j", def.QueueCapacity, "ride queue capacity")
	fs.DurationVar(&opts.cfg.Unit, "unit", def.Unit, "wall-clock length of one unit")
	fs.StringVar(&opts.monitor, "monitor", getenv("PARK_MONITOR", monitorInline), "monitor: inline, off, or path to a monitor binary")
	fs.StringVar(&opts.listen, "listen", getenv("PARK_LISTEN", ""), "address for the HTTP status server (empty disables)")
	fs.StringVar(&opts.logFormat, "log", getenv("PARK_LOG_FORMAT", telemetry.FormatText), "event log format: text, json or otel")
	fs.Int64Var(&opts.seed, "seed", 0, "seed for exploring times (0 picks one)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(opts.logFormat, stdout)
	if err != nil {
		return err
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()
	collector := telemetry.NewMetricsCollector(provider.Meter(telemetry.InstrumentationName))

	simOpts := []park.Option{
		park.WithRecorder(telemetry.NewSlogRecorder(logger, opts.cfg.Unit)),
		park.WithMetrics(collector),
	}
	if opts.seed != 0 {
		simOpts = append(simOpts, park.WithSeed(opts.seed))
	}
	sim, err := park.New(opts.cfg, simOpts...)
	if err != nil {
		return err
	}
	cfg := sim.Config()

	mon, err := startMonitor(opts.monitor, stdout, stderr)
	if err != nil {
		return err
	}
	broadcaster := monitor.NewBroadcaster(mon.w, monitorBuffer, collector)
	broadcaster.Start(context.Background())

	ctx, stop := shutdownOnSignals(ctx)
	defer stop()

	if opts.listen != "" {
		httpSrv := &http.Server{
			Addr:              opts.listen,
			Handler:           newStatusServer(sim, broadcaster, reader).routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("status server listening on %s", opts.listen)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("status server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("park %s open: N=%d C=%d P=%d W=%d R=%d T=%d J=%d unit=%v",
		sim.RunID(), cfg.Passengers, cfg.Cars, cfg.Capacity, cfg.MaxWait, cfg.RideDuration, cfg.Duration, cfg.QueueCapacity, cfg.Unit)

	report, runErr := sim.Run(ctx, func(s park.Snapshot) {
		if err := broadcaster.Publish(s); err != nil {
			log.Printf("monitor: %v", err)
		}
	})

	broadcaster.Stop()
	if err := mon.close(); err != nil {
		log.Printf("monitor: %v", err)
	}

	var stuck *park.StuckTasksError
	switch {
	case errors.As(runErr, &stuck):
		log.Printf("forcing exit: %v", stuck)
	case runErr != nil:
		return runErr
	}
	if report.RetireViolations > 0 {
		log.Printf("%d passenger record(s) retired before release", report.RetireViolations)
	}

	printReport(stdout, report)
	return nil
}

func printReport(w io.Writer, r park.Report) {
	fmt.Fprintln(w, "=========== PARK CLOSED ==========")
	fmt.Fprintln(w, "[Monitor] FINAL STATISTICS:")
	fmt.Fprintf(w, "Total Simulation time: [Time: %d]\n", r.ClosedAt)
	fmt.Fprintf(w, "Total Passengers Served: %d\n", r.Served)
	fmt.Fprintf(w, "Total Rides: %d\n", r.Rides)
}

// monitorProc is the running monitor: where frames are written and how to
// wait for it to finish rendering.
type monitorProc struct {
	w     io.Writer
	close func() error
}

// startMonitor wires the snapshot stream to the chosen monitor. The inline
// monitor renders over an in-process pipe; a path runs that binary with the
// stream on its stdin.
func startMonitor(mode string, stdout, stderr io.Writer) (monitorProc, error) {
	switch mode {
	case monitorOff:
		return monitorProc{w: io.Discard, close: func() error { return nil }}, nil

	case "", monitorInline:
		pr, pw := io.Pipe()
		done := make(chan error, 1)
		go func() {
			err := monitor.Render(pr, stdout)
			_ = pr.CloseWithError(err)
			done <- err
		}()
		return monitorProc{
			w: pw,
			close: func() error {
				_ = pw.Close()
				return <-done
			},
		}, nil

	default:
		cmd := exec.Command(mode)
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return monitorProc{}, fmt.Errorf("monitor stdin: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return monitorProc{}, fmt.Errorf("start monitor %s: %w", mode, err)
		}
		return monitorProc{
			w: stdin,
			close: func() error {
				_ = stdin.Close()
				return cmd.Wait()
			},
		}, nil
	}
}

// getenv retrieves an environment variable with a fallback default value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
