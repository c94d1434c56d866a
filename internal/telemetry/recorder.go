package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/dreamware/ridepark/internal/park"
)

// Log formats accepted by NewLogger.
const (
	FormatText = "text" // slog text handler
	FormatJSON = "json" // slog JSON handler
	FormatOTel = "otel" // otelslog bridge to the global LoggerProvider
)

// InstrumentationName names the otel logger and meter.
const InstrumentationName = "github.com/dreamware/ridepark"

// NewLogger builds the event logger for format. The otel format hands records
// to the global OpenTelemetry LoggerProvider through the slog bridge; w is
// ignored in that case.
func NewLogger(format string, w io.Writer) (*slog.Logger, error) {
	switch format {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, nil)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, nil)), nil
	case FormatOTel:
		return otelslog.NewLogger(InstrumentationName), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text, json or otel)", format)
	}
}

// SlogRecorder writes park lifecycle events to a slog.Logger, one record per
// event. Elapsed time is reported in whole simulation units.
type SlogRecorder struct {
	logger *slog.Logger
	unit   time.Duration
}

// NewSlogRecorder creates a recorder. unit is the wall-clock length of one
// simulation unit; non-positive means one second.
func NewSlogRecorder(logger *slog.Logger, unit time.Duration) *SlogRecorder {
	if unit <= 0 {
		unit = time.Second
	}
	return &SlogRecorder{logger: logger, unit: unit}
}

// Record implements park.Recorder.
func (r *SlogRecorder) Record(e park.Event) {
	attrs := []slog.Attr{
		slog.Int64("sim_time", int64(e.Elapsed/r.unit)),
		slog.String("event", e.Kind.String()),
		slog.Int(e.Kind.Actor(), e.ID),
	}
	switch e.Kind {
	case park.CarDeparted, park.CarReturned, park.CarUnloadInvoked, park.CarUnloadCompleted, park.CarUnloadAbandoned:
		attrs = append(attrs, slog.Uint64("ticket", uint64(e.Ticket)), slog.Int("riders", e.Riders))
	case park.CarWaitExpired:
		attrs = append(attrs, slog.Int("riders", e.Riders))
	}

	level := slog.LevelInfo
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
		level = slog.LevelWarn
		if e.Kind == park.TaskFailed {
			level = slog.LevelError
		}
	}

	r.logger.LogAttrs(context.Background(), level, message(e), attrs...)
}

func message(e park.Event) string {
	switch e.Kind {
	case park.PassengerEntered:
		return fmt.Sprintf("Passenger %d entered the park", e.ID)
	case park.PassengerExploring:
		return fmt.Sprintf("Passenger %d is exploring the park", e.ID)
	case park.PassengerDoneExploring:
		return fmt.Sprintf("Passenger %d finished exploring, entering the ticket booth", e.ID)
	case park.PassengerInTicketQueue:
		return fmt.Sprintf("Passenger %d entering the ticket queue", e.ID)
	case park.PassengerGotTicket:
		return fmt.Sprintf("Passenger %d acquired a ticket", e.ID)
	case park.PassengerInRideQueue:
		return fmt.Sprintf("Passenger %d has entered the ride queue", e.ID)
	case park.PassengerBoarding:
		return fmt.Sprintf("Passenger %d is boarding", e.ID)
	case park.PassengerUnboarded:
		return fmt.Sprintf("Passenger %d unboarded", e.ID)
	case park.PassengerExited:
		return fmt.Sprintf("Passenger %d left the park", e.ID)
	case park.CarLoadInvoked:
		return fmt.Sprintf("Car %d invoked load()", e.ID)
	case park.CarWaitExpired:
		return fmt.Sprintf("Car %d waiting period expired", e.ID)
	case park.CarDeparted:
		return fmt.Sprintf("Car %d has departed to ride", e.ID)
	case park.CarReturned:
		return fmt.Sprintf("Car %d has returned from the ride", e.ID)
	case park.CarUnloadInvoked:
		return fmt.Sprintf("Car %d has invoked unload()", e.ID)
	case park.CarUnloadCompleted:
		return fmt.Sprintf("Car %d finished unloading", e.ID)
	case park.CarUnloadAbandoned:
		return fmt.Sprintf("Car %d abandoned its unload turn", e.ID)
	case park.CarStopped:
		return fmt.Sprintf("Car %d stopped", e.ID)
	case park.TaskFailed:
		return "Task failed"
	default:
		return e.Kind.String()
	}
}

// Ensure SlogRecorder implements park.Recorder.
var _ park.Recorder = (*SlogRecorder)(nil)
