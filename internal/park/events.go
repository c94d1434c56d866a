package park

import (
	"fmt"
	"time"
)

// EventKind identifies one lifecycle transition of a passenger or car.
type EventKind int

const (
	PassengerEntered       EventKind = iota // passenger task started
	PassengerExploring                      // passenger began exploring
	PassengerDoneExploring                  // exploring time elapsed
	PassengerInTicketQueue                  // passenger joined the ticket booth line
	PassengerGotTicket                      // passenger was admitted to the ride queue
	PassengerInRideQueue                    // passenger is waiting to board
	PassengerBoarding                       // a car claimed the passenger
	PassengerUnboarded                      // passenger stepped off its car
	PassengerExited                         // passenger task ended
	CarLoadInvoked                          // car started a load
	CarWaitExpired                          // the extra boarding wait ran out
	CarDeparted                             // car left with its riders and ticket
	CarReturned                             // car came back from its ride
	CarUnloadInvoked                        // car's unload turn began
	CarUnloadCompleted                      // every rider stepped off
	CarUnloadAbandoned                      // turn never came after shutdown; riders released
	CarStopped                              // car task ended
	TaskFailed                              // a task panicked or broke a record invariant
)

// Actor reports which kind of task emits events of this kind.
func (k EventKind) Actor() string {
	if k >= CarLoadInvoked && k <= CarStopped {
		return "car"
	}
	if k == TaskFailed {
		return "task"
	}
	return "passenger"
}

// String returns a stable snake_case name used in structured logs.
func (k EventKind) String() string {
	switch k {
	case PassengerEntered:
		return "passenger_entered"
	case PassengerExploring:
		return "passenger_exploring"
	case PassengerDoneExploring:
		return "passenger_done_exploring"
	case PassengerInTicketQueue:
		return "passenger_in_ticket_queue"
	case PassengerGotTicket:
		return "passenger_got_ticket"
	case PassengerInRideQueue:
		return "passenger_in_ride_queue"
	case PassengerBoarding:
		return "passenger_boarding"
	case PassengerUnboarded:
		return "passenger_unboarded"
	case PassengerExited:
		return "passenger_exited"
	case CarLoadInvoked:
		return "car_load_invoked"
	case CarWaitExpired:
		return "car_wait_expired"
	case CarDeparted:
		return "car_departed"
	case CarReturned:
		return "car_returned"
	case CarUnloadInvoked:
		return "car_unload_invoked"
	case CarUnloadCompleted:
		return "car_unload_completed"
	case CarUnloadAbandoned:
		return "car_unload_abandoned"
	case CarStopped:
		return "car_stopped"
	case TaskFailed:
		return "task_failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one timestamped lifecycle transition.
// Events from a single task are recorded in program order; events of
// different tasks interleave freely.
type Event struct {
	Err     error         // set for TaskFailed
	Kind    EventKind     // what happened
	ID      int           // passenger or car id
	Elapsed time.Duration // time since the simulation started
	Ticket  Ticket        // departure ticket, car events after departure
	Riders  int           // riders on board, car events
}

// Recorder receives lifecycle events. Implementations must be safe for
// concurrent use and must not block for long.
type Recorder interface {
	Record(e Event)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(e Event)

// Record calls f(e).
func (f RecorderFunc) Record(e Event) { f(e) }

type discardRecorder struct{}

func (discardRecorder) Record(Event) {}
