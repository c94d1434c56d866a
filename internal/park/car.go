package park

import (
	"strconv"
	"sync"
	"time"
)

// CarPhase is the state of a car's lifecycle loop.
//
//	Idle → Loading → Departed → AwaitingTurn → Unloading → Idle
//	any loop boundary → Stopped
type CarPhase int

const (
	PhaseIdle         CarPhase = iota // between cycles
	PhaseLoading                      // holding the load gate and claiming riders
	PhaseDeparted                     // riding with a ticket
	PhaseAwaitingTurn                 // back and waiting for its unload turn
	PhaseUnloading                    // running the unboarding handshake
	PhaseStopped                      // task ended
)

// CarStatus is the coarse status exported to the monitor.
type CarStatus string

const (
	StatusWaiting CarStatus = "WAITING" // idle, or loading with nobody to claim
	StatusLoading CarStatus = "LOADING" // claiming riders
	StatusRunning CarStatus = "RUNNING" // riding or unloading
	StatusStopped CarStatus = "STOPPED" // task ended
)

// CarSlot is the observable state of one car. The owning car writes it; the
// broadcaster reads copies.
type CarSlot struct {
	mu      sync.Mutex
	phase   CarPhase
	riders  int
	ticket  Ticket
	waiting bool // loading with nobody aboard and the queue empty
}

// CarView is an immutable copy of a CarSlot.
type CarView struct {
	Phase  CarPhase
	Status CarStatus
	Riders int
	Ticket Ticket
}

func (s *CarSlot) view() CarView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := CarView{Phase: s.phase, Riders: s.riders, Ticket: s.ticket}
	switch s.phase {
	case PhaseLoading:
		v.Status = StatusLoading
		if s.waiting {
			v.Status = StatusWaiting
		}
	case PhaseDeparted, PhaseAwaitingTurn, PhaseUnloading:
		v.Status = StatusRunning
	case PhaseStopped:
		v.Status = StatusStopped
	default:
		v.Status = StatusWaiting
	}
	return v
}

func (s *CarSlot) set(phase CarPhase, riders int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.riders = riders
	s.waiting = false
}

func (s *CarSlot) depart(riders int, ticket Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseDeparted
	s.riders = riders
	s.ticket = ticket
}

func (s *CarSlot) setPhase(phase CarPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

// progress is handed to RideQueue.DequeueUpTo.
func (s *CarSlot) progress(riders int, waiting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riders = riders
	s.waiting = waiting
}

// Car is one car task.
type Car struct {
	sim  *Simulation
	slot CarSlot
	ID   int
}

func newCar(id int, sim *Simulation) *Car {
	return &Car{ID: id, sim: sim}
}

// View returns a copy of the car's observable state.
func (c *Car) View() CarView {
	return c.slot.view()
}

// run is the car lifecycle loop. Shutdown is checked at every loop boundary;
// a load that claimed riders always proceeds through its ride and unload.
func (c *Car) run() {
	s := c.sim
	defer func() {
		c.slot.set(PhaseStopped, 0)
		s.record(Event{Kind: CarStopped, ID: c.ID})
	}()

	for s.shutdown.Open() {
		if !s.gate.Acquire(s.shutdown.Done()) {
			return
		}
		if !c.cycle() {
			return
		}
	}
}

// cycle performs one load, ride, and unload. The load gate is held on entry.
// It returns false when the load ended empty because the park closed.
func (c *Car) cycle() bool {
	s := c.sim
	capacity := s.cfg.Capacity

	s.record(Event{Kind: CarLoadInvoked, ID: c.ID})
	c.slot.set(PhaseLoading, 0)

	riders, expired := s.queue.DequeueUpTo(capacity, s.cfg.units(s.cfg.MaxWait), c.slot.progress)
	if expired {
		s.record(Event{Kind: CarWaitExpired, ID: c.ID, Riders: len(riders)})
	}
	if len(riders) == 0 {
		s.gate.Release()
		return false
	}

	ticket := s.seq.IssueTicket()
	s.gate.Release()

	labels := map[string]string{"car": strconv.Itoa(c.ID)}
	s.metrics.RecordValue(MetricCarLoadRiders, float64(len(riders)), labels)
	now := time.Now()
	for _, r := range riders {
		s.metrics.RecordDuration(MetricBoardingWait, now.Sub(r.enqueuedAt), labels)
	}

	c.slot.depart(len(riders), ticket)
	s.record(Event{Kind: CarDeparted, ID: c.ID, Ticket: ticket, Riders: len(riders)})

	time.Sleep(s.rideDuration(c.ID))
	s.record(Event{Kind: CarReturned, ID: c.ID, Ticket: ticket, Riders: len(riders)})

	c.unload(riders, ticket, labels)
	return true
}

// unload waits for the car's turn and runs the unboarding handshake with every
// rider. Once begun it runs to completion regardless of shutdown.
func (c *Car) unload(riders []*PassengerRecord, ticket Ticket, labels map[string]string) {
	s := c.sim

	c.slot.setPhase(PhaseAwaitingTurn)
	if err := s.seq.AwaitTurn(ticket, s.abandonAfter()); err != nil {
		for _, r := range riders {
			s.queue.Release(r)
		}
		s.metrics.IncrementCounter(MetricUnloadsAbandoned, labels)
		s.record(Event{Kind: CarUnloadAbandoned, ID: c.ID, Ticket: ticket, Riders: len(riders), Err: err})
		c.slot.set(PhaseIdle, 0)
		return
	}

	c.slot.setPhase(PhaseUnloading)
	s.record(Event{Kind: CarUnloadInvoked, ID: c.ID, Ticket: ticket, Riders: len(riders)})

	s.queue.AllowUnboard(riders)
	for _, r := range riders {
		s.queue.AwaitUnboarded(r)
		s.queue.Release(r)
	}

	s.record(Event{Kind: CarUnloadCompleted, ID: c.ID, Ticket: ticket, Riders: len(riders)})
	s.rides.Add(1)
	s.metrics.IncrementCounter(MetricRidesTotal, labels)
	c.slot.set(PhaseIdle, 0)
	s.seq.CompleteTurn()
}
