package park

import "time"

// Passenger is one passenger task. Each loop iteration is a full visit:
//
//	Exploring → TicketQueue → Queued → Boarded → Riding → Unboarded → Released
//
// The loop ends (Exited) when the park closes while exploring, while waiting
// for ride queue space, or while queued but not yet claimed by a car.
type Passenger struct {
	sim *Simulation
	ID  int
}

func newPassenger(id int, sim *Simulation) *Passenger {
	return &Passenger{ID: id, sim: sim}
}

func (p *Passenger) run() {
	s := p.sim
	s.record(Event{Kind: PassengerEntered, ID: p.ID})
	defer s.record(Event{Kind: PassengerExited, ID: p.ID})

	for round := 0; s.shutdown.Open(); round++ {
		if !p.visit(round) {
			return
		}
	}
}

// visit runs one ride attempt and reports whether the passenger stays in the park.
// A panic mid-visit forfeits the record before it propagates, so the car that
// claimed it can still finish its unload.
func (p *Passenger) visit(round int) bool {
	s := p.sim
	var rec *PassengerRecord
	defer func() {
		if r := recover(); r != nil {
			s.booth.Leave(p.ID)
			if rec != nil {
				s.queue.Forfeit(rec)
			}
			panic(r)
		}
	}()

	s.record(Event{Kind: PassengerExploring, ID: p.ID})
	if !s.shutdown.sleep(s.exploreDuration(p.ID, round)) {
		return false
	}

	s.record(Event{Kind: PassengerDoneExploring, ID: p.ID})
	s.booth.Enter(p.ID)
	s.record(Event{Kind: PassengerInTicketQueue, ID: p.ID})

	rec, ok := s.queue.EnqueueWith(p.ID, func() { s.booth.Leave(p.ID) })
	if !ok {
		return false
	}
	s.record(Event{Kind: PassengerGotTicket, ID: p.ID})
	s.record(Event{Kind: PassengerInRideQueue, ID: p.ID})

	if !s.queue.AwaitBoarding(rec) {
		p.retire(rec)
		return false
	}
	s.record(Event{Kind: PassengerBoarding, ID: p.ID})

	if s.queue.AwaitUnboardCall(rec) == AllowedToUnboard {
		s.record(Event{Kind: PassengerUnboarded, ID: p.ID})
		s.queue.Unboard(rec)
		s.queue.AwaitRelease(rec)
	}

	if p.retire(rec) {
		s.served.Add(1)
		s.metrics.IncrementCounter(MetricServedTotal, nil)
	}
	return true
}

// retire runs the record cleanup check and reports whether the ride completed.
func (p *Passenger) retire(rec *PassengerRecord) bool {
	s := p.sim
	if err := s.queue.Retire(rec); err != nil {
		s.retireViolations.Add(1)
		s.metrics.IncrementCounter(MetricRetireViolations, nil)
		s.record(Event{Kind: TaskFailed, ID: p.ID, Err: err})
		return false
	}
	return s.queue.State(rec) == Released
}

// exploreDuration picks how long passenger id explores before its round-th ride.
func (s *Simulation) exploreDuration(id, round int) time.Duration {
	if s.explore != nil {
		return s.explore(id, round)
	}
	span := s.cfg.ExploreMax - s.cfg.ExploreMin + 1
	s.rngMu.Lock()
	n := s.cfg.ExploreMin + s.rng.Intn(span)
	s.rngMu.Unlock()
	return s.cfg.units(n)
}
