package park

import (
	"errors"
	"sync"
	"time"
)

// ErrTurnAbandoned is returned by AwaitTurn when the park closed and the
// car's turn did not come within the grace period.
var ErrTurnAbandoned = errors.New("unload turn abandoned after shutdown")

// Ticket is a departure number. Cars unload in ticket order.
type Ticket uint64

// UnloadSequencer is a ticket barrier enforcing departure-order unloading.
//
// Two counters under one lock:
//   - issued:  next ticket handed to a departing car
//   - serving: the only ticket currently allowed to unload
//
// A car may unload only while serving equals its ticket, and serving moves by
// exactly one per completed turn, so total unload order equals issuance order
// no matter which ride finishes first. While a granted turn is in progress no
// waiter abandons, so an abandoning car never releases riders alongside an
// unload. The lock is separate from the
// RideQueue's so load-side and unload-side contention stay independent.
type UnloadSequencer struct {
	shutdown *Shutdown
	turn     *sync.Cond
	issued   Ticket
	serving  Ticket
	mu       sync.Mutex
	active   bool // a granted turn has not completed yet
}

// NewUnloadSequencer creates a sequencer whose first ticket is 0.
func NewUnloadSequencer(shutdown *Shutdown) *UnloadSequencer {
	s := &UnloadSequencer{shutdown: shutdown}
	s.turn = sync.NewCond(&s.mu)
	shutdown.OnTrigger(func() {
		s.mu.Lock()
		s.turn.Broadcast()
		s.mu.Unlock()
	})
	return s
}

// IssueTicket hands out the next departure ticket.
func (s *UnloadSequencer) IssueTicket() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.issued
	s.issued++
	return t
}

// AwaitTurn blocks until ticket is being served.
//
// While the park is open the wait is unbounded. Once it closes, the wait is
// limited to grace measured from the shutdown instant; past that, and with no
// turn in progress, the call returns ErrTurnAbandoned and the caller must not
// call CompleteTurn. A nil return grants the turn until CompleteTurn.
func (s *UnloadSequencer) AwaitTurn(ticket Ticket, grace time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.serving != ticket {
		if s.shutdown.Open() || s.active {
			s.turn.Wait()
			continue
		}

		deadline := s.shutdown.TriggeredAt().Add(grace)
		if !time.Now().Before(deadline) {
			return ErrTurnAbandoned
		}
		timer := time.AfterFunc(time.Until(deadline), func() {
			s.mu.Lock()
			s.turn.Broadcast()
			s.mu.Unlock()
		})
		s.turn.Wait()
		timer.Stop()
	}
	s.active = true
	return nil
}

// CompleteTurn advances serving by one and wakes every waiting car; only the
// holder of the next ticket proceeds.
func (s *UnloadSequencer) CompleteTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serving++
	s.active = false
	s.turn.Broadcast()
}

// Serving returns the ticket currently allowed to unload.
func (s *UnloadSequencer) Serving() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serving
}

// Issued returns the next ticket to be handed out.
func (s *UnloadSequencer) Issued() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}
