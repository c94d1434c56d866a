package park

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// RideQueue is the bounded FIFO of passengers waiting to board.
//
// A single mutex guards the record slice and every record's state. Two
// condition variables hang off it:
//   - available: signaled when a record is appended (cars wait here)
//   - notFull:   signaled when a record leaves (passengers wait here)
//
// Each PassengerRecord carries its own condition variable on the same mutex,
// used for the targeted boarding and unloading handshakes.
//
// Invariants:
//   - len(records) never exceeds capacity
//   - records leave in arrival order, except a record withdrawn on shutdown
//
// Thread Safety:
// All methods are safe for concurrent use.
type RideQueue struct {
	shutdown  *Shutdown
	available *sync.Cond
	notFull   *sync.Cond
	records   []*PassengerRecord
	capacity  int
	mu        sync.Mutex
}

// NewRideQueue creates a queue holding at most capacity records and registers
// its wakers with the shutdown signal.
func NewRideQueue(capacity int, shutdown *Shutdown) *RideQueue {
	q := &RideQueue{
		shutdown: shutdown,
		capacity: capacity,
		records:  make([]*PassengerRecord, 0, capacity),
	}
	q.available = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	shutdown.OnTrigger(q.wakeAll)
	return q
}

// wakeAll broadcasts every condition a task may be parked on inside the queue.
func (q *RideQueue) wakeAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.available.Broadcast()
	q.notFull.Broadcast()
	for _, r := range q.records {
		r.slot.Broadcast()
	}
}

// Enqueue appends a new record for passenger id, blocking while the queue is full.
//
// Returns:
//   - the record and true on success
//   - nil and false if the park closed while waiting; nothing was enqueued
func (q *RideQueue) Enqueue(id int) (*PassengerRecord, bool) {
	return q.EnqueueWith(id, nil)
}

// EnqueueWith is Enqueue with a hook. leaving, if non-nil, runs under the
// queue lock once the wait for space ends, before the record is appended. The
// passenger task uses it to leave the ticket booth in the same critical
// section, so no snapshot taken through IDsWith shows it in both lines.
func (q *RideQueue) EnqueueWith(id int, leaving func()) (*PassengerRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.records) >= q.capacity && q.shutdown.Open() {
		q.notFull.Wait()
	}
	if leaving != nil {
		leaving()
	}
	if !q.shutdown.Open() {
		return nil, false
	}

	rec := newPassengerRecord(id, &q.mu)
	q.records = append(q.records, rec)
	q.available.Signal()
	return rec, true
}

// DequeueUpTo claims up to n waiting records for one car load.
//
// Behavior:
//   - pops the oldest record, marks it Boarded and wakes its slot
//   - with nothing claimed yet, waits indefinitely for a passenger
//   - with at least one claimed, waits at most extraWait for the next one,
//     measured from the moment the queue ran dry
//   - stops early when the park closes
//
// The progress callback, if non-nil, is called under the queue lock with the
// rider count and whether the car is idling with an empty load.
//
// Returns:
//   - claimed: the records in boarding order (empty only on shutdown)
//   - expired: true if the extra wait ran out before the load was full
func (q *RideQueue) DequeueUpTo(n int, extraWait time.Duration, progress func(riders int, waiting bool)) (claimed []*PassengerRecord, expired bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	claimed = make([]*PassengerRecord, 0, n)
	var deadline time.Time

	for len(claimed) < n && q.shutdown.Open() {
		if len(q.records) > 0 {
			rec := q.records[0]
			q.records[0] = nil
			q.records = q.records[1:]
			rec.state = Boarded
			rec.slot.Broadcast()
			q.notFull.Signal()
			claimed = append(claimed, rec)
			deadline = time.Time{}
			if progress != nil {
				progress(len(claimed), false)
			}
			continue
		}

		if len(claimed) == 0 {
			if progress != nil {
				progress(0, true)
			}
			q.available.Wait()
			if progress != nil {
				progress(0, false)
			}
			continue
		}

		if deadline.IsZero() {
			deadline = time.Now().Add(extraWait)
		}
		if !time.Now().Before(deadline) {
			expired = true
			break
		}
		q.waitAvailableUntil(deadline)
	}

	return claimed, expired
}

// waitAvailableUntil waits on the available condition until signaled or the
// deadline passes. Must be called with q.mu held.
func (q *RideQueue) waitAvailableUntil(deadline time.Time) {
	timer := time.AfterFunc(time.Until(deadline), func() {
		q.mu.Lock()
		q.available.Broadcast()
		q.mu.Unlock()
	})
	q.available.Wait()
	timer.Stop()
}

// AwaitBoarding blocks the passenger until a car claims rec.
// If the park closes first the record is withdrawn from the queue under the
// same lock, so no car can claim it afterwards.
//
// Returns:
//   - true if the record was boarded
//   - false if the record was withdrawn
func (q *RideQueue) AwaitBoarding(rec *PassengerRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for rec.state == Waiting && q.shutdown.Open() {
		rec.slot.Wait()
	}
	if rec.state != Waiting {
		return true
	}

	if i := slices.Index(q.records, rec); i >= 0 {
		q.records = slices.Delete(q.records, i, i+1)
		q.notFull.Broadcast()
	}
	rec.withdrawn = true
	return false
}

// AwaitUnboardCall blocks a boarded passenger until its car calls for unloading
// or releases it outright. Shutdown does not end this wait: a car that claimed
// a rider always finishes or abandons its unload.
//
// Returns the state that ended the wait: AllowedToUnboard or Released.
func (q *RideQueue) AwaitUnboardCall(rec *PassengerRecord) RecordState {
	q.mu.Lock()
	defer q.mu.Unlock()

	for rec.state == Boarded {
		rec.slot.Wait()
	}
	return rec.state
}

// Unboard marks rec as stepped off and signals the car.
func (q *RideQueue) Unboard(rec *PassengerRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if rec.state == AllowedToUnboard {
		rec.state = Unboarded
		rec.slot.Broadcast()
	}
}

// AwaitRelease blocks the passenger until its car releases it.
func (q *RideQueue) AwaitRelease(rec *PassengerRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for rec.state != Released {
		rec.slot.Wait()
	}
}

// AllowUnboard lets every rider of a car step off.
func (q *RideQueue) AllowUnboard(riders []*PassengerRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, rec := range riders {
		if rec.state == Boarded {
			rec.state = AllowedToUnboard
			rec.slot.Broadcast()
		}
	}
}

// AwaitUnboarded blocks the car until rec acknowledges that it stepped off.
func (q *RideQueue) AwaitUnboarded(rec *PassengerRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for rec.state == AllowedToUnboard {
		rec.slot.Wait()
	}
}

// Release hands rec back to its passenger.
func (q *RideQueue) Release(rec *PassengerRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec.state = Released
	rec.slot.Broadcast()
}

// Forfeit settles the record of a passenger task that died mid-visit, so that
// no car is left waiting on it:
//   - a queued record is withdrawn
//   - a boarded record is marked Unboarded; its car skips the handshake
//
// Unboarded and Released records are left alone.
func (q *RideQueue) Forfeit(rec *PassengerRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch rec.state {
	case Waiting:
		if i := slices.Index(q.records, rec); i >= 0 {
			q.records = slices.Delete(q.records, i, i+1)
			q.notFull.Signal()
		}
		rec.withdrawn = true
	case Boarded, AllowedToUnboard:
		rec.state = Unboarded
		rec.slot.Broadcast()
	}
}

// Retire is the cleanup point of a record. It refuses records a car may still
// signal, which would otherwise leave the car waiting on a dead slot.
func (q *RideQueue) Retire(rec *PassengerRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if rec.retired {
		return fmt.Errorf("passenger %d: record retired twice", rec.ID)
	}
	if rec.state != Released && !rec.withdrawn {
		return fmt.Errorf("passenger %d in state %s: %w", rec.ID, rec.state, ErrRecordNotReleased)
	}
	rec.retired = true
	return nil
}

// State returns the current state of rec.
func (q *RideQueue) State(rec *PassengerRecord) RecordState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return rec.state
}

// Len returns the number of waiting records.
func (q *RideQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Capacity returns the queue bound.
func (q *RideQueue) Capacity() int {
	return q.capacity
}

// IDs returns the passenger ids in queue order.
func (q *RideQueue) IDs() []int {
	return q.IDsWith(nil)
}

// IDsWith returns the passenger ids in queue order and runs f, if non-nil,
// under the same lock.
func (q *RideQueue) IDsWith(f func()) []int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if f != nil {
		f()
	}
	ids := make([]int, len(q.records))
	for i, r := range q.records {
		ids[i] = r.ID
	}
	return ids
}
