package park

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRecordNotReleased is returned by RideQueue.Retire when a record is retired
// while its car may still signal it.
var ErrRecordNotReleased = errors.New("passenger record retired before release")

// RecordState is the lifecycle state of a passenger record.
// Transitions only move forward:
//
//	Waiting → Boarded → AllowedToUnboard → Unboarded → Released
//
// A car that abandons its unload turn moves Boarded straight to Released.
type RecordState int

const (
	// Waiting means the record sits in the ride queue.
	Waiting RecordState = iota
	// Boarded means a car claimed the record during its load phase.
	Boarded
	// AllowedToUnboard means the car reached its unload turn.
	AllowedToUnboard
	// Unboarded means the passenger stepped off and acknowledged it.
	Unboarded
	// Released means the car let the passenger go; the record may be retired.
	Released
)

// String returns the state name.
func (s RecordState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Boarded:
		return "boarded"
	case AllowedToUnboard:
		return "allowed_to_unboard"
	case Unboarded:
		return "unboarded"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("RecordState(%d)", int(s))
	}
}

// PassengerRecord is the queue entry for one ride attempt of one passenger.
//
// The record is created by Enqueue and owned by the RideQueue while queued.
// After a car claims it the car signals it; the passenger retires it once the
// state reaches Released. All fields are guarded by the owning queue's mutex,
// and slot is a condition variable bound to that same mutex so that targeted
// wakeups never race with state changes.
type PassengerRecord struct {
	enqueuedAt time.Time   // when the record entered the ride queue
	slot       *sync.Cond  // private wait slot, bound to RideQueue.mu
	ID         int         // passenger id
	state      RecordState // lifecycle state
	withdrawn  bool        // left the queue unclaimed because the park closed
	retired    bool        // cleanup already ran
}

func newPassengerRecord(id int, mu *sync.Mutex) *PassengerRecord {
	return &PassengerRecord{
		ID:         id,
		state:      Waiting,
		slot:       sync.NewCond(mu),
		enqueuedAt: time.Now(),
	}
}
