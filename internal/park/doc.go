// Package park implements the concurrency core of the ride simulator: a
// bounded ride queue shared by passenger tasks and car tasks, the load gate
// that serializes boarding, the unload sequencer that keeps cars unloading in
// departure order, and the shutdown signal that drains everything at closing
// time.
//
// # Overview
//
// A Simulation owns every piece of shared state. Passengers explore, line up
// at the ticket booth, take a place in the bounded ride queue and wait to be
// claimed by a car. Cars take turns loading through the exclusive load gate,
// depart with a ticket, ride, and unload strictly in ticket order.
//
// # Architecture
//
//	┌──────────────┐   Enqueue    ┌───────────────────────┐
//	│  Passenger   │─────────────▶│       RideQueue        │
//	│  (N tasks)   │◀─── slot ────│  mutex + available +   │
//	└──────────────┘              │  notFull + per-record  │
//	                              │  condition variables   │
//	┌──────────────┐ DequeueUpTo  └───────────────────────┘
//	│     Car      │─────────────────────────▲
//	│  (C tasks)   │
//	└──────┬───────┘
//	       │ Acquire / Release            IssueTicket / AwaitTurn
//	       ▼                                      ▼
//	┌──────────────┐                    ┌───────────────────┐
//	│   LoadGate   │                    │  UnloadSequencer   │
//	└──────────────┘                    └───────────────────┘
//
// # Passenger Handshake
//
// Each ride attempt is backed by one PassengerRecord whose state only moves
// forward:
//
//	Waiting → Boarded → AllowedToUnboard → Unboarded → Released
//
// The car performs every transition except Unboarded, which the passenger
// performs to acknowledge it stepped off. A record is retired by its passenger
// only once Released, or once withdrawn from the queue unclaimed at shutdown.
//
// # Ordering
//
// Tickets are issued while the load gate is held, so ticket order equals
// departure order. A car unloads only when the sequencer's serving counter
// equals its ticket; a slower ride cannot be overtaken at unload.
//
// # Shutdown
//
// Shutdown is a one-shot flag. Triggering it wakes every condition variable a
// task may be parked on, and every blocking wait re-checks the flag after
// waking. Passengers exit from exploring, from the full-queue wait, or from
// the queue before being claimed. A car that already claimed riders always
// finishes its ride and unload; if the car ahead never completes its turn,
// the waiting car abandons the turn after a bounded time and releases its
// riders so nobody is left blocked.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Observers read state only
// through copies (Snapshot, CarView, IDs).
package park
