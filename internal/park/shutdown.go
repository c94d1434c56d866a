package park

import (
	"sync"
	"sync/atomic"
	"time"
)

// Shutdown is the one-shot park-closing signal shared by every task.
//
// The flag starts open and flips to closed exactly once. Components that park
// goroutines on condition variables register a waker with OnTrigger so that a
// shutdown wakes every blocked task; each waiter re-checks Open() under its own
// lock, so a broadcast is never lost.
//
// Thread Safety:
// All methods are safe for concurrent use.
type Shutdown struct {
	closed      atomic.Bool   // true once Trigger has run
	triggeredAt atomic.Int64  // unix nanos of the Trigger call
	done        chan struct{} // closed by Trigger
	once        sync.Once     // guards the transition
	mu          sync.Mutex    // protects wakers
	wakers      []func()      // broadcast hooks run on Trigger
}

// NewShutdown creates an open shutdown signal.
func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Open reports whether the park is still open.
func (s *Shutdown) Open() bool {
	return !s.closed.Load()
}

// Done returns a channel that is closed when the park closes.
// It is used by interruptible sleeps such as exploring.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

// TriggeredAt returns the instant the park closed, or the zero time while open.
func (s *Shutdown) TriggeredAt() time.Time {
	n := s.triggeredAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// OnTrigger registers a waker that runs once when the park closes.
// A waker registered after the park already closed runs immediately.
func (s *Shutdown) OnTrigger(wake func()) {
	s.mu.Lock()
	if !s.closed.Load() {
		s.wakers = append(s.wakers, wake)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	wake()
}

// Trigger closes the park. Only the first call has any effect; it publishes
// the flag, closes Done, and runs every registered waker.
//
// Returns:
//   - true if this call performed the transition
func (s *Shutdown) Trigger() bool {
	fired := false
	s.once.Do(func() {
		fired = true
		s.triggeredAt.Store(time.Now().UnixNano())

		s.mu.Lock()
		s.closed.Store(true)
		wakers := s.wakers
		s.wakers = nil
		s.mu.Unlock()

		close(s.done)
		for _, wake := range wakers {
			wake()
		}
	})
	return fired
}

// sleep waits for d or until the park closes.
// It returns false if the park closed first.
func (s *Shutdown) sleep(d time.Duration) bool {
	if d <= 0 {
		return s.Open()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return s.Open()
	case <-s.done:
		return false
	}
}
