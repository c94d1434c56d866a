package park

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyStarted is returned by Start when called twice.
var ErrAlreadyStarted = errors.New("simulation already started")

// StuckTasksError lists tasks that did not exit within the shutdown grace period.
type StuckTasksError struct {
	Tasks []string
	Grace time.Duration
}

func (e *StuckTasksError) Error() string {
	return fmt.Sprintf("%d task(s) still running %v after shutdown: %s",
		len(e.Tasks), e.Grace, strings.Join(e.Tasks, ", "))
}

// Snapshot is a point-in-time read-only copy of the park state, as sent to
// the monitor.
type Snapshot struct {
	RunID       string        `json:"run_id"`
	TicketQueue []int         `json:"ticket_queue"`
	RideQueue   []int         `json:"ride_queue"`
	Cars        []CarSnapshot `json:"cars"`
	Time        int64         `json:"time"`
	Served      int64         `json:"passengers_served"`
	Rides       int64         `json:"rides_completed"`
}

// CarSnapshot is one car's entry in a Snapshot.
type CarSnapshot struct {
	Status   CarStatus `json:"status"`
	ID       int       `json:"id"`
	Riders   int       `json:"riders"`
	Capacity int       `json:"capacity"`
}

// Report carries the end-of-run aggregates.
type Report struct {
	Stuck            []string      // tasks still running when the join gave up
	RunID            uuid.UUID
	Elapsed          time.Duration // since Start, including the drain
	ClosedAt         int64         // units from Start to shutdown; 0 while open
	Served           int64
	Rides            int64
	RetireViolations int64
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithRecorder sets the lifecycle event sink.
func WithRecorder(r Recorder) Option {
	return func(s *Simulation) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(s *Simulation) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithExploreFunc overrides how long passengers explore before each ride.
func WithExploreFunc(f func(passengerID, round int) time.Duration) Option {
	return func(s *Simulation) { s.explore = f }
}

// WithRideFunc overrides the ride duration per car.
func WithRideFunc(f func(carID int) time.Duration) Option {
	return func(s *Simulation) { s.ride = f }
}

// WithSeed seeds the exploring-time generator.
func WithSeed(seed int64) Option {
	return func(s *Simulation) { s.rng = rand.New(rand.NewSource(seed)) } //nolint:gosec // simulation timing only
}

// WithRunID sets the run identifier stamped on snapshots and the report.
func WithRunID(id uuid.UUID) Option {
	return func(s *Simulation) { s.runID = id }
}

// Simulation owns all shared park state and every task. Tasks receive a
// handle to it at creation; there is no package-level state.
type Simulation struct {
	started   atomic.Pointer[time.Time]
	shutdown  *Shutdown
	queue     *RideQueue
	booth     *TicketBooth
	gate      *LoadGate
	seq       *UnloadSequencer
	recorder  Recorder
	metrics   MetricsCollector
	explore   func(passengerID, round int) time.Duration
	ride      func(carID int) time.Duration
	rng       *rand.Rand
	running   map[string]struct{}
	cars      []*Car
	cfg       Config
	wg        sync.WaitGroup
	runningMu sync.Mutex
	rngMu     sync.Mutex
	runID     uuid.UUID
	isStarted atomic.Bool

	served           atomic.Int64
	rides            atomic.Int64
	retireViolations atomic.Int64
}

// New validates cfg and builds a simulation ready to Start.
//
// Returns:
//   - *Simulation on success
//   - an error wrapping every *ConfigurationError otherwise; no task is created
func New(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	shutdown := NewShutdown()
	s := &Simulation{
		cfg:      cfg,
		shutdown: shutdown,
		queue:    NewRideQueue(cfg.QueueCapacity, shutdown),
		booth:    NewTicketBooth(),
		gate:     NewLoadGate(),
		seq:      NewUnloadSequencer(shutdown),
		recorder: discardRecorder{},
		metrics:  noopMetrics{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // simulation timing only
		running:  make(map[string]struct{}),
		runID:    uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.markStarted()

	s.cars = make([]*Car, cfg.Cars)
	for i := range s.cars {
		s.cars[i] = newCar(i, s)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Simulation) Config() Config { return s.cfg }

// RunID returns the run identifier.
func (s *Simulation) RunID() uuid.UUID { return s.runID }

// Queue exposes the ride queue, mainly for inspection in tests.
func (s *Simulation) Queue() *RideQueue { return s.queue }

// Open reports whether the park is still open.
func (s *Simulation) Open() bool { return s.shutdown.Open() }

// Start launches every car task, then every passenger task.
func (s *Simulation) Start() error {
	if !s.isStarted.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.markStarted()

	for _, c := range s.cars {
		s.spawn(fmt.Sprintf("car-%d", c.ID), c.run)
	}
	for i := 0; i < s.cfg.Passengers; i++ {
		p := newPassenger(i, s)
		s.spawn(fmt.Sprintf("passenger-%d", p.ID), p.run)
	}
	return nil
}

// spawn runs fn as a tracked task. A panicking task is recorded as TaskFailed
// and ends on its own; it never takes the other tasks down.
func (s *Simulation) spawn(name string, fn func()) {
	s.runningMu.Lock()
	s.running[name] = struct{}{}
	s.runningMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.runningMu.Lock()
			delete(s.running, name)
			s.runningMu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				s.record(Event{Kind: TaskFailed, Err: fmt.Errorf("%s: %v", name, r)})
			}
		}()
		fn()
	}()
}

// Shutdown closes the park and wakes every blocked task.
func (s *Simulation) Shutdown() {
	s.shutdown.Trigger()
}

// Wait joins every task. It gives up after grace and reports the tasks that
// are still running; those can only be ended by terminating the process.
func (s *Simulation) Wait(grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		s.runningMu.Lock()
		tasks := make([]string, 0, len(s.running))
		for name := range s.running {
			tasks = append(tasks, name)
		}
		s.runningMu.Unlock()
		sort.Strings(tasks)
		return &StuckTasksError{Tasks: tasks, Grace: grace}
	}
}

// Run starts the simulation, broadcasts snapshots on the configured cadence
// for Duration units, then shuts down and joins every task.
//
// The tick runs in the caller's goroutine and only holds simulation locks
// long enough to copy state. publish may be nil.
//
// Returns the final report and, if some tasks did not drain in time, a
// *StuckTasksError.
func (s *Simulation) Run(ctx context.Context, publish func(Snapshot)) (Report, error) {
	if err := s.Start(); err != nil {
		return Report{}, err
	}

	ticker := time.NewTicker(s.cfg.Unit)
	every := s.cfg.BroadcastEvery

loop:
	for tick := 1; tick <= s.cfg.Duration; {
		select {
		case <-ticker.C:
			if tick%every == every-1 {
				snap := s.Snapshot()
				s.metrics.RecordValue(MetricRideQueueLength, float64(len(snap.RideQueue)), nil)
				if publish != nil && s.shutdown.Open() {
					publish(snap)
				}
			}
			tick++
		case <-ctx.Done():
			break loop
		}
	}
	ticker.Stop()

	s.Shutdown()
	err := s.Wait(s.cfg.GraceDuration())

	report := s.Report()
	var stuck *StuckTasksError
	if errors.As(err, &stuck) {
		report.Stuck = stuck.Tasks
	}
	return report, err
}

// Snapshot copies the current park composition.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		RunID:  s.runID.String(),
		Time:   int64(time.Since(s.startTime()) / s.cfg.Unit),
		Cars:   make([]CarSnapshot, len(s.cars)),
		Served: s.served.Load(),
		Rides:  s.rides.Load(),
	}
	snap.RideQueue = s.queue.IDsWith(func() { snap.TicketQueue = s.booth.IDs() })
	for i, c := range s.cars {
		v := c.View()
		snap.Cars[i] = CarSnapshot{ID: c.ID, Status: v.Status, Riders: v.Riders, Capacity: s.cfg.Capacity}
	}
	return snap
}

// Report returns the aggregate counters so far.
func (s *Simulation) Report() Report {
	var closedAt int64
	if at := s.shutdown.TriggeredAt(); !at.IsZero() {
		closedAt = int64(at.Sub(s.startTime()) / s.cfg.Unit)
	}
	return Report{
		ClosedAt:         closedAt,
		RunID:            s.runID,
		Elapsed:          time.Since(s.startTime()),
		Served:           s.served.Load(),
		Rides:            s.rides.Load(),
		RetireViolations: s.retireViolations.Load(),
	}
}

// markStarted resets the clock that snapshots, events and the report are
// measured from. Snapshot may read it concurrently from another goroutine.
func (s *Simulation) markStarted() {
	now := time.Now()
	s.started.Store(&now)
}

func (s *Simulation) startTime() time.Time {
	return *s.started.Load()
}

func (s *Simulation) record(e Event) {
	e.Elapsed = time.Since(s.startTime())
	s.recorder.Record(e)
}

func (s *Simulation) rideDuration(carID int) time.Duration {
	if s.ride != nil {
		return s.ride(carID)
	}
	return s.cfg.units(s.cfg.RideDuration)
}

// abandonAfter bounds a car's unload-turn wait once the park has closed. A
// car that departed just before shutdown is back within R and has had W to
// unload by then.
func (s *Simulation) abandonAfter() time.Duration {
	return s.cfg.units(s.cfg.RideDuration + s.cfg.MaxWait)
}
