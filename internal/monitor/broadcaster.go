package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/dreamware/ridepark/internal/park"
)

var json = jsoniter.ConfigFastest

var (
	// ErrChannelFull means the frame buffer was full and the snapshot was dropped.
	ErrChannelFull = errors.New("monitor channel full")
	// ErrChannelClosed means the monitor end went away and the snapshot was dropped.
	ErrChannelClosed = errors.New("monitor channel closed")
)

// ChannelError reports a dropped snapshot. It is never fatal to the simulation.
type ChannelError struct {
	Err  error // ErrChannelFull or ErrChannelClosed
	Time int64 // snapshot time, in units
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("snapshot at time %d dropped: %v", e.Time, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Stats counts broadcaster activity.
type Stats struct {
	Published int64 `json:"published"`
	Written   int64 `json:"written"`
	Dropped   int64 `json:"dropped"`
}

// Broadcaster forwards snapshots to a monitor as newline-delimited JSON.
// Publish never blocks the caller: frames go through a bounded buffer drained
// by a single writer goroutine, and anything that does not fit is dropped.
//
// Thread-safe: Publish may be called from any goroutine.
type Broadcaster struct {
	w       io.Writer
	frames  chan park.Snapshot
	metrics park.MetricsCollector
	cancel  context.CancelFunc
	latest  atomic.Pointer[park.Snapshot]
	wg      sync.WaitGroup
	closed  atomic.Bool

	published atomic.Int64
	written   atomic.Int64
	dropped   atomic.Int64
}

// NewBroadcaster creates a broadcaster writing to w with room for buffer
// pending frames. metrics may be nil.
func NewBroadcaster(w io.Writer, buffer int, metrics park.MetricsCollector) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		w:       w,
		frames:  make(chan park.Snapshot, buffer),
		metrics: metrics,
	}
}

// Publish queues a snapshot for the monitor.
//
// Returns:
//   - nil if the frame was queued
//   - a *ChannelError wrapping ErrChannelFull or ErrChannelClosed otherwise
func (b *Broadcaster) Publish(s park.Snapshot) error {
	b.published.Add(1)
	b.latest.Store(&s)

	if b.closed.Load() {
		return b.drop(s, ErrChannelClosed)
	}
	select {
	case b.frames <- s:
		return nil
	default:
		return b.drop(s, ErrChannelFull)
	}
}

func (b *Broadcaster) drop(s park.Snapshot, err error) error {
	b.dropped.Add(1)
	if b.metrics != nil {
		b.metrics.IncrementCounter(park.MetricSnapshotsDropped, map[string]string{"reason": reason(err)})
	}
	return &ChannelError{Time: s.Time, Err: err}
}

func reason(err error) string {
	if errors.Is(err, ErrChannelClosed) {
		return "closed"
	}
	return "full"
}

// Latest returns the most recently published snapshot, if any.
func (b *Broadcaster) Latest() (park.Snapshot, bool) {
	s := b.latest.Load()
	if s == nil {
		return park.Snapshot{}, false
	}
	return *s, true
}

// Start launches the writer goroutine. It runs until ctx is canceled or Stop
// is called; frames still buffered at that point are flushed.
func (b *Broadcaster) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		enc := json.NewEncoder(b.w)

		for {
			select {
			case s := <-b.frames:
				b.write(enc, s)
			case <-ctx.Done():
				b.flush(enc)
				return
			}
		}
	}()
}

func (b *Broadcaster) flush(enc *jsoniter.Encoder) {
	for {
		select {
		case s := <-b.frames:
			b.write(enc, s)
		default:
			return
		}
	}
}

func (b *Broadcaster) write(enc *jsoniter.Encoder, s park.Snapshot) {
	if b.closed.Load() {
		_ = b.drop(s, ErrChannelClosed)
		return
	}
	if err := enc.Encode(s); err != nil {
		b.closed.Store(true)
		log.Printf("Monitor channel closed: %v", err)
		_ = b.drop(s, ErrChannelClosed)
		return
	}
	b.written.Add(1)
}

// Stop stops the writer goroutine after flushing buffered frames, and waits
// for it to exit. Later publishes are dropped with ErrChannelClosed.
func (b *Broadcaster) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.closed.Store(true)
}

// Stats returns the broadcaster counters.
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Written:   b.written.Load(),
		Dropped:   b.dropped.Load(),
	}
}
