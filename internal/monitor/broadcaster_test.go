package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ridepark/internal/park"
)

// syncBuffer is a bytes.Buffer safe for the writer goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// blockingWriter blocks every write until release is closed.
type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// countingMetrics records counter increments by metric and reason.
type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) RecordDuration(string, time.Duration, map[string]string) {}
func (m *countingMetrics) RecordValue(string, float64, map[string]string)          {}
func (m *countingMetrics) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[metric+"/"+labels["reason"]]++
}

func (m *countingMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func snapshotAt(tm int64) park.Snapshot {
	return park.Snapshot{
		RunID:       "run",
		Time:        tm,
		TicketQueue: []int{1},
		RideQueue:   []int{2, 3},
		Cars:        []park.CarSnapshot{{ID: 0, Status: park.StatusLoading, Riders: 1, Capacity: 2}},
		Served:      4,
		Rides:       2,
	}
}

func TestBroadcasterWritesNewlineDelimitedJSON(t *testing.T) {
	out := &syncBuffer{}
	b := NewBroadcaster(out, 4, nil)
	b.Start(context.Background())

	require.NoError(t, b.Publish(snapshotAt(4)))
	require.NoError(t, b.Publish(snapshotAt(9)))
	b.Stop()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var got park.Snapshot
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, snapshotAt(9), got)
	assert.Contains(t, lines[0], `"ride_queue":[2,3]`)

	assert.Equal(t, Stats{Published: 2, Written: 2}, b.Stats())
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	metrics := &countingMetrics{}
	b := NewBroadcaster(w, 1, metrics)
	b.Start(context.Background())

	// The writer goroutine takes the first frame and blocks writing it; the
	// second fills the buffer.
	require.NoError(t, b.Publish(snapshotAt(1)))
	require.Eventually(t, func() bool { return len(b.frames) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, b.Publish(snapshotAt(2)))

	start := time.Now()
	err := b.Publish(snapshotAt(3))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publish never blocks")

	var cerr *ChannelError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, ErrChannelFull)
	assert.Equal(t, int64(3), cerr.Time)
	assert.Equal(t, 1, metrics.get(park.MetricSnapshotsDropped+"/full"))

	close(w.release)
	b.Stop()
	assert.Equal(t, Stats{Published: 3, Written: 2, Dropped: 1}, b.Stats())
}

func TestBroadcasterClosedChannel(t *testing.T) {
	metrics := &countingMetrics{}
	b := NewBroadcaster(failingWriter{}, 2, metrics)
	b.Start(context.Background())

	require.NoError(t, b.Publish(snapshotAt(4)))
	require.Eventually(t, func() bool { return b.Stats().Dropped == 1 }, time.Second, time.Millisecond)

	err := b.Publish(snapshotAt(9))
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.Contains(t, err.Error(), "snapshot at time 9 dropped")
	assert.Equal(t, 2, metrics.get(park.MetricSnapshotsDropped+"/closed"))

	b.Stop()
}

func TestBroadcasterPublishAfterStop(t *testing.T) {
	b := NewBroadcaster(&syncBuffer{}, 2, nil)
	b.Start(context.Background())
	b.Stop()

	assert.ErrorIs(t, b.Publish(snapshotAt(1)), ErrChannelClosed)
}

func TestBroadcasterLatest(t *testing.T) {
	b := NewBroadcaster(&syncBuffer{}, 1, nil)

	_, ok := b.Latest()
	assert.False(t, ok)

	_ = b.Publish(snapshotAt(4))
	_ = b.Publish(snapshotAt(9))

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(9), latest.Time, "latest is kept even for dropped frames")
}
