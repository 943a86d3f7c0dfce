package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"crmrt/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testInterval = 4 * time.Second
	testStale    = 12 * time.Second
)

func TestSweeper_EvictsStaleConnection(t *testing.T) {
	ctx := context.Background()
	tr, clock, ls, pub := newTestTracker()
	sw := NewSweeper(tr, testInterval, testStale, zap.NewNop(), nil)

	require.NoError(t, tr.Join(ctx, "c1", "alice"))

	clock.Advance(testStale)
	assert.Zero(t, sw.Sweep(ctx), "exactly at the threshold is not stale")
	assert.Equal(t, []string{"alice"}, pub.Last())

	clock.Advance(time.Second)
	evictedAt := clock.Now()
	assert.Equal(t, 1, sw.Sweep(ctx))
	assert.Empty(t, pub.Last())

	calls := ls.Calls()
	assert.Equal(t, touchCall{"alice", evictedAt}, calls[len(calls)-1])
}

func TestSweeper_HeartbeatKeepsConnectionAlive(t *testing.T) {
	ctx := context.Background()
	tr, clock, _, pub := newTestTracker()
	sw := NewSweeper(tr, testInterval, testStale, zap.NewNop(), nil)
	require.NoError(t, tr.Join(ctx, "c1", "alice"))

	for i := 0; i < 10; i++ {
		clock.Advance(testInterval)
		require.NoError(t, tr.Heartbeat(ctx, "c1", "alice"))
		sw.Sweep(ctx)
	}
	assert.Equal(t, []string{"alice"}, pub.Last())
}

func TestSweeper_EvictsOnlyTheStaleTab(t *testing.T) {
	ctx := context.Background()
	tr, clock, _, pub := newTestTracker()
	sw := NewSweeper(tr, testInterval, testStale, zap.NewNop(), nil)

	require.NoError(t, tr.Join(ctx, "c1", "alice"))
	clock.Advance(8 * time.Second)
	require.NoError(t, tr.Join(ctx, "c2", "alice"))
	clock.Advance(8 * time.Second)

	assert.Equal(t, 1, sw.Sweep(ctx))
	_, ok := tr.Lookup("c1")
	assert.False(t, ok)
	assert.Equal(t, []string{"alice"}, pub.Last())
}

func TestSweeper_RechecksAfterLastSeenWrite(t *testing.T) {
	ctx := context.Background()
	tr, clock, ls, _ := newTestTracker()
	sw := NewSweeper(tr, testInterval, testStale, zap.NewNop(), nil)
	require.NoError(t, tr.Join(ctx, "c1", "alice"))
	clock.Advance(testStale + time.Second)

	// A heartbeat lands while the sweeper is writing last-seen.
	var once bool
	ls.hook = func() {
		if once {
			return
		}
		once = true
		e, _ := tr.Lookup("c1")
		e.LastHeartbeat = clock.Now()
		tr.mu.Lock()
		tr.entries["c1"] = e
		tr.mu.Unlock()
	}

	assert.Zero(t, sw.Sweep(ctx))
	_, ok := tr.Lookup("c1")
	assert.True(t, ok)
}

func TestSweeper_EvictsEvenWhenLastSeenFails(t *testing.T) {
	ctx := context.Background()
	tr, clock, ls, pub := newTestTracker()
	sw := NewSweeper(tr, testInterval, testStale, zap.NewNop(), nil)
	require.NoError(t, tr.Join(ctx, "c1", "alice"))

	ls.err = errors.New("store down")
	clock.Advance(time.Minute)
	assert.Equal(t, 1, sw.Sweep(ctx))
	assert.Empty(t, pub.Last())
}

func TestSweeper_PublishesEveryCycle(t *testing.T) {
	ctx := context.Background()
	tr, _, _, pub := newTestTracker()
	sw := NewSweeper(tr, testInterval, testStale, zap.NewNop(), nil)

	sw.Sweep(ctx)
	sw.Sweep(ctx)
	assert.Equal(t, 2, pub.Count())
}

func TestSweeper_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	clock := newFakeClock()
	tr := NewTracker(&fakeLastSeen{}, &fakePublisher{}, WithClock(clock.Now), WithMetrics(m))
	sw := NewSweeper(tr, testInterval, testStale, zap.NewNop(), m)

	require.NoError(t, tr.Join(ctx, "c1", "alice"))
	require.NoError(t, tr.Join(ctx, "c2", "alice"))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Connections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Users))

	clock.Advance(time.Minute)
	sw.Sweep(ctx)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Evictions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Sweeps))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Connections))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	tr, _, _, _ := newTestTracker()
	sw := NewSweeper(tr, 10*time.Millisecond, testStale, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
