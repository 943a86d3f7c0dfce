package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crmrt/internal/metrics"
	"crmrt/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentEvent struct {
	Event string
	Data  any
}

type fakeFanout struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeFanout) BroadcastEvent(event string, data any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{event, data})
	return 1, nil
}

func (f *fakeFanout) Sent() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.sent...)
}

type fakeLister struct {
	records []models.LastSeen
	err     error
}

func (f fakeLister) List(context.Context) ([]models.LastSeen, error) { return f.records, f.err }

type fakePusher struct {
	got chan sentEvent
	err error
}

func (f *fakePusher) PushEvent(_ context.Context, event string, data any) error {
	f.got <- sentEvent{event, data}
	return f.err
}

func TestBroadcaster_PublishPresence(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fan := &fakeFanout{}
	m := metrics.New(prometheus.NewRegistry())
	b := NewBroadcaster(fan, fakeLister{records: []models.LastSeen{{Username: "alice", LastSeen: at}}}, nil, zap.NewNop(), m)

	b.PublishPresence(context.Background(), []string{"alice"})

	sent := fan.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "online-users", sent[0].Event)
	assert.Equal(t, []string{"alice"}, sent[0].Data)
	assert.Equal(t, "last-seen-users", sent[1].Event)
	assert.Equal(t, []models.LastSeen{{Username: "alice", LastSeen: at}}, sent[1].Data)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Broadcasts.WithLabelValues("online-users")))
}

func TestBroadcaster_PublishPresenceEmptyAndFailingStore(t *testing.T) {
	fan := &fakeFanout{}
	b := NewBroadcaster(fan, fakeLister{err: errors.New("down")}, nil, zap.NewNop(), nil)

	b.PublishPresence(context.Background(), nil)

	sent := fan.Sent()
	require.Len(t, sent, 1, "online users still go out when last seen cannot be read")
	assert.Equal(t, []string{}, sent[0].Data)
}

func TestBroadcaster_PublishMutationMirrors(t *testing.T) {
	fan := &fakeFanout{}
	push := &fakePusher{got: make(chan sentEvent, 1), err: errors.New("fcm down")}
	b := NewBroadcaster(fan, fakeLister{}, push, zap.NewNop(), nil)

	payload := map[string]any{"id": "abc", "name": "Acme"}
	b.PublishMutation(context.Background(), "client-updated", payload)

	require.Len(t, fan.Sent(), 1)
	assert.Equal(t, sentEvent{"client-updated", payload}, fan.Sent()[0])
	select {
	case got := <-push.got:
		assert.Equal(t, "client-updated", got.Event)
	case <-time.After(time.Second):
		t.Fatal("push mirror not called")
	}
}
