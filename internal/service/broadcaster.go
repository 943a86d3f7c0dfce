package service

import (
	"context"
	"time"

	"crmrt/internal/domain"
	"crmrt/internal/metrics"
	"crmrt/internal/models"

	"go.uber.org/zap"
)

const pushTimeout = 10 * time.Second

// Fanout delivers one named message to every connected client.
type Fanout interface {
	BroadcastEvent(event string, data any) (int, error)
}

type LastSeenLister interface {
	List(ctx context.Context) ([]models.LastSeen, error)
}

// Pusher mirrors mutation events to an out-of-band channel.
type Pusher interface {
	PushEvent(ctx context.Context, event string, data any) error
}

// Broadcaster is the best-effort fan-out used by presence and every write
// handler. Failures are logged and never reported to the caller.
type Broadcaster struct {
	fanout   Fanout
	lastSeen LastSeenLister
	push     Pusher
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewBroadcaster wires the fan-out. push may be nil.
func NewBroadcaster(fanout Fanout, lastSeen LastSeenLister, push Pusher, logger *zap.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{fanout: fanout, lastSeen: lastSeen, push: push, logger: logger, metrics: m}
}

// PublishPresence sends the online snapshot and the full last-seen table.
func (b *Broadcaster) PublishPresence(ctx context.Context, online []string) {
	if online == nil {
		online = []string{}
	}
	b.emit(domain.EventOnlineUsers, online)

	records, err := b.lastSeen.List(ctx)
	if err != nil {
		b.logger.Warn("list last seen", zap.Error(err))
		return
	}
	if records == nil {
		records = []models.LastSeen{}
	}
	b.emit(domain.EventLastSeenUsers, records)
}

// PublishMutation sends a write notification to every client and, when a
// pusher is configured, mirrors it in the background.
func (b *Broadcaster) PublishMutation(ctx context.Context, event string, payload any) {
	b.emit(event, payload)
	if b.push == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := b.push.PushEvent(ctx, event, payload); err != nil {
			b.logger.Warn("push mirror", zap.String("event", event), zap.Error(err))
		}
	}()
}

func (b *Broadcaster) emit(event string, data any) {
	n, err := b.fanout.BroadcastEvent(event, data)
	if err != nil {
		b.logger.Error("broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	b.metrics.Broadcast(event)
	b.logger.Debug("broadcast", zap.String("event", event), zap.Int("clients", n))
}
