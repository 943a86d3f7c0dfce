package handler

import (
	"context"
	"strings"

	"crmrt/internal/domain"
	"crmrt/internal/ws"

	"go.uber.org/zap"
)

type PresenceTracker interface {
	Join(ctx context.Context, connID, username string) error
	Heartbeat(ctx context.Context, connID, username string) error
	Disconnect(ctx context.Context, connID string) error
	ForceDisconnect(ctx context.Context, username string) (int, error)
}

// RealtimeHandler dispatches inbound websocket events. Every event runs
// inside a recover boundary; failures are logged and never reach the
// connection or the process.
type RealtimeHandler struct {
	tracker PresenceTracker
	pub     MutationPublisher
	logger  *zap.Logger
}

func NewRealtimeHandler(tracker PresenceTracker, pub MutationPublisher, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{tracker: tracker, pub: pub, logger: logger}
}

func (h *RealtimeHandler) Handle(ctx context.Context, connID string, env ws.Envelope) {
	log := h.logger.With(zap.String("conn_id", connID), zap.String("event", env.Event))
	defer h.recoverEvent(log)

	switch env.Event {
	case domain.EventJoin, domain.EventHeartbeat, domain.EventForceDisconnect:
		username, err := env.Text()
		if err != nil || strings.TrimSpace(username) == "" {
			log.Debug("dropped event without user identity", zap.Error(err))
			return
		}
		h.presence(ctx, log, connID, env.Event, username)
	default:
		if !domain.IsRelayEvent(env.Event) {
			log.Debug("dropped unknown event")
			return
		}
		h.pub.PublishMutation(ctx, env.Event, env.Data)
	}
}

func (h *RealtimeHandler) presence(ctx context.Context, log *zap.Logger, connID, event, username string) {
	var err error
	switch event {
	case domain.EventJoin:
		err = h.tracker.Join(ctx, connID, username)
		log.Debug("join", zap.String("username", username))
	case domain.EventHeartbeat:
		err = h.tracker.Heartbeat(ctx, connID, username)
	case domain.EventForceDisconnect:
		var n int
		n, err = h.tracker.ForceDisconnect(ctx, username)
		log.Info("force disconnect", zap.String("username", username), zap.Int("connections", n))
	}
	if err != nil {
		log.Warn("presence update", zap.Error(err))
	}
}

func (h *RealtimeHandler) Disconnected(ctx context.Context, connID string) {
	log := h.logger.With(zap.String("conn_id", connID), zap.String("event", "disconnect"))
	defer h.recoverEvent(log)
	if err := h.tracker.Disconnect(ctx, connID); err != nil {
		log.Warn("presence update", zap.Error(err))
	}
}

func (h *RealtimeHandler) recoverEvent(log *zap.Logger) {
	if r := recover(); r != nil {
		log.Error("realtime handler panic", zap.Any("panic", r), zap.Stack("stack"))
	}
}
