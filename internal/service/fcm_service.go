package service

import (
	"context"
	"encoding/json"
	"fmt"

	"crmrt/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCM rejects data payloads over 4KB; larger events are sent without the
// payload and clients refetch.
const maxPushPayload = 3 << 10

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMService mirrors mutation events to a Firebase Cloud Messaging topic.
type FCMService struct {
	client messageSender
	topic  string
	logger *zap.Logger
}

// NewFCMService returns nil when Firebase is not configured or fails to
// initialise; the mirror is optional.
func NewFCMService(ctx context.Context, cfg config.FirebaseConfig, logger *zap.Logger) *FCMService {
	if cfg.ServiceAccountPath == "" || cfg.EventsTopic == "" {
		return nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.ServiceAccountPath))
	if err != nil {
		logger.Warn("firebase app", zap.Error(err))
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Warn("firebase messaging client", zap.Error(err))
		return nil
	}
	return &FCMService{client: client, topic: cfg.EventsTopic, logger: logger}
}

// PushEvent sends a silent, data-only message to the events topic.
func (s *FCMService) PushEvent(ctx context.Context, event string, data any) error {
	if s == nil {
		return nil
	}
	payload, err := eventData(event, data)
	if err != nil {
		return err
	}
	msg := &messaging.Message{
		Data:  payload,
		Topic: s.topic,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "5",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
				},
			},
		},
	}
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send %s: %w", event, err)
	}
	s.logger.Debug("pushed", zap.String("event", event), zap.String("message_id", id))
	return nil
}

// eventData flattens an event into FCM's string-only data map.
func eventData(event string, data any) (map[string]string, error) {
	out := map[string]string{"event": event}
	switch v := data.(type) {
	case string:
		out["id"] = v
		return out, nil
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			out["id"] = id
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode push %s: %w", event, err)
	}
	if len(b) <= maxPushPayload {
		out["payload"] = string(b)
	}
	return out, nil
}
