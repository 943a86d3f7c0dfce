package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"crmrt/config"
	"crmrt/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	ErrCalendarNotAuthorized = errors.New("calendar not authorized, connect Google first")
	ErrCalendarNotConfigured = errors.New("google oauth not configured")
	ErrCalendarEventNotFound = errors.New("calendar event not found")
	ErrCalendarBadState      = errors.New("unknown oauth state")
)

const (
	calendarListMax = 200
	stateTTL        = 10 * time.Minute
)

// calendarListFrom is the lower bound of GET /calendar/events.
var calendarListFrom = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// CalendarService mirrors events with one Google calendar. It is authorized
// either by a service account at startup or by the OAuth user flow, whose
// token lives in memory only.
type CalendarService struct {
	calendarID string
	oauth      *oauth2.Config
	logger     *zap.Logger

	mu      sync.RWMutex
	svc     *calendar.Service
	pending map[string]time.Time
}

func NewCalendarService(ctx context.Context, cfg config.CalendarConfig, logger *zap.Logger) *CalendarService {
	s := &CalendarService{
		calendarID: cfg.CalendarID,
		logger:     logger,
		pending:    make(map[string]time.Time),
	}
	if cfg.ClientID != "" {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		}
	}
	if cfg.ServiceAccountPath != "" {
		err := s.Authorize(ctx,
			option.WithCredentialsFile(cfg.ServiceAccountPath),
			option.WithScopes(calendar.CalendarScope))
		if err != nil {
			logger.Warn("calendar service account", zap.String("path", cfg.ServiceAccountPath), zap.Error(err))
		} else {
			logger.Info("calendar authorized with service account", zap.String("path", cfg.ServiceAccountPath))
		}
	}
	return s
}

// Authorize builds the API client from opts, replacing any previous one.
func (s *CalendarService) Authorize(ctx context.Context, opts ...option.ClientOption) error {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("calendar client: %w", err)
	}
	s.mu.Lock()
	s.svc = svc
	s.mu.Unlock()
	return nil
}

func (s *CalendarService) Authorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.svc != nil
}

// AuthURL starts the OAuth flow and returns the consent URL.
func (s *CalendarService) AuthURL() (string, error) {
	if s.oauth == nil {
		return "", ErrCalendarNotConfigured
	}
	state := uuid.NewString()
	now := time.Now()
	s.mu.Lock()
	for st, at := range s.pending {
		if now.Sub(at) > stateTTL {
			delete(s.pending, st)
		}
	}
	s.pending[state] = now
	s.mu.Unlock()
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange completes the OAuth flow started by AuthURL.
func (s *CalendarService) Exchange(ctx context.Context, state, code string) error {
	if s.oauth == nil {
		return ErrCalendarNotConfigured
	}
	s.mu.Lock()
	at, ok := s.pending[state]
	delete(s.pending, state)
	s.mu.Unlock()
	if !ok || time.Since(at) > stateTTL {
		return ErrCalendarBadState
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("oauth exchange: %w", err)
	}
	return s.Authorize(ctx, option.WithTokenSource(s.oauth.TokenSource(context.Background(), tok)))
}

func (s *CalendarService) client() (*calendar.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.svc == nil {
		return nil, ErrCalendarNotAuthorized
	}
	return s.svc, nil
}

// List returns single events ordered by start time.
func (s *CalendarService) List(ctx context.Context) ([]*calendar.Event, error) {
	svc, err := s.client()
	if err != nil {
		return nil, err
	}
	resp, err := svc.Events.List(s.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(calendarListMax).
		TimeMin(calendarListFrom.Format(time.RFC3339)).
		Context(ctx).Do()
	if err != nil {
		return nil, mapCalendarErr("list events", err)
	}
	if resp.Items == nil {
		return []*calendar.Event{}, nil
	}
	return resp.Items, nil
}

func (s *CalendarService) Insert(ctx context.Context, in models.CalendarEventInput) (*calendar.Event, error) {
	svc, err := s.client()
	if err != nil {
		return nil, err
	}
	ev, err := svc.Events.Insert(s.calendarID, toEvent(in)).Context(ctx).Do()
	if err != nil {
		return nil, mapCalendarErr("insert event", err)
	}
	return ev, nil
}

// Patch updates only the fields carried by in; description is always sent.
func (s *CalendarService) Patch(ctx context.Context, id string, in models.CalendarEventInput) (*calendar.Event, error) {
	svc, err := s.client()
	if err != nil {
		return nil, err
	}
	ev, err := svc.Events.Patch(s.calendarID, id, toEvent(in)).Context(ctx).Do()
	if err != nil {
		return nil, mapCalendarErr("patch event", err)
	}
	return ev, nil
}

func (s *CalendarService) Delete(ctx context.Context, id string) error {
	svc, err := s.client()
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(s.calendarID, id).Context(ctx).Do(); err != nil {
		return mapCalendarErr("delete event", err)
	}
	return nil
}

func toEvent(in models.CalendarEventInput) *calendar.Event {
	ev := &calendar.Event{
		Summary:         in.Title,
		Description:     in.Description,
		ForceSendFields: []string{"Description"},
	}
	if in.Start != "" {
		ev.Start = &calendar.EventDateTime{DateTime: in.Start}
	}
	if in.End != "" {
		ev.End = &calendar.EventDateTime{DateTime: in.End}
	}
	return ev
}

func mapCalendarErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", op, ErrCalendarEventNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, ErrCalendarNotAuthorized)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
