package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"crmrt/internal/models"
	"crmrt/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
)

type fakeCalendar struct {
	err      error
	authURL  string
	inserted []models.CalendarEventInput
	deleted  []string
}

func (f *fakeCalendar) AuthURL() (string, error) { return f.authURL, f.err }

func (f *fakeCalendar) Exchange(_ context.Context, state, code string) error {
	if state != "good" {
		return service.ErrCalendarBadState
	}
	return f.err
}

func (f *fakeCalendar) List(context.Context) ([]*calendar.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*calendar.Event{{Id: "ev1", Summary: "Standup"}}, nil
}

func (f *fakeCalendar) Insert(_ context.Context, in models.CalendarEventInput) (*calendar.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, in)
	return &calendar.Event{Id: "ev2", Summary: in.Title}, nil
}

func (f *fakeCalendar) Patch(_ context.Context, id string, in models.CalendarEventInput) (*calendar.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &calendar.Event{Id: id, Summary: in.Title}, nil
}

func (f *fakeCalendar) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newCalendarRouter(cal CalendarAPI) (*gin.Engine, *recordingPublisher) {
	pub := &recordingPublisher{}
	h := NewCalendarHandler(cal, pub, zap.NewNop())
	r := gin.New()
	g := r.Group("/calendar")
	g.GET("/auth", h.Auth)
	g.GET("/redirect", h.Redirect)
	g.GET("/events", h.List)
	g.POST("/events", h.Create)
	g.PUT("/events/:id", h.Update)
	g.DELETE("/events/:id", h.Delete)
	return r, pub
}

func TestCalendarHandler_Events(t *testing.T) {
	cal := &fakeCalendar{}
	r, pub := newCalendarRouter(cal)

	w := do(r, http.MethodGet, "/calendar/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"summary":"Standup"`)

	w = do(r, http.MethodPost, "/calendar/events", `{"title":"Demo","start":"2024-05-01T10:00:00Z","end":"2024-05-01T11:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, cal.inserted, 1)
	assert.Equal(t, "Demo", cal.inserted[0].Title)

	w = do(r, http.MethodPut, "/calendar/events/ev1", `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/calendar/events/ev1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	msgs := pub.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "calendar-updated", msgs[0].Event)
	assert.Equal(t, "calendar-updated", msgs[1].Event)
	assert.Equal(t, published{"calendar-deleted", "ev1"}, msgs[2])
}

func TestCalendarHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrCalendarNotAuthorized, http.StatusUnauthorized},
		{fmt.Errorf("delete event: %w", service.ErrCalendarEventNotFound), http.StatusNotFound},
		{fmt.Errorf("list events: %w", context.DeadlineExceeded), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r, pub := newCalendarRouter(&fakeCalendar{err: tt.err})
			assert.Equal(t, tt.code, do(r, http.MethodGet, "/calendar/events", "").Code)
			assert.Equal(t, tt.code, do(r, http.MethodDelete, "/calendar/events/x", "").Code)
			assert.Empty(t, pub.Messages())
		})
	}
}

func TestCalendarHandler_OAuthFlow(t *testing.T) {
	r, _ := newCalendarRouter(&fakeCalendar{authURL: "https://accounts.google.com/o/oauth2/auth?state=good"})

	w := do(r, http.MethodGet, "/calendar/auth", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=good", w.Header().Get("Location"))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/calendar/redirect?state=good", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/calendar/redirect?state=bad&code=x", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/calendar/redirect?state=good&code=x", "").Code)

	r, _ = newCalendarRouter(&fakeCalendar{err: service.ErrCalendarNotConfigured})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/calendar/auth", "").Code)
}
