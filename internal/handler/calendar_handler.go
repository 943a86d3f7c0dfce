package handler

import (
	"context"
	"net/http"

	"crmrt/internal/domain"
	"crmrt/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
)

type CalendarAPI interface {
	AuthURL() (string, error)
	Exchange(ctx context.Context, state, code string) error
	List(ctx context.Context) ([]*calendar.Event, error)
	Insert(ctx context.Context, in models.CalendarEventInput) (*calendar.Event, error)
	Patch(ctx context.Context, id string, in models.CalendarEventInput) (*calendar.Event, error)
	Delete(ctx context.Context, id string) error
}

type CalendarHandler struct {
	cal    CalendarAPI
	pub    MutationPublisher
	logger *zap.Logger
}

func NewCalendarHandler(cal CalendarAPI, pub MutationPublisher, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{cal: cal, pub: pub, logger: logger}
}

// Auth redirects to the Google consent screen.
func (h *CalendarHandler) Auth(c *gin.Context) {
	url, err := h.cal.AuthURL()
	if err != nil {
		writeError(c, h.logger, err, "calendar auth failed")
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Redirect is the OAuth callback.
func (h *CalendarHandler) Redirect(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	if err := h.cal.Exchange(c.Request.Context(), c.Query("state"), code); err != nil {
		writeError(c, h.logger, err, "calendar authorization failed")
		return
	}
	h.logger.Info("calendar authorized via oauth")
	c.JSON(http.StatusOK, gin.H{"ok": true, "msg": "Google Calendar connected"})
}

func (h *CalendarHandler) List(c *gin.Context) {
	events, err := h.cal.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch events")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *CalendarHandler) Create(c *gin.Context) {
	var in models.CalendarEventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	ctx := c.Request.Context()
	ev, err := h.cal.Insert(ctx, in)
	if err != nil {
		writeError(c, h.logger, err, "failed to create event")
		return
	}
	h.pub.PublishMutation(ctx, domain.EventCalendarUpdated, ev)
	c.JSON(http.StatusOK, ev)
}

func (h *CalendarHandler) Update(c *gin.Context) {
	var in models.CalendarEventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	ctx := c.Request.Context()
	ev, err := h.cal.Patch(ctx, c.Param("id"), in)
	if err != nil {
		writeError(c, h.logger, err, "failed to update event")
		return
	}
	h.pub.PublishMutation(ctx, domain.EventCalendarUpdated, ev)
	c.JSON(http.StatusOK, ev)
}

func (h *CalendarHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	if err := h.cal.Delete(ctx, id); err != nil {
		writeError(c, h.logger, err, "failed to delete event")
		return
	}
	h.pub.PublishMutation(ctx, domain.EventCalendarDeleted, id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
