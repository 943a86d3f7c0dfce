package handler

import (
	"context"
	"net/http"

	"crmrt/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PresenceSnapshotter interface {
	Snapshot() []string
}

type LastSeenLister interface {
	List(ctx context.Context) ([]models.LastSeen, error)
}

// PresenceHandler exposes the same views the realtime channel pushes.
type PresenceHandler struct {
	tracker  PresenceSnapshotter
	lastSeen LastSeenLister
	logger   *zap.Logger
}

func NewPresenceHandler(tracker PresenceSnapshotter, lastSeen LastSeenLister, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, lastSeen: lastSeen, logger: logger}
}

func (h *PresenceHandler) Online(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

func (h *PresenceHandler) LastSeen(c *gin.Context) {
	list, err := h.lastSeen.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch last seen")
		return
	}
	if list == nil {
		list = []models.LastSeen{}
	}
	c.JSON(http.StatusOK, list)
}
