package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"crmrt/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecordStore is the normalized CRUD access for one resource.
type RecordStore interface {
	Resource() domain.Resource
	List(ctx context.Context) ([]map[string]any, error)
	Get(ctx context.Context, id string) (map[string]any, error)
	Create(ctx context.Context, body map[string]any) (map[string]any, error)
	Update(ctx context.Context, id string, body map[string]any) (map[string]any, error)
	Delete(ctx context.Context, id string) error
}

type MutationPublisher interface {
	PublishMutation(ctx context.Context, event string, payload any)
}

// ResourceHandler serves one collection. Every successful write is
// broadcast exactly once: the persisted record on create and update, the id
// on delete.
type ResourceHandler struct {
	repo   RecordStore
	pub    MutationPublisher
	logger *zap.Logger
}

func NewResourceHandler(repo RecordStore, pub MutationPublisher, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{repo: repo, pub: pub, logger: logger.With(zap.String("resource", repo.Resource().Collection))}
}

// Collection is the route segment the handler is mounted under.
func (h *ResourceHandler) Collection() string {
	return h.repo.Resource().Collection
}

// Register mounts the collection routes on rg.
func (h *ResourceHandler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

func (h *ResourceHandler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "list failed")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ResourceHandler) Get(c *gin.Context) {
	rec, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "fetch failed")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *ResourceHandler) Create(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rec, err := h.repo.Create(ctx, body)
	if err != nil {
		writeError(c, h.logger, err, "create failed")
		return
	}
	h.pub.PublishMutation(ctx, h.repo.Resource().UpdatedEvent(), rec)
	c.JSON(http.StatusOK, rec)
}

func (h *ResourceHandler) Update(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rec, err := h.repo.Update(ctx, c.Param("id"), body)
	if err != nil {
		writeError(c, h.logger, err, "update failed")
		return
	}
	h.pub.PublishMutation(ctx, h.repo.Resource().UpdatedEvent(), rec)
	c.JSON(http.StatusOK, rec)
}

func (h *ResourceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	if err := h.repo.Delete(ctx, id); err != nil {
		writeError(c, h.logger, err, "delete failed")
		return
	}
	h.pub.PublishMutation(ctx, h.repo.Resource().DeletedEvent(), id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// bindBody reads a JSON object body. An empty body is an empty object.
func bindBody(c *gin.Context) (map[string]any, bool) {
	body := map[string]any{}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return nil, false
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, true
}
