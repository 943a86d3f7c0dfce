package router

import (
	"crmrt/config"
	"crmrt/internal/handler"
	"crmrt/internal/logging"
	"crmrt/internal/middleware"
	"crmrt/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps carries everything the route table needs.
type Deps struct {
	Resources []*handler.ResourceHandler
	Calendar  *handler.CalendarHandler
	Presence  *handler.PresenceHandler
	Health    *handler.HealthHandler
	Realtime  ws.Dispatcher
	Hub       *ws.Hub
	Limiter   *middleware.InMemoryRateLimiter
	Gatherer  prometheus.Gatherer
}

func Setup(cfg *config.Config, logger *zap.Logger, d Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger(logger.Named("http")))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	r.GET("/", d.Health.Root)
	r.GET("/health", d.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/ws", ws.Upgrade(d.Hub, d.Realtime, cfg.Server.CORSOrigins, logger.Named("ws")))

	api := r.Group("")
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter))
	}
	for _, h := range d.Resources {
		h.Register(api.Group("/" + h.Collection()))
	}

	presence := api.Group("/presence")
	{
		presence.GET("/online", d.Presence.Online)
		presence.GET("/last-seen", d.Presence.LastSeen)
	}

	cal := api.Group("/calendar")
	{
		cal.GET("/auth", d.Calendar.Auth)
		cal.GET("/redirect", d.Calendar.Redirect)
		cal.GET("/events", d.Calendar.List)
		cal.POST("/events", d.Calendar.Create)
		cal.PUT("/events/:id", d.Calendar.Update)
		cal.DELETE("/events/:id", d.Calendar.Delete)
	}
	return r
}
