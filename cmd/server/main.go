package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crmrt/config"
	"crmrt/internal/database"
	"crmrt/internal/domain"
	"crmrt/internal/handler"
	"crmrt/internal/logging"
	"crmrt/internal/metrics"
	"crmrt/internal/middleware"
	"crmrt/internal/presence"
	"crmrt/internal/repository"
	"crmrt/internal/router"
	"crmrt/internal/service"
	"crmrt/internal/store"
	"crmrt/internal/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	lastSeen, closeLastSeen, err := openLastSeen(ctx, cfg, st)
	if err != nil {
		logger.Fatal("last seen store", zap.String("backend", cfg.LastSeen.Backend), zap.Error(err))
	}
	logger.Info("stores ready",
		zap.String("store", cfg.Store.Backend),
		zap.String("last_seen", cfg.LastSeen.Backend))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := ws.NewHub()
	var pusher service.Pusher
	if fcm := service.NewFCMService(ctx, cfg.Firebase, logger.Named("fcm")); fcm != nil {
		pusher = fcm
		logger.Info("push mirror enabled", zap.String("topic", cfg.Firebase.EventsTopic))
	}
	broadcaster := service.NewBroadcaster(hub, lastSeen, pusher, logger.Named("broadcast"), m)

	tracker := presence.NewTracker(lastSeen, broadcaster, presence.WithMetrics(m))
	sweeper := presence.NewSweeper(tracker, cfg.Presence.SweepInterval, cfg.Presence.StaleAfter, logger.Named("sweeper"), m)
	go sweeper.Run(ctx)

	calendar := service.NewCalendarService(ctx, cfg.Calendar, logger.Named("calendar"))

	var resources []*handler.ResourceHandler
	for _, res := range domain.Resources() {
		repo := repository.NewRecordRepository(st, res)
		resources = append(resources, handler.NewResourceHandler(repo, broadcaster, logger.Named("api")))
	}
	limiter := middleware.NewInMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)

	engine := router.Setup(cfg, logger, router.Deps{
		Resources: resources,
		Calendar:  handler.NewCalendarHandler(calendar, broadcaster, logger.Named("calendar")),
		Presence:  handler.NewPresenceHandler(tracker, lastSeen, logger.Named("presence")),
		Health:    handler.NewHealthHandler(st, logger),
		Realtime:  handler.NewRealtimeHandler(tracker, broadcaster, logger.Named("realtime")),
		Hub:       hub,
		Limiter:   limiter,
		Gatherer:  reg,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	stop()
	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	limiter.Stop()
	closeLastSeen()
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreMongo:
		db, err := database.NewMongo(ctx, &cfg.Store)
		if err != nil {
			return nil, err
		}
		return store.NewMongoStore(db), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// openLastSeen returns the configured last-seen backend and its cleanup.
func openLastSeen(ctx context.Context, cfg *config.Config, st store.Store) (repository.LastSeenStore, func(), error) {
	switch cfg.LastSeen.Backend {
	case config.LastSeenDocument:
		return repository.NewDocumentLastSeenRepository(st, cfg.LastSeen.Collection), func() {}, nil
	case config.LastSeenMySQL:
		db, err := database.NewDB(&cfg.LastSeen)
		if err != nil {
			return nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repository.NewGormLastSeenRepository(db), closeDB, nil
	case config.LastSeenRedis:
		client, err := database.NewRedis(ctx, &cfg.LastSeen)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisLastSeenRepository(client, cfg.LastSeen.RedisKey), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown last seen backend %q", cfg.LastSeen.Backend)
}
