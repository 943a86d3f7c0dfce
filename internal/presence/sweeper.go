package presence

import (
	"context"
	"time"

	"crmrt/internal/metrics"

	"go.uber.org/zap"
)

// Sweeper evicts connections whose heartbeat went stale. A dead connection
// leaves the snapshot at most staleAfter+interval after its last heartbeat.
type Sweeper struct {
	tracker    *Tracker
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewSweeper(tracker *Tracker, interval, staleAfter time.Duration, logger *zap.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		tracker:    tracker,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		metrics:    m,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("stale_after", s.staleAfter))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle and returns the number of evicted connections. The
// stale set is taken once at the start; connections joining during the
// cycle are considered next time. A snapshot is published every cycle.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.tracker.now()
	evicted := 0
	for _, e := range s.tracker.stale(now, s.staleAfter) {
		if err := s.tracker.touch(ctx, e.Username, now); err != nil {
			s.logger.Warn("last seen on eviction", zap.String("conn_id", e.ConnID), zap.Error(err))
		}
		if s.tracker.evictIfStale(e.ConnID, s.staleAfter) {
			evicted++
			s.logger.Debug("evicted stale connection",
				zap.String("conn_id", e.ConnID),
				zap.String("username", e.Username),
				zap.Time("last_heartbeat", e.LastHeartbeat))
		}
	}
	s.metrics.Evicted(evicted)
	s.metrics.Swept()
	s.tracker.publish(ctx)
	return evicted
}
