package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/infrastructure/redis"
	"github.com/yourorg/parcfleet/internal/observability/metrics"
	"github.com/yourorg/parcfleet/pkg/cache"
)

// StatsWorker periodically recomputes every tenant's dashboard counters and
// refreshes both cache layers, so dashboards mostly read warm data.
type StatsWorker struct {
	stats    domain.StatsRepository
	cache    *cache.Cache
	redis    *redis.Client
	logger   *slog.Logger
	interval time.Duration
	cacheTTL time.Duration
}

// NewStatsWorker creates a new stats warmer. redisClient may be nil; the
// worker then only warms the in-process cache.
func NewStatsWorker(stats domain.StatsRepository, statsCache *cache.Cache, redisClient *redis.Client, logger *slog.Logger, interval, cacheTTL time.Duration) *StatsWorker {
	return &StatsWorker{
		stats:    stats,
		cache:    statsCache,
		redis:    redisClient,
		logger:   logger,
		interval: interval,
		cacheTTL: cacheTTL,
	}
}

// Start begins the warm loop. It runs until ctx is cancelled.
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-ticker.C:
			w.warmAllTenants(ctx)
		}
	}
}

func (w *StatsWorker) warmAllTenants(ctx context.Context) {
	tenantIDs, err := w.stats.ListTenantIDs(ctx)
	if err != nil {
		w.logger.Error("failed to list tenants for stats warm", slog.String("error", err.Error()))
		metrics.ObserveStatsWarm("error")
		return
	}

	failed := 0
	for _, tenantID := range tenantIDs {
		if err := w.warmTenant(ctx, tenantID); err != nil {
			failed++
			w.logger.Warn("stats warm failed for tenant",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return
		}
	}

	if failed > 0 {
		metrics.ObserveStatsWarm("partial")
		return
	}
	metrics.ObserveStatsWarm("success")
}

func (w *StatsWorker) warmTenant(ctx context.Context, tenantID string) error {
	stats, err := w.stats.DashboardStats(ctx, tenantID)
	if err != nil {
		return err
	}

	// The warm TTL outlives one interval so entries never expire between runs.
	ttl := w.cacheTTL
	if ttl < 2*w.interval {
		ttl = 2 * w.interval
	}
	w.cache.Set("stats:"+tenantID, stats, ttl)

	if w.redis != nil {
		payload, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		if err := w.redis.SetStats(ctx, tenantID, payload, ttl); err != nil {
			return err
		}
	}
	return nil
}
