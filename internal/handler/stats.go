package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/infrastructure/redis"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/pkg/cache"
)

// StatsHandler serves the tenant dashboard counters. Reads go through two
// cache layers before the database: the in-process TTL cache, then the shared
// Redis cache warmed by the background worker.
type StatsHandler struct {
	stats    domain.StatsRepository
	cache    *cache.Cache
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewStatsHandler creates a new dashboard stats handler. redisClient may be
// nil; the handler then runs on the in-process cache alone.
func NewStatsHandler(stats domain.StatsRepository, statsCache *cache.Cache, redisClient *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:    stats,
		cache:    statsCache,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ServeHTTP handles GET /api/dashboard/stats requests. Any authenticated user
// of the tenant may read its counters; no resource permission is required.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	if !session.IsLoggedIn {
		writeMessage(w, http.StatusUnauthorized, "Non authentifié, veuillez vous connecter")
		return
	}

	stats, err := h.tenantStats(r.Context(), session.Tenant.ID)
	if err != nil {
		writeError(w, h.logger, err, ErrorMessages{Internal: "Erreur lors de la récupération des statistiques"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) tenantStats(ctx context.Context, tenantID string) (*domain.DashboardStats, error) {
	key := "stats:" + tenantID
	if cached, ok := h.cache.Get(key); ok {
		if stats, ok := cached.(*domain.DashboardStats); ok {
			return stats, nil
		}
	}

	if h.redis != nil {
		payload, err := h.redis.GetStats(ctx, tenantID)
		if err != nil {
			h.logger.Warn("redis stats lookup failed", slog.String("error", err.Error()))
		} else if payload != nil {
			stats := &domain.DashboardStats{}
			if err := json.Unmarshal(payload, stats); err == nil {
				h.cache.Set(key, stats, h.cacheTTL)
				return stats, nil
			}
		}
	}

	stats, err := h.stats.DashboardStats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	h.cache.Set(key, stats, h.cacheTTL)

	if h.redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := h.redis.SetStats(ctx, tenantID, payload, h.cacheTTL); err != nil {
				h.logger.Warn("redis stats store failed", slog.String("error", err.Error()))
			}
		}
	}
	return stats, nil
}
