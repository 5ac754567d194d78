package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/parcfleet/internal/featureflags"
	"github.com/yourorg/parcfleet/internal/handler"
	"github.com/yourorg/parcfleet/internal/infrastructure/logger"
	"github.com/yourorg/parcfleet/internal/infrastructure/redis"
	"github.com/yourorg/parcfleet/internal/observability/metrics"
	"github.com/yourorg/parcfleet/internal/observability/tracing"
	"github.com/yourorg/parcfleet/internal/reliability/retry"
	"github.com/yourorg/parcfleet/internal/repository"
	"github.com/yourorg/parcfleet/internal/security/audit"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/middleware"
	"github.com/yourorg/parcfleet/internal/security/ratelimit"
	"github.com/yourorg/parcfleet/internal/security/rbac"
	"github.com/yourorg/parcfleet/internal/worker"
	"github.com/yourorg/parcfleet/pkg/cache"
	"github.com/yourorg/parcfleet/pkg/config"
	"github.com/yourorg/parcfleet/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting ParcFleet server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing
	shutdownTracing, err := tracing.Setup(ctx, log, "parcfleet", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect backing stores, retrying while they come up
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5

	redisClient, err := retry.Do(ctx, retryCfg, log, "redis connect",
		func(ctx context.Context) (*redis.Client, error) {
			return redis.NewClient(cfg.RedisURL)
		})
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	dbPool, err := retry.Do(ctx, retryCfg, log, "database connect",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, &database.Config{
				Host:     cfg.DBHost,
				Port:     cfg.DBPort,
				User:     cfg.DBUser,
				Password: cfg.DBPassword,
				Database: cfg.DBName,
				SSLMode:  cfg.DBSSLMode,
			}, log)
		})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	db := dbPool.GetDB()

	// 5. Initialize repositories
	tenantRepo := repository.NewPostgresTenantRepository(db, log)
	userRepo := repository.NewPostgresUserRepository(db, log)
	roleRepo := repository.NewPostgresRoleRepository(db, log)
	permissionRepo := repository.NewPostgresPermissionRepository(db, log)
	lubrifiantRepo := repository.NewPostgresLubrifiantRepository(db, log)
	typeLubrifiantRepo := repository.NewPostgresTypeLubrifiantRepository(db, log)
	parcRepo := repository.NewPostgresParcRepository(db, log)
	statsRepo := repository.NewPostgresStatsRepository(db, log)

	// 6. Initialize security components
	hasher := auth.NewHasher(cfg.BcryptCost)
	sessions := auth.NewSessionManager(
		cfg.SessionSecret,
		cfg.SessionCookieName,
		cfg.SessionTTL,
		cfg.Environment == "production",
		redisClient,
		log,
	)
	guard := rbac.NewGuard(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)
	statsCache := cache.New()

	// 7. Initialize handlers
	loginHandler := handler.NewLoginHandler(tenantRepo, userRepo, hasher, sessions, auditLogger, log)
	registerHandler := handler.NewRegisterHandler(tenantRepo, hasher, log)
	logoutHandler := handler.NewLogoutHandler(sessions, auditLogger, log)
	profileHandler := handler.NewProfileHandler(userRepo, hasher, log)
	lubrifiantHandler := handler.NewLubrifiantHandler(lubrifiantRepo, typeLubrifiantRepo, parcRepo, guard, auditLogger, log)
	typeLubrifiantHandler := handler.NewTypeLubrifiantHandler(typeLubrifiantRepo, guard, auditLogger, log)
	roleHandler := handler.NewRoleHandler(roleRepo, permissionRepo, guard, statsCache, auditLogger, log)
	permissionHandler := handler.NewPermissionHandler(permissionRepo, guard, log)
	parcHandler := handler.NewParcHandler(parcRepo, guard, auditLogger, log)
	userHandler := handler.NewUserHandler(userRepo, roleRepo, hasher, guard, statsCache, auditLogger, log)
	statsHandler := handler.NewStatsHandler(statsRepo, statsCache, redisClient, cfg.StatsCacheTTL, log)
	dashboardStreamHandler := handler.NewDashboardStreamHandler(statsHandler, cfg.CORSAllowedOrigins, 10*time.Second, log)
	healthHandler := handler.NewHealthHandler(dbPool, redisClient)

	// 8. Setup HTTP routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/login", loginHandler)
	if !featureflags.Enabled("DISABLE_REGISTRATION") {
		mux.Handle("POST /api/auth/register", registerHandler)
	}
	mux.Handle("POST /api/auth/logout", logoutHandler)
	mux.HandleFunc("GET /api/auth/profile", profileHandler.Get)
	mux.HandleFunc("PATCH /api/auth/profile", profileHandler.Update)

	mux.HandleFunc("GET /api/lubrifiant", lubrifiantHandler.List)
	mux.HandleFunc("POST /api/lubrifiant", lubrifiantHandler.Create)
	mux.HandleFunc("GET /api/lubrifiant/{id}", lubrifiantHandler.Get)
	mux.HandleFunc("PUT /api/lubrifiant/{id}", lubrifiantHandler.Update)
	mux.HandleFunc("DELETE /api/lubrifiant/{id}", lubrifiantHandler.Delete)

	mux.HandleFunc("GET /api/type_lubrifiant", typeLubrifiantHandler.List)
	mux.HandleFunc("POST /api/type_lubrifiant", typeLubrifiantHandler.Create)
	mux.HandleFunc("GET /api/type_lubrifiant/{id}", typeLubrifiantHandler.Get)
	mux.HandleFunc("PUT /api/type_lubrifiant/{id}", typeLubrifiantHandler.Update)
	mux.HandleFunc("DELETE /api/type_lubrifiant/{id}", typeLubrifiantHandler.Delete)

	mux.HandleFunc("GET /api/roles", roleHandler.List)
	mux.HandleFunc("POST /api/roles", roleHandler.Create)
	mux.HandleFunc("GET /api/roles/{id}", roleHandler.Get)
	mux.HandleFunc("PUT /api/roles/{id}", roleHandler.Update)
	mux.HandleFunc("DELETE /api/roles/{id}", roleHandler.Delete)

	mux.HandleFunc("GET /api/permissions", permissionHandler.List)

	mux.HandleFunc("GET /api/parc", parcHandler.List)
	mux.HandleFunc("POST /api/parc", parcHandler.Create)

	mux.HandleFunc("GET /api/users", userHandler.List)
	mux.HandleFunc("POST /api/users", userHandler.Create)
	mux.HandleFunc("PATCH /api/users/{id}", userHandler.Update)

	mux.Handle("GET /api/dashboard/stats", statsHandler)
	mux.Handle("GET /ws/dashboard", dashboardStreamHandler)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	// Chain middleware: request ID -> tracing -> metrics -> session ->
	// rate limit -> audit -> CORS -> mux. The session decode runs before the
	// rate limiter so the general budget can key on the tenant.
	rootHandler := withRequestID(
		otelhttp.NewHandler(
			metrics.HTTPMetricsMiddleware(
				middleware.SessionMiddleware(sessions)(
					middleware.RateLimitMiddleware(rateLimiter, middleware.RateLimitConfig{
						LoginLimit:  cfg.LoginRateLimit,
						LoginWindow: cfg.LoginRateWindow,
					}, log)(
						middleware.AuditMiddleware(auditLogger)(
							middleware.CORSMiddleware(cfg.CORSAllowedOrigins, mux),
						),
					),
				),
			),
			"parcfleet",
		),
		log,
	)

	// 9. Start stats warmer in background
	statsWorker := worker.NewStatsWorker(statsRepo, statsCache, redisClient, log, cfg.StatsWarmInterval, cfg.StatsCacheTTL)
	go statsWorker.Start(ctx)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "session-cookie"),
		slog.Int("rate_limit_per_minute", cfg.RateLimitPerMinute),
		slog.Int("login_rate_limit", cfg.LoginRateLimit),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop stats worker
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), audit.RequestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
