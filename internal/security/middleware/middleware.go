package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/parcfleet/internal/security/audit"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/ratelimit"
)

// SessionMiddleware decodes the session cookie into the request context.
// Decoding never fails the request: a missing or invalid cookie simply leaves
// the zero session in place and the guards answer 401 downstream.
func SessionMiddleware(sessions *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessions.Read(r)
			ctx := auth.NewContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitConfig carries the two budgets enforced by RateLimitMiddleware.
type RateLimitConfig struct {
	LoginLimit  int
	LoginWindow time.Duration
}

// RateLimitMiddleware applies the general per-tenant budget to every API
// request and a strict per-address budget to the login endpoint, which is the
// one route an unauthenticated caller can hammer.
func RateLimitMiddleware(limiter *ratelimit.Limiter, cfg RateLimitConfig, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOperationalPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if r.URL.Path == "/api/auth/login" {
				if !limiter.AllowStrict(clientAddr(r), cfg.LoginLimit, cfg.LoginWindow) {
					log.Warn("login rate limit exceeded", slog.String("addr", clientAddr(r)))
					http.Error(w, `{"message":"Trop de tentatives, veuillez réessayer plus tard"}`, http.StatusTooManyRequests)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			tenantID := auth.FromContext(r.Context()).Tenant.ID
			if !limiter.Allow(tenantID) {
				log.Warn("rate limit exceeded", slog.String("tenant_id", tenantID))
				http.Error(w, `{"message":"Trop de requêtes, veuillez réessayer plus tard"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records every mutating API call before it executes.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
				if strings.HasPrefix(r.URL.Path, "/api/") {
					session := auth.FromContext(r.Context())
					auditLog.LogAction(r.Context(),
						session.Tenant.ID, session.UserID,
						strings.ToLower(r.Method), r.URL.Path, r.PathValue("id"),
						"initiated", "")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware honors the configured origins and answers preflights.
func CORSMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(allowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isOperationalPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
