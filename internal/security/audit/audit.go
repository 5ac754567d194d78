package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits the structured audit trail of tenant-scoped mutations.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates an audit logger
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// RequestIDKey matches the key the request-ID middleware stores under.
type RequestIDKey struct{}

// LogAction records one audited action.
func (al *Logger) LogAction(ctx context.Context, tenantID, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID, ok := ctx.Value(RequestIDKey{}).(string); ok {
		requestID = reqID
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("tenant_id", tenantID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

// LogLogin records a login attempt.
func (al *Logger) LogLogin(ctx context.Context, tenantID, userID, status string) {
	al.LogAction(ctx, tenantID, userID, "login", "session", "", status, "")
}

// LogLogout records a logout.
func (al *Logger) LogLogout(ctx context.Context, tenantID, userID string) {
	al.LogAction(ctx, tenantID, userID, "logout", "session", "", "ok", "")
}

// LogMutation records a create/update/delete on a tenant resource.
func (al *Logger) LogMutation(ctx context.Context, tenantID, userID, action, resource, resourceID, status string) {
	al.LogAction(ctx, tenantID, userID, action, resource, resourceID, status, "")
}

// LogDenied records a request rejected by the route guard.
func (al *Logger) LogDenied(ctx context.Context, tenantID, userID, reason string) {
	al.LogAction(ctx, tenantID, userID, "access_denied", "api", "", "denied", reason)
}
