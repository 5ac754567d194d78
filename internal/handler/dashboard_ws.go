package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/parcfleet/internal/observability/metrics"
	"github.com/yourorg/parcfleet/internal/security/auth"
)

// DashboardStreamHandler pushes the tenant's dashboard counters over a
// WebSocket at a fixed interval, so open dashboards refresh without polling.
type DashboardStreamHandler struct {
	stats          *StatsHandler
	allowedOrigins []string
	interval       time.Duration
	logger         *slog.Logger
}

// NewDashboardStreamHandler creates a new dashboard stream handler
func NewDashboardStreamHandler(stats *StatsHandler, allowedOrigins []string, interval time.Duration, logger *slog.Logger) *DashboardStreamHandler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &DashboardStreamHandler{
		stats:          stats,
		allowedOrigins: allowedOrigins,
		interval:       interval,
		logger:         logger,
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *DashboardStreamHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/dashboard requests. The session check runs before
// the upgrade: an anonymous client never gets a socket.
func (h *DashboardStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	if !session.IsLoggedIn {
		writeMessage(w, http.StatusUnauthorized, "Non authentifié, veuillez vous connecter")
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	metrics.DashboardClientConnected()
	defer metrics.DashboardClientDisconnected()

	h.logger.Debug("dashboard stream opened",
		slog.String("user_id", session.UserID),
		slog.String("tenant_id", session.Tenant.ID),
	)

	// Reader goroutine drains client frames and surfaces the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.push(ws, r, session.Tenant.ID); err != nil {
		return
	}
	for {
		select {
		case <-ticker.C:
			if err := h.push(ws, r, session.Tenant.ID); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("dashboard stream closed", slog.String("user_id", session.UserID))
				}
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *DashboardStreamHandler) push(ws *websocket.Conn, r *http.Request, tenantID string) error {
	stats, err := h.stats.tenantStats(r.Context(), tenantID)
	if err != nil {
		h.logger.Warn("dashboard stream stats fetch failed", slog.String("error", err.Error()))
		return nil
	}
	ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteJSON(stats)
}
