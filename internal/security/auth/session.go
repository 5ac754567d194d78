package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yourorg/parcfleet/internal/reliability/circuitbreaker"
)

// SessionPermission is one flattened permission entry carried in the session,
// annotated with the role that granted it. Duplicates across roles are kept;
// checks only test for existence of a matching entry.
type SessionPermission struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	RoleID   string `json:"roleId"`
	RoleName string `json:"roleName"`
}

// SessionTenant identifies the tenant a session is scoped to.
type SessionTenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is the request-scoped identity decoded from the signed cookie.
// The zero value is "not logged in"; handlers must check IsLoggedIn.
type Session struct {
	UserID       string              `json:"userId"`
	Email        string              `json:"email"`
	Name         string              `json:"name"`
	Roles        []string            `json:"roles"`
	Permissions  []SessionPermission `json:"permissions"`
	IsLoggedIn   bool                `json:"isLoggedIn"`
	IsSuperAdmin bool                `json:"isSuperAdmin"`
	IsOwner      bool                `json:"isOwner"`
	Tenant       SessionTenant       `json:"tenant"`

	// TokenID is the jti of the backing token, used for revocation.
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

type sessionClaims struct {
	Session
	jwt.RegisteredClaims
}

// RevocationStore is the denylist consulted for logged-out tokens.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionManager signs sessions into an HttpOnly cookie and decodes them back.
// Decode failures always degrade to the zero session, never to an error the
// request pipeline has to handle.
type SessionManager struct {
	secret      []byte
	issuer      string
	cookieName  string
	ttl         time.Duration
	secureOnly  bool
	revocations RevocationStore
	breaker     *circuitbreaker.Breaker
	logger      *slog.Logger
}

// NewSessionManager creates a session manager. revocations may be nil, in
// which case logout only clears the cookie.
func NewSessionManager(secret, cookieName string, ttl time.Duration, secureOnly bool, revocations RevocationStore, logger *slog.Logger) *SessionManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if cookieName == "" {
		cookieName = "parcfleet_session"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		secret:      []byte(secret),
		issuer:      "parcfleet",
		cookieName:  cookieName,
		ttl:         ttl,
		secureOnly:  secureOnly,
		revocations: revocations,
		breaker:     circuitbreaker.New(5, 2, 30*time.Second),
		logger:      logger,
	}
}

// Issue signs the session and writes it as a cookie. All fields are persisted
// together; a handler never observes a partially populated logged-in session.
func (m *SessionManager) Issue(w http.ResponseWriter, session Session) error {
	now := time.Now()
	session.TokenID = uuid.NewString()
	session.IsLoggedIn = true

	claims := sessionClaims{
		Session: session,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Issuer:    m.issuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secureOnly,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read decodes the session cookie on the request. Missing cookie, bad
// signature, expiry, or a revoked token all yield the zero session.
func (m *SessionManager) Read(r *http.Request) Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return Session{}
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Session{}
	}

	session := claims.Session
	session.TokenID = claims.RegisteredClaims.ID
	if claims.RegisteredClaims.ExpiresAt != nil {
		session.ExpiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	if m.isRevoked(r.Context(), session.TokenID) {
		return Session{}
	}
	return session
}

// Clear expires the cookie and denylists the backing token for its remaining
// lifetime. The cookie is removed even when revocation fails.
func (m *SessionManager) Clear(ctx context.Context, w http.ResponseWriter, session Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureOnly,
		SameSite: http.SameSiteLaxMode,
	})

	if m.revocations == nil || session.TokenID == "" {
		return
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := m.revocations.Revoke(ctx, session.TokenID, ttl); err != nil {
		m.logger.Warn("failed to revoke session token",
			slog.String("token_id", session.TokenID),
			slog.String("error", err.Error()),
		)
	}
}

// isRevoked consults the denylist through a breaker. When the store is down
// the check fails open: sessions stay valid rather than locking everyone out.
func (m *SessionManager) isRevoked(ctx context.Context, tokenID string) bool {
	if m.revocations == nil || tokenID == "" {
		return false
	}
	if !m.breaker.Allow() {
		return false
	}
	revoked, err := m.revocations.IsRevoked(ctx, tokenID)
	if err != nil {
		m.breaker.RecordFailure()
		m.logger.Warn("revocation lookup failed", slog.String("error", err.Error()))
		return false
	}
	m.breaker.RecordSuccess()
	return revoked
}
