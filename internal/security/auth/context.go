package auth

import "context"

type sessionContextKey struct{}

// NewContext returns ctx carrying the decoded session.
func NewContext(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// FromContext returns the session attached by the middleware, or the zero
// session when none was decoded.
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionContextKey{}).(Session); ok {
		return s
	}
	return Session{}
}
