package session

import "context"

type ctxKey struct{}

// WithContext stores s on ctx for downstream handlers.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request session, or an anonymous one when none was attached.
func FromContext(ctx context.Context) Session {
	if ctx == nil {
		return Anonymous()
	}
	if s, ok := ctx.Value(ctxKey{}).(Session); ok {
		return s
	}
	return Anonymous()
}
