// internal/app/system/chipapi/session.go
package chipapi

import (
	"context"
	"net/http"
)

// Session is one browser's identity towards the CHIP backend: the bearer
// token returned at login and the jar holding cookies the backend set.
// Either may be empty.
type Session struct {
	Token string
	Jar   http.CookieJar
}

type ctxKey struct{}

// WithSession attaches s to ctx so Client requests made with ctx carry it.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFrom returns the Session attached to ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
