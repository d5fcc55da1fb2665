package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/chipdash/internal/app/system/sessionstate"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "chipdash-session"

	stateIDKey = "state_id"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we inject into r.Context() for a signed-in session.
type SessionUser struct {
	ID      string
	Name    string
	LoginID string
	Role    string
}

type ctxKey string

const (
	currentUserKey  ctxKey = "currentUser"
	currentEntryKey ctxKey = "currentEntry"
)

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// CurrentEntry returns the session state loaded by LoadSessionUser, if any.
func CurrentEntry(r *http.Request) (*sessionstate.Entry, bool) {
	e, ok := r.Context().Value(currentEntryKey).(*sessionstate.Entry)
	return e, ok
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects u into the request context the way LoadSessionUser
// does. For tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// WithEntry injects a session state entry into the request context.
func WithEntry(r *http.Request, e *sessionstate.Entry) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentEntryKey, e))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session manager                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionConfig configures the cookie that carries the session state id.
type SessionConfig struct {
	// Key signs the cookie; 32+ random characters.
	Key string
	// EncryptionKey, when set, also encrypts the cookie. Must be 16, 24 or
	// 32 bytes.
	EncryptionKey string
	Name          string
	Domain        string
	MaxAge        time.Duration
	// Secure marks cookies Secure with SameSite=None. Use false for local
	// http development.
	Secure bool
}

// SessionManager ties the browser cookie to a registry entry.
type SessionManager struct {
	store    *sessions.CookieStore
	name     string
	registry *sessionstate.Registry
	log      *zap.Logger
}

func NewSessionManager(cfg SessionConfig, registry *sessionstate.Registry, logger *zap.Logger) (*SessionManager, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if registry == nil {
		return nil, errors.New("session manager needs a state registry")
	}
	if len(cfg.Key) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(cfg.Key)))
	}
	keys := [][]byte{[]byte(cfg.Key)}
	if cfg.EncryptionKey != "" {
		switch len(cfg.EncryptionKey) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("session encryption key must be 16, 24 or 32 bytes, got %d", len(cfg.EncryptionKey))
		}
		keys = append(keys, []byte(cfg.EncryptionKey))
	}
	if cfg.Name == "" {
		cfg.Name = DefaultSessionName
	}

	store := sessions.NewCookieStore(keys...)
	opts := &sessions.Options{
		Domain:   cfg.Domain,
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: true,
	}
	if cfg.Secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", cfg.Name),
		zap.Bool("secure", cfg.Secure),
		zap.Bool("encrypted", cfg.EncryptionKey != ""),
		zap.String("domain", cfg.Domain))

	return &SessionManager{store: store, name: cfg.Name, registry: registry, log: logger}, nil
}

// GetSession returns the cookie session. A cookie that no longer decodes
// (rotated keys, tampering) yields a fresh session.
func (sm *SessionManager) GetSession(r *http.Request) *sessions.Session {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			sm.log.Debug("discarding undecodable session cookie", zap.Error(err))
		} else {
			sm.log.Warn("session cookie error", zap.Error(err))
		}
	}
	return sess
}

// Lookup resolves the request's session state without creating one.
func (sm *SessionManager) Lookup(r *http.Request) (*sessionstate.Entry, bool) {
	if e, ok := CurrentEntry(r); ok {
		return e, true
	}
	id, _ := sm.GetSession(r).Values[stateIDKey].(string)
	return sm.registry.Get(id)
}

// Entry resolves the request's session state, creating it and setting the
// cookie when there is none.
func (sm *SessionManager) Entry(w http.ResponseWriter, r *http.Request) (*sessionstate.Entry, error) {
	if e, ok := sm.Lookup(r); ok {
		return e, nil
	}
	e := sm.registry.Create()
	if err := sm.saveID(w, r, e.ID()); err != nil {
		sm.registry.Delete(e.ID())
		return nil, err
	}
	return e, nil
}

// SignIn moves the entry to a new id so a pre-login cookie cannot be
// replayed, and writes the new id to the cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, e *sessionstate.Entry) error {
	rotated, ok := sm.registry.Rotate(e.ID())
	if !ok {
		return errors.New("session state expired")
	}
	return sm.saveID(w, r, rotated.ID())
}

// SignOut forgets the session state and expires the cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) {
	sess := sm.GetSession(r)
	if id, _ := sess.Values[stateIDKey].(string); id != "" {
		sm.registry.Delete(id)
	}
	if e, ok := CurrentEntry(r); ok {
		sm.registry.Delete(e.ID())
	}
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		sm.log.Warn("failed to expire session cookie", zap.Error(err))
	}
}

func (sm *SessionManager) saveID(w http.ResponseWriter, r *http.Request, id string) error {
	sess := sm.GetSession(r)
	sess.Values[stateIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSessionUser injects the session state and, once signed in, the user
// into the request context.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, ok := sm.Lookup(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		r = WithEntry(r, e)
		d := e.Snapshot()
		if d.SignedIn() {
			r = withUser(r, &SessionUser{
				ID:      d.User.ID,
				Name:    d.User.Name,
				LoginID: d.Target.LoginID(),
				Role:    d.User.Role,
			})
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		unauthorized(w, r)
	})
}

// RequireRole ensures there is a user with one of the allowed roles. Role
// names compare case-insensitively.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				unauthorized(w, r)
				return
			}

			if _, has := set[strings.ToLower(u.Role)]; !has {
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/forbidden")
					w.WriteHeader(http.StatusForbidden)
					return
				}
				if wantsHTML(r) {
					http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// helpers

func unauthorized(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(currentURI(r))

	// HTMX: full-page client redirect (no partial swap)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login?return="+ret)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}

	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func wantsHTML(r *http.Request) bool {
	// Very light heuristic: treat it as HTML if it's HTMX or Accepts text/html.
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

func currentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
