// internal/app/features/logout/routes.go
package logout

import (
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes serves POST / (mounted at /logout). Sign out is POST only so the
// CSRF middleware covers it.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.With(sm.RequireSignedIn).Post("/", h.ServeLogout)
	return r
}
