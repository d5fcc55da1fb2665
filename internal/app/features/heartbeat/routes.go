// internal/app/features/heartbeat/routes.go
package heartbeat

import (
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes serves POST / (mounted at /api/heartbeat) for signed-in users.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.With(sm.RequireSignedIn).Post("/", h.ServeHeartbeat)
	return r
}
