// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes wires the dashboard page under whatever mount point the top-level
// router chooses (e.g., "/dashboard").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.ServeDashboard)
	})

	return r
}

// SelectorRoutes serves the cascading selector, mounted at "/selector".
func SelectorRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.ServeSelector)
		pr.Post("/{chain}/{level}", h.HandleChoose)
	})

	return r
}
