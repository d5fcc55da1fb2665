// internal/app/features/userinfo/routes.go
package userinfo

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MountRoutes registers GET /api/user on the supplied router. Anonymous
// callers get isAuthenticated=false rather than a redirect, and responses
// are never cached.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/api/user", func(ur chi.Router) {
		ur.Use(middleware.NoCache)
		ur.Get("/", h.ServeUserInfo)
	})
}
