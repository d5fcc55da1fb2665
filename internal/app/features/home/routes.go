package home

import "github.com/go-chi/chi/v5"

// Routes serves the site root. Anything else under "/" that no other
// feature claims falls through to chi's 404.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeRoot)
	r.Head("/", h.ServeRoot)
	return r
}
