// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeLogin)
	r.Post("/", h.HandleLoginPost)
	r.Post("/method", h.HandleMethod)
	r.Get("/otp", h.ServeOTP)
	r.Post("/otp", h.HandleOTPPost)
	r.Post("/otp/resend", h.HandleResend)
	r.Post("/otp/reset", h.HandleReset)
	return r
}
