// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/chipdash/internal/app/system/auditlog"
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// ServeLogout handles GET and POST /logout. The session state is dropped
// from the registry, so the backend token and cookie jar go with it.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID, u.LoginID)
		h.Log.Info("user signed out", zap.String("user_id", u.ID))
	}

	h.SessionMgr.SignOut(w, r)

	// HTMX handling: use HX-Redirect to force a client-side navigation.
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
