// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"net/http"

	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"go.uber.org/zap"
)

// Handler keeps a browser's session state from idling out while a page
// stays open.
type Handler struct {
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

// NewHandler creates a new heartbeat handler.
func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		SessionMgr: sessionMgr,
		Log:        logger,
	}
}

// ServeHeartbeat handles POST /api/heartbeat. Resolving the entry marks it
// as seen. 204 while the state is alive, 410 once it has been evicted.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	e, ok := h.SessionMgr.Lookup(r)
	if !ok {
		w.WriteHeader(http.StatusGone)
		return
	}
	h.Log.Debug("heartbeat", zap.String("state_id_prefix", e.ID()[:8]))
	w.WriteHeader(http.StatusNoContent)
}
