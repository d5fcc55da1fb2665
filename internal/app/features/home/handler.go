package home

import (
	"net/http"

	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"go.uber.org/zap"
)

// Handler sends visitors at the site root to the right starting page.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeRoot redirects signed-in users to the dashboard and everyone else to
// the login page.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
