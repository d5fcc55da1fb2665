package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/chipdash/internal/app/features/errors"
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// ServeSelector returns the current selection: JSON when asked for it,
// otherwise the panel partial.
func (h *Handler) ServeSelector(w http.ResponseWriter, r *http.Request) {
	entry, ok := auth.CurrentEntry(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.writeSelection(w, r, http.StatusOK, entry.Selector.State(), "")
}

// HandleChoose handles POST /selector/{chain}/{level} with form field "id".
// An empty id clears the level and everything below it.
func (h *Handler) HandleChoose(w http.ResponseWriter, r *http.Request) {
	entry, ok := auth.CurrentEntry(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.HTMXLogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}

	slot, ok := parseSlot(chi.URLParam(r, "chain"), chi.URLParam(r, "level"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimSpace(r.FormValue("id"))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Backend(), h.Log, "selector choose")
	defer cancel()
	ctx = chipapi.WithSession(ctx, entry.Backend())

	st, err := entry.Selector.Choose(ctx, slot, id)
	switch {
	case errors.Is(err, selection.ErrUnknownOption):
		h.Log.Info("selector rejected option",
			zap.String("chain", slot.Chain.String()),
			zap.String("level", slot.Name()),
			zap.String("id", id))
		h.writeSelection(w, r, http.StatusUnprocessableEntity, st, "That option is no longer available.")
		return
	case err != nil:
		// Fetch failures are already recorded on the affected level.
		h.Log.Debug("selector fetch error", zap.Error(err))
	}

	h.writeSelection(w, r, http.StatusOK, st, "")
}

func parseSlot(chain, level string) (selection.Slot, bool) {
	switch chain {
	case "geo":
		l, ok := models.ParseGeoLevel(level)
		return selection.GeoSlot(l), ok
	case "org":
		k, ok := models.ParseOrgKind(level)
		return selection.OrgSlot(k), ok
	}
	return selection.Slot{}, false
}

func (h *Handler) writeSelection(w http.ResponseWriter, r *http.Request, status int, st selection.State, msg string) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(struct {
			selection.State
			Error string `json:"error,omitempty"`
		}{st, msg})
		return
	}
	p := newPanel(st, csrf.Token(r))
	p.Error = msg
	if status == http.StatusOK {
		templates.RenderSnippet(w, "selector_panel", p)
		return
	}
	uierrors.RenderSnippetStatus(w, status, "selector_panel", p)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
