// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"

	loginstore "github.com/dalemusser/chipdash/internal/app/store/logins"
	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"github.com/dalemusser/chipdash/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
)

// ServeList handles GET /audit: recent sign in activity, newest first,
// optionally filtered by login id and event.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	data := listData{
		BaseVM:  viewdata.NewBaseVM(r, "Sign in activity", "/dashboard"),
		LoginID: query.Get(r, "login_id"),
		Event:   query.Get(r, "event"),
		Events:  eventOptions,
	}
	if data.Event != "" && !knownEvent(data.Event) {
		data.Event = ""
	}

	if h.Logins == nil {
		data.Disabled = true
		templates.Render(w, r, "audit_list", data)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "audit list")
	defer cancel()

	page, err := h.Logins.List(ctx, loginstore.ListFilter{
		LoginID: data.LoginID,
		Event:   data.Event,
		Before:  query.Get(r, "before"),
		After:   query.Get(r, "after"),
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list login records failed", err, "Unable to load sign in activity.", "/dashboard")
		return
	}

	data.Items = make([]listItem, 0, len(page.Records))
	for _, rec := range page.Records {
		data.Items = append(data.Items, listItem{
			At:       rec.CreatedAt,
			Event:    rec.Event,
			LoginID:  rec.LoginID,
			UserID:   rec.UserID,
			Provider: rec.Provider,
			IP:       rec.IP,
			Success:  rec.Success,
			Reason:   rec.Reason,
		})
	}
	data.HasPrev, data.HasNext = page.HasPrev, page.HasNext
	data.PrevCursor, data.NextCursor = page.PrevCursor, page.NextCursor

	templates.Render(w, r, "audit_list", data)
}
