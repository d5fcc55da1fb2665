// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/chipdash/internal/app/features/errors"
	loginstore "github.com/dalemusser/chipdash/internal/app/store/logins"
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"github.com/dalemusser/chipdash/internal/app/system/userdir"
	"github.com/dalemusser/chipdash/internal/app/system/viewdata"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type Handler struct {
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
	Users  *userdir.Client
	// Logins is optional; without it the previous sign in is not shown.
	Logins *loginstore.Store
}

func NewHandler(users *userdir.Client, logins *loginstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:    logger,
		ErrLog: errLog,
		Users:  users,
		Logins: logins,
	}
}

type dashboardData struct {
	viewdata.BaseVM
	Panel      panelVM
	Users      []models.ChipUser
	UsersError string
	LastSignIn *time.Time
	// FailedSince counts failed sign in steps for the account since LastSignIn.
	FailedSince int64
}

// ServeDashboard shows the selector and the users matching the current
// selection.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	entry, ok := auth.CurrentEntry(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	d := entry.Snapshot()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Backend(), h.Log, "dashboard")
	defer cancel()
	ctx = chipapi.WithSession(ctx, entry.Backend())

	// A failed state list is recorded on the level and shown in the panel.
	st, _ := entry.Selector.LoadRoots(ctx)

	data := dashboardData{
		BaseVM: viewdata.NewBaseVM(r, "Dashboard", "/dashboard"),
	}
	data.Panel = newPanel(st, data.CSRFToken)

	users, err := h.Users.List(ctx, userdir.FilterFrom(st))
	if err != nil {
		h.Log.Warn("user list failed", zap.Error(err), zap.Int("status", chipapi.StatusOf(err)))
		data.UsersError = chipapi.UserMessage(err, "Could not load users.")
	}
	data.Users = users

	if h.Logins != nil && d.User != nil && !d.SignedInAt.IsZero() {
		rec, found, err := h.Logins.PreviousSignIn(ctx, d.User.ID, d.SignedInAt)
		switch {
		case err != nil:
			h.Log.Warn("previous sign in lookup failed", zap.Error(err))
		case found:
			t := rec.CreatedAt
			data.LastSignIn = &t
			n, err := h.Logins.CountFailuresSince(ctx, rec.LoginID, rec.CreatedAt)
			if err != nil {
				h.Log.Warn("failed sign in count failed", zap.Error(err))
			}
			data.FailedSince = n
		}
	}

	templates.Render(w, r, "dashboard", data)
}
