// internal/app/features/userinfo/handler.go
package userinfo

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/chipdash/internal/app/system/auth"
)

// Handler serves user information for the current session.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type userInfo struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	LoginID         string `json:"login_id"`
	Role            string `json:"role"`
	// LoginMethod and OTPStage describe an unfinished sign in.
	LoginMethod string `json:"login_method,omitempty"`
	OTPStage    string `json:"otp_stage,omitempty"`
}

// ServeUserInfo returns JSON with the current user's identity, or the
// progress of the sign in when there is no user yet.
//
// Response format:
//
//	{ "isAuthenticated": bool, "user_id": "...", "name": "...", "login_id": "...", "role": "..." }
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var out userInfo
	if user, ok := auth.CurrentUser(r); ok {
		out = userInfo{
			IsAuthenticated: true,
			UserID:          user.ID,
			Name:            user.Name,
			LoginID:         user.LoginID,
			Role:            user.Role,
		}
	} else if e, ok := auth.CurrentEntry(r); ok {
		d := e.Snapshot()
		out.LoginMethod = string(d.Tab.Method)
		out.OTPStage = d.OTP.Stage().String()
	}

	_ = json.NewEncoder(w).Encode(out)
}
