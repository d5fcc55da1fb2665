package userinfo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/chipdash/internal/app/features/userinfo"
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/dalemusser/chipdash/internal/app/system/logintab"
	"github.com/dalemusser/chipdash/internal/app/system/otpflow"
	"github.com/dalemusser/chipdash/internal/app/system/sessionstate"
	"github.com/dalemusser/chipdash/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) *userinfo.Handler {
	t.Helper()
	return userinfo.NewHandler()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var response map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
	return response
}

func TestServeUserInfo_Unauthenticated(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeUserInfo(rec, httptest.NewRequest("GET", "/api/user", nil))

	response := decode(t, rec)
	if response["isAuthenticated"] != false {
		t.Errorf("isAuthenticated: got %v, want false", response["isAuthenticated"])
	}
	if response["name"] != "" {
		t.Errorf("name: got %v, want empty", response["name"])
	}
}

func TestServeUserInfo_Authenticated(t *testing.T) {
	handler := newTestHandler(t)
	user := testutil.AdminUser()

	rec := httptest.NewRecorder()
	handler.ServeUserInfo(rec, testutil.NewAuthenticatedRequest("GET", "/api/user", user))

	response := decode(t, rec)
	if response["isAuthenticated"] != true {
		t.Errorf("isAuthenticated: got %v, want true", response["isAuthenticated"])
	}
	if response["user_id"] != user.ID {
		t.Errorf("user_id: got %v, want %q", response["user_id"], user.ID)
	}
	if response["login_id"] != user.LoginID {
		t.Errorf("login_id: got %v, want %q", response["login_id"], user.LoginID)
	}
	if response["role"] != "admin" {
		t.Errorf("role: got %v, want admin", response["role"])
	}
	if _, ok := response["otp_stage"]; ok {
		t.Error("otp_stage should be omitted for a signed-in user")
	}
}

func TestServeUserInfo_SignInInProgress(t *testing.T) {
	handler := newTestHandler(t)
	reg := sessionstate.NewRegistry(sessionstate.Options{SweepEvery: -1}, zap.NewNop())
	t.Cleanup(reg.Close)

	e := reg.Create()
	_ = e.Update(func(d *sessionstate.Data) error {
		d.Tab = logintab.SwitchMethod(d.Tab, logintab.MethodMobile)
		otp, err := otpflow.RequestOtp(d.OTP)
		d.OTP = otp
		return err
	})

	rec := httptest.NewRecorder()
	handler.ServeUserInfo(rec, auth.WithEntry(httptest.NewRequest("GET", "/api/user", nil), e))

	response := decode(t, rec)
	if response["isAuthenticated"] != false {
		t.Errorf("isAuthenticated: got %v, want false", response["isAuthenticated"])
	}
	if response["login_method"] != "mobile" {
		t.Errorf("login_method: got %v, want mobile", response["login_method"])
	}
	if response["otp_stage"] != "otp_sent" {
		t.Errorf("otp_stage: got %v, want otp_sent", response["otp_stage"])
	}
}
