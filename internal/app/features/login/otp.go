// internal/app/features/login/otp.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/chipdash/internal/app/features/errors"
	"github.com/dalemusser/chipdash/internal/app/system/authclient"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/logintab"
	"github.com/dalemusser/chipdash/internal/app/system/otpflow"
	"github.com/dalemusser/chipdash/internal/app/system/sessionstate"
	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"github.com/dalemusser/chipdash/internal/app/system/viewdata"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

var (
	errRateLimited = errors.New("login: rate limited")
	errOTPChanged  = errors.New("login: otp state changed")
)

type otpFormData struct {
	viewdata.BaseVM
	Error        string
	Notice       string
	Destination  string
	Digits       [otpflow.CodeLen]string
	AttemptsLeft int
	ReturnURL    string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/otp                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeOTP(w http.ResponseWriter, r *http.Request) {
	ret := query.Get(r, "return")
	entry, ok := h.SessionMgr.Lookup(r)
	if !ok || entry.Snapshot().OTP.Stage() != otpflow.OtpSent {
		http.Redirect(w, r, withReturn("/login", ret), http.StatusSeeOther)
		return
	}
	notice := ""
	if query.Get(r, "resent") == "1" {
		notice = "A new code has been sent."
	}
	h.renderOTP(w, r, http.StatusOK, entry.Snapshot(), "", notice, ret)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/otp                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleOTPPost reads the six digit boxes (d0..d5), or a pasted "code",
// and verifies them with the backend.
func (h *Handler) HandleOTPPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}
	ret := r.FormValue("return")

	entry, ok := h.SessionMgr.Lookup(r)
	if !ok {
		http.Redirect(w, r, withReturn("/login", ret), http.StatusSeeOther)
		return
	}

	err := entry.Update(func(d *sessionstate.Data) error {
		otp, err := fillDigits(d.OTP, r)
		if err != nil {
			return err
		}
		d.OTP = otp
		return nil
	})
	switch {
	case errors.Is(err, otpflow.ErrNotSent), errors.Is(err, otpflow.ErrAlreadyVerified):
		http.Redirect(w, r, withReturn("/login", ret), http.StatusSeeOther)
		return
	case errors.Is(err, otpflow.ErrIncompleteCode):
		h.renderOTP(w, r, http.StatusUnprocessableEntity, entry.Snapshot(), "Enter all 6 digits of the code.", "", ret)
		return
	case err != nil:
		h.renderOTP(w, r, http.StatusUnprocessableEntity, entry.Snapshot(), "Each box takes a single digit.", "", ret)
		return
	}

	d := entry.Snapshot()
	loginID := d.Target.LoginID()

	var (
		res     models.LoginResult
		limited string
	)
	verify := otpflow.VerifierFunc(func(ctx context.Context, code string) error {
		if ok, reason := h.Limiter.Check(r, loginID); !ok {
			limited = reason
			return errors.Join(otpflow.ErrNotChecked, errRateLimited)
		}
		ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Backend(), h.Log, "verify otp")
		defer cancel()
		var err error
		res, err = h.Auth.VerifyOTP(chipapi.WithSession(ctx, entry.Backend()), d.Target, code)
		if err != nil && authFailureStatus(err) != http.StatusUnauthorized {
			return errors.Join(otpflow.ErrNotChecked, err)
		}
		return err
	})

	before := d.OTP
	next, err := otpflow.SubmitOtp(r.Context(), before, verify)
	switch {
	case errors.Is(err, otpflow.ErrIncompleteCode):
		h.renderOTP(w, r, http.StatusUnprocessableEntity, d, "Enter all 6 digits of the code.", "", ret)
		return
	case errors.Is(err, otpflow.ErrTooManyAttempts):
		h.renderOTP(w, r, http.StatusTooManyRequests, d, "Too many incorrect codes. Request a new code.", "", ret)
		return
	case errors.Is(err, otpflow.ErrNotSent), errors.Is(err, otpflow.ErrAlreadyVerified):
		http.Redirect(w, r, withReturn("/login", ret), http.StatusSeeOther)
		return
	case errors.Is(err, errRateLimited):
		h.AuditLog.RateLimited(r.Context(), r, loginID, limited)
		h.renderOTP(w, r, http.StatusTooManyRequests, d, limited, "", ret)
		return
	case err != nil:
		msg := chipapi.UserMessage(err, authclient.MsgOTPCheckFail)
		if !errors.Is(err, otpflow.ErrNotChecked) {
			_ = entry.Update(func(d *sessionstate.Data) error {
				if d.OTP == before {
					d.OTP = otpflow.ClearOtp(next)
				}
				return nil
			})
		}
		h.AuditLog.OTPFailed(r.Context(), r, loginID, msg)
		h.renderOTP(w, r, authFailureStatus(err), entry.Snapshot(), msg, "", ret)
		return
	}

	err = entry.Update(func(d *sessionstate.Data) error {
		if d.OTP != before {
			return errOTPChanged
		}
		user, token := signedInUser(res, d.Pending)
		d.OTP = next
		d.User = &user
		d.Token = token
		d.SignedInAt = time.Now().UTC()
		d.Pending = nil
		return nil
	})
	if err != nil {
		// The flow was reset or resent while the backend answered.
		h.Log.Info("otp state changed during verification", zap.Error(err))
		http.Redirect(w, r, withReturn("/login", ret), http.StatusSeeOther)
		return
	}

	if err := h.SessionMgr.SignIn(w, r, entry); err != nil {
		h.ErrLog.LogServerError(w, r, "sign in failed", err, "Unable to complete sign in.", "/login")
		return
	}

	user := entry.Snapshot().User
	h.Limiter.ResetLoginID(loginID)
	h.AuditLog.LoginSuccess(r.Context(), r, user.ID, loginID, "otp")
	h.Log.Info("user signed in", zap.String("user_id", user.ID))

	http.Redirect(w, r, urlutil.SafeReturn(ret, "", "/dashboard"), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/otp/resend                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}
	ret := r.FormValue("return")

	entry, ok := h.SessionMgr.Lookup(r)
	if !ok || entry.Snapshot().OTP.Stage() != otpflow.OtpSent {
		http.Redirect(w, r, withReturn("/login", ret), http.StatusSeeOther)
		return
	}
	d := entry.Snapshot()
	loginID := d.Target.LoginID()

	if ok, reason := h.Limiter.Check(r, loginID); !ok {
		h.AuditLog.RateLimited(r.Context(), r, loginID, reason)
		h.renderOTP(w, r, http.StatusTooManyRequests, d, reason, "", ret)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Backend(), h.Log, "resend otp")
	defer cancel()
	ctx = chipapi.WithSession(ctx, entry.Backend())

	if err := h.Auth.RequestOTP(ctx, d.Target); err != nil {
		msg := chipapi.UserMessage(err, authclient.MsgOTPSendFail)
		h.AuditLog.OTPSent(r.Context(), r, loginID, false, msg)
		h.renderOTP(w, r, uierrors.BackendStatus(err), d, msg, "", ret)
		return
	}
	h.AuditLog.OTPSent(r.Context(), r, loginID, true, "")

	_ = entry.Update(func(d *sessionstate.Data) error {
		otp, err := otpflow.RequestOtp(d.OTP)
		if err != nil {
			return err
		}
		d.OTP = otp
		return nil
	})

	dest := withReturn("/login/otp", ret)
	if strings.Contains(dest, "?") {
		dest += "&resent=1"
	} else {
		dest += "?resent=1"
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/otp/reset                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleReset abandons the OTP step and returns to credentials entry.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}
	if entry, ok := h.SessionMgr.Lookup(r); ok {
		_ = entry.Update(func(d *sessionstate.Data) error {
			if d.SignedIn() {
				return nil
			}
			d.Tab = logintab.SwitchMethod(d.Tab, d.Tab.Method)
			clearPendingOTP(d)
			return nil
		})
	}
	http.Redirect(w, r, withReturn("/login", r.FormValue("return")), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// fillDigits applies the submitted boxes to s. A non-empty "code" field
// wins over the individual boxes.
func fillDigits(s otpflow.State, r *http.Request) (otpflow.State, error) {
	if code := strings.TrimSpace(r.FormValue("code")); code != "" {
		return otpflow.SetCode(s, code)
	}
	for i := 0; i < otpflow.CodeLen; i++ {
		var err error
		s, err = otpflow.SetDigit(s, i, strings.TrimSpace(r.FormValue("d"+strconv.Itoa(i))))
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

// signedInUser prefers the verification payload and falls back to the
// password login result for whatever it leaves empty.
func signedInUser(res models.LoginResult, pending *models.LoginResult) (models.ChipUser, string) {
	user, token := res.User, res.Token
	if pending != nil {
		if user.ID == "" {
			user = pending.User
		}
		if token == "" {
			token = pending.Token
		}
	}
	return user, token
}

// maskLoginID hides most of an email address or mobile number.
func maskLoginID(id string) string {
	if at := strings.IndexByte(id, '@'); at > 0 {
		return id[:1] + strings.Repeat("*", max(at-1, 2)) + id[at:]
	}
	if len(id) > 4 {
		return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
	}
	return id
}

func (h *Handler) renderOTP(w http.ResponseWriter, r *http.Request, status int, d sessionstate.Data, msg, notice, ret string) {
	data := otpFormData{
		BaseVM:       viewdata.NewBaseVM(r, "Enter code", "/login"),
		Error:        msg,
		Notice:       notice,
		Destination:  maskLoginID(d.Target.LoginID()),
		Digits:       d.OTP.Digits,
		AttemptsLeft: max(otpflow.MaxAttempts-d.OTP.Attempts, 0),
		ReturnURL:    ret,
	}
	if status == http.StatusOK {
		templates.Render(w, r, "login_otp", data)
		return
	}
	uierrors.RenderStatus(w, r, status, "login_otp", data)
}
