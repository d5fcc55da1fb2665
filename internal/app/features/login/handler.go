// internal/app/features/login/handler.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The CHIP backend's identifier for a user
//   - LoginID / loginID / login_id: The email or mobile number typed at login

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	uierrors "github.com/dalemusser/chipdash/internal/app/features/errors"
	"github.com/dalemusser/chipdash/internal/app/system/auditlog"
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/dalemusser/chipdash/internal/app/system/authclient"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/inputval"
	"github.com/dalemusser/chipdash/internal/app/system/logintab"
	"github.com/dalemusser/chipdash/internal/app/system/otpflow"
	"github.com/dalemusser/chipdash/internal/app/system/ratelimit"
	"github.com/dalemusser/chipdash/internal/app/system/sessionstate"
	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"github.com/dalemusser/chipdash/internal/app/system/viewdata"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Auth       *authclient.Client
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	authClient *authclient.Client,
	audit *auditlog.Logger,
	limiter *ratelimit.LoginLimiter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Auth:       authClient,
		AuditLog:   audit,
		Limiter:    limiter,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type loginFormData struct {
	viewdata.BaseVM
	Error string
	// AttemptsLeft is shown after a rejected password; -1 hides it.
	AttemptsLeft int
	IsMobile     bool
	Username     string
	Mobile       string
	ReturnURL    string
}

type emailForm struct {
	Username string `validate:"required,chipemail" label:"Email"`
	Password string `validate:"required" label:"Password"`
}

type mobileForm struct {
	Mobile string `validate:"required,mobile" label:"Mobile number"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ret := query.Get(r, "return")

	entry, err := h.SessionMgr.Entry(w, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "session state unavailable", err, "Unable to start a session.", "/")
		return
	}
	d := entry.Snapshot()
	if d.SignedIn() {
		http.Redirect(w, r, urlutil.SafeReturn(ret, "", "/dashboard"), http.StatusSeeOther)
		return
	}
	if d.OTP.Stage() == otpflow.OtpSent {
		http.Redirect(w, r, withReturn("/login/otp", ret), http.StatusSeeOther)
		return
	}

	h.renderForm(w, r, http.StatusOK, d.Tab, "", "", "", ret)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/method                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleMethod switches between the email and mobile tabs. Switching always
// abandons an OTP that was already sent.
func (h *Handler) HandleMethod(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}
	method, err := logintab.ParseMethod(r.FormValue("method"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "unknown login method", err, "Choose email or mobile.", "/login")
		return
	}
	entry, err := h.SessionMgr.Entry(w, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "session state unavailable", err, "Unable to start a session.", "/")
		return
	}
	_ = entry.Update(func(d *sessionstate.Data) error {
		d.Tab = logintab.SwitchMethod(d.Tab, method)
		clearPendingOTP(d)
		return nil
	})
	http.Redirect(w, r, withReturn("/login", r.FormValue("return")), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLoginPost checks the credentials of the active tab and asks the
// backend to send an OTP. Email sign in verifies the password first.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}
	ret := r.FormValue("return")

	entry, err := h.SessionMgr.Entry(w, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "session state unavailable", err, "Unable to start a session.", "/")
		return
	}
	tab := entry.Snapshot().Tab

	var (
		target  authclient.OTPTarget
		pending *models.LoginResult
	)
	username := strings.TrimSpace(r.FormValue("username"))
	rawMobile := r.FormValue("mobile")

	switch tab.Method {
	case logintab.MethodMobile:
		mobile, ok := inputval.SanitizeMobile(rawMobile)
		if !ok {
			mobile = ""
		}
		if res := inputval.Validate(mobileForm{Mobile: mobile}); res.HasErrors() {
			h.renderForm(w, r, http.StatusUnprocessableEntity, tab, res.First(), "", rawMobile, ret)
			return
		}
		target = authclient.OTPTarget{Mobile: mobile}
	default:
		form := emailForm{Username: username, Password: r.FormValue("password")}
		if res := inputval.Validate(form); res.HasErrors() {
			h.renderForm(w, r, http.StatusUnprocessableEntity, tab, res.First(), username, "", ret)
			return
		}
		target = authclient.OTPTarget{Username: username}
	}
	loginID := target.LoginID()

	if ok, reason := h.Limiter.Check(r, loginID); !ok {
		h.AuditLog.RateLimited(r.Context(), r, loginID, reason)
		h.renderForm(w, r, http.StatusTooManyRequests, tab, reason, username, rawMobile, ret)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Backend(), h.Log, "login")
	defer cancel()
	ctx = chipapi.WithSession(ctx, entry.Backend())

	if tab.Method != logintab.MethodMobile {
		res, err := h.Auth.Login(ctx, models.Credentials{Username: username, Password: r.FormValue("password")})
		if err != nil {
			msg := chipapi.UserMessage(err, authclient.MsgLoginFailed)
			h.AuditLog.PasswordFailed(r.Context(), r, loginID, msg)
			status := authFailureStatus(err)
			data := h.formData(r, tab, msg, username, "", ret)
			if status == http.StatusUnauthorized {
				data.AttemptsLeft = h.Limiter.RemainingForLoginID(loginID)
			}
			h.render(w, r, status, data)
			return
		}
		h.AuditLog.PasswordAccepted(r.Context(), r, res.User.ID, loginID)
		pending = &res
	}

	if err := h.Auth.RequestOTP(ctx, target); err != nil {
		msg := chipapi.UserMessage(err, authclient.MsgOTPSendFail)
		h.AuditLog.OTPSent(r.Context(), r, loginID, false, msg)
		h.renderForm(w, r, uierrors.BackendStatus(err), tab, msg, username, rawMobile, ret)
		return
	}
	h.AuditLog.OTPSent(r.Context(), r, loginID, true, "")

	err = entry.Update(func(d *sessionstate.Data) error {
		otp, err := otpflow.RequestOtp(otpflow.Reset(d.OTP))
		if err != nil {
			return err
		}
		d.OTP = otp
		d.Tab = logintab.MarkOtpSent(d.Tab)
		d.Target = target
		d.Pending = pending
		return nil
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "record otp request failed", err, "Unable to continue sign in.", "/login")
		return
	}

	http.Redirect(w, r, withReturn("/login/otp", ret), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, tab logintab.State, msg, username, mobile, ret string) {
	h.render(w, r, status, h.formData(r, tab, msg, username, mobile, ret))
}

func (h *Handler) formData(r *http.Request, tab logintab.State, msg, username, mobile, ret string) loginFormData {
	return loginFormData{
		BaseVM:       viewdata.NewBaseVM(r, "Sign in", "/"),
		Error:        msg,
		AttemptsLeft: -1,
		IsMobile:     tab.Method == logintab.MethodMobile,
		Username:     username,
		Mobile:       mobile,
		ReturnURL:    ret,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginFormData) {
	if status == http.StatusOK {
		templates.Render(w, r, "login", data)
		return
	}
	uierrors.RenderStatus(w, r, status, "login", data)
}

// clearPendingOTP drops an outstanding OTP and the credentials it was for.
func clearPendingOTP(d *sessionstate.Data) {
	d.OTP = otpflow.Reset(d.OTP)
	d.Target = authclient.OTPTarget{}
	d.Pending = nil
}

// authFailureStatus answers 401 for a rejection and a gateway status when
// the backend gave no usable answer.
func authFailureStatus(err error) int {
	var ne *chipapi.NetworkError
	if errors.As(err, &ne) || errors.Is(err, chipapi.ErrBadResponse) {
		return uierrors.BackendStatus(err)
	}
	return http.StatusUnauthorized
}

func withReturn(path, ret string) string {
	if ret == "" {
		return path
	}
	return path + "?return=" + url.QueryEscape(ret)
}
