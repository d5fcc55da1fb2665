// internal/app/system/authclient/client.go
package authclient

// Terminology: User Identifiers
//   - UserID / userID / user_id: The CHIP backend's identifier for a user record
//   - LoginID / loginID / login_id: The email or mobile number the user types to log in

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Generic messages used when the backend supplies none.
const (
	MsgLoginFailed  = "Login failed"
	MsgOTPSendFail  = "OTP request failed"
	MsgOTPCheckFail = "OTP verification failed"
)

// Default paths of the backend auth endpoints.
const (
	DefaultLoginPath     = "/users/login"
	DefaultOTPSendPath   = "/users/otp/send"
	DefaultOTPVerifyPath = "/users/otp/verify"
)

// Client talks to the CHIP backend's auth endpoints.
//
// Requests carry the caller's chipapi.Session, so a session cookie set by
// the backend lands in that browser session's jar.
type Client struct {
	API  *chipapi.Client
	Hash HashAlgorithm
	Log  *zap.Logger

	LoginPath     string
	OTPSendPath   string
	OTPVerifyPath string

	validate *validator.Validate
}

// New returns a Client using the default endpoint paths.
func New(api *chipapi.Client, hash HashAlgorithm, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		API:           api,
		Hash:          hash,
		Log:           logger,
		LoginPath:     DefaultLoginPath,
		OTPSendPath:   DefaultOTPSendPath,
		OTPVerifyPath: DefaultOTPVerifyPath,
		validate:      validator.New(),
	}
}

// OTPTarget names who an OTP is sent to: a login username or a mobile number.
type OTPTarget struct {
	Username string `json:"username,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
}

// LoginID is the identifier shown to the user and written to audit records.
func (t OTPTarget) LoginID() string {
	if t.Mobile != "" {
		return t.Mobile
	}
	return t.Username
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	OTPTarget
	OTP string `json:"otp"`
}

// Login posts the credentials with the password transformed by c.Hash.
// Failures are returned as *chipapi.AuthError whose Message is the backend's
// message when it sent one, else "Login failed".
func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.LoginResult, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return models.LoginResult{}, &chipapi.ValidationError{Field: "username", Message: "Enter your username and password."}
	}

	body := loginRequest{Username: username, Password: c.Hash.Apply(creds.Password)}
	var res models.LoginResult
	if err := c.API.PostJSON(ctx, c.LoginPath, body, &res); err != nil {
		return models.LoginResult{}, c.authError(err, MsgLoginFailed)
	}
	if err := c.validate.Struct(res); err != nil {
		c.Log.Warn("login response failed schema", zap.Error(err))
		return models.LoginResult{}, &chipapi.AuthError{Message: MsgLoginFailed, Err: errors.Join(chipapi.ErrBadResponse, err)}
	}
	return res, nil
}

// RequestOTP asks the backend to send a one-time passcode to target.
func (c *Client) RequestOTP(ctx context.Context, target OTPTarget) error {
	if target.LoginID() == "" {
		return &chipapi.ValidationError{Field: "username", Message: "Enter your email or mobile number."}
	}
	if err := c.API.PostJSON(ctx, c.OTPSendPath, target, nil); err != nil {
		return c.authError(err, MsgOTPSendFail)
	}
	return nil
}

// VerifyOTP submits code for target. On success the backend returns the
// same session payload as Login.
func (c *Client) VerifyOTP(ctx context.Context, target OTPTarget, code string) (models.LoginResult, error) {
	if target.LoginID() == "" {
		return models.LoginResult{}, &chipapi.ValidationError{Field: "username", Message: "Enter your email or mobile number."}
	}
	var res models.LoginResult
	if err := c.API.PostJSON(ctx, c.OTPVerifyPath, verifyRequest{OTPTarget: target, OTP: code}, &res); err != nil {
		return models.LoginResult{}, c.authError(err, MsgOTPCheckFail)
	}
	if err := c.validate.Struct(res); err != nil {
		c.Log.Warn("otp verify response failed schema", zap.Error(err))
		return models.LoginResult{}, &chipapi.AuthError{Message: MsgOTPCheckFail, Err: errors.Join(chipapi.ErrBadResponse, err)}
	}
	return res, nil
}

// authError normalises err into an *chipapi.AuthError carrying the best
// available human-readable message.
func (c *Client) authError(err error, fallback string) error {
	msg := fallback
	var he *chipapi.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		msg = he.Message
	}
	return &chipapi.AuthError{Message: msg, Err: err}
}
