// internal/app/system/auditlog/logger.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: The CHIP backend's identifier for a user
//   - LoginID / loginID / login_id: The email or mobile number typed at login

import (
	"context"
	"net/http"

	loginstore "github.com/dalemusser/chipdash/internal/app/store/logins"
	"github.com/dalemusser/chipdash/internal/app/system/ratelimit"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for sign in events (password, OTP, sign out).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
}

// Logger records sign in events to MongoDB (via loginstore.Store) and to
// structured logs (via zap).
type Logger struct {
	store  *loginstore.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil when Auth is "log" or "off".
func New(store *loginstore.Store, zapLog *zap.Logger, config Config) *Logger {
	if config.Auth == "" {
		config.Auth = "all"
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(rec models.LoginRecord) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("event_type", rec.Event),
		zap.Bool("success", rec.Success),
		zap.String("ip", rec.IP),
		zap.String("login_id", rec.LoginID),
	}
	if rec.UserID != "" {
		fields = append(fields, zap.String("user_id", rec.UserID))
	}
	if rec.Provider != "" {
		fields = append(fields, zap.String("provider", rec.Provider))
	}
	if rec.Reason != "" {
		fields = append(fields, zap.String("failure_reason", rec.Reason))
	}

	if rec.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, r *http.Request, rec models.LoginRecord) {
	if l == nil || l.config.Auth == "off" {
		return
	}
	if r != nil {
		rec.IP = ratelimit.ClientIP(r)
		rec.UserAgent = r.UserAgent()
	}

	if l.config.Auth == "all" || l.config.Auth == "log" {
		l.logToZap(rec)
	}

	if (l.config.Auth == "all" || l.config.Auth == "db") && l.store != nil {
		if err := l.store.Create(ctx, rec); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", rec.Event),
			)
		}
	}
}

// --- Sign in events ---

// LoginSuccess logs a completed sign in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, loginID, provider string) {
	l.Log(ctx, r, models.LoginRecord{
		Event:    models.LoginEventSignIn,
		LoginID:  loginID,
		UserID:   userID,
		Provider: provider,
		Success:  true,
	})
}

// PasswordAccepted logs a password check the backend accepted; sign in
// still waits on the OTP.
func (l *Logger) PasswordAccepted(ctx context.Context, r *http.Request, userID, loginID string) {
	l.Log(ctx, r, models.LoginRecord{
		Event:    models.LoginEventPassword,
		LoginID:  loginID,
		UserID:   userID,
		Provider: "password",
		Success:  true,
	})
}

// PasswordFailed logs a password login the backend rejected.
func (l *Logger) PasswordFailed(ctx context.Context, r *http.Request, loginID, reason string) {
	l.Log(ctx, r, models.LoginRecord{
		Event:    models.LoginEventPassword,
		LoginID:  loginID,
		Provider: "password",
		Reason:   reason,
	})
}

// OTPSent logs an OTP request; success reports whether the backend sent it.
func (l *Logger) OTPSent(ctx context.Context, r *http.Request, loginID string, success bool, reason string) {
	l.Log(ctx, r, models.LoginRecord{
		Event:    models.LoginEventOTPSent,
		LoginID:  loginID,
		Provider: "otp",
		Success:  success,
		Reason:   reason,
	})
}

// OTPFailed logs a rejected code.
func (l *Logger) OTPFailed(ctx context.Context, r *http.Request, loginID, reason string) {
	l.Log(ctx, r, models.LoginRecord{
		Event:    models.LoginEventOTPFailed,
		LoginID:  loginID,
		Provider: "otp",
		Reason:   reason,
	})
}

// RateLimited logs a blocked attempt.
func (l *Logger) RateLimited(ctx context.Context, r *http.Request, loginID, reason string) {
	l.Log(ctx, r, models.LoginRecord{
		Event:   models.LoginEventRateLimited,
		LoginID: loginID,
		Reason:  reason,
	})
}

// Logout logs a sign out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID, loginID string) {
	l.Log(ctx, r, models.LoginRecord{
		Event:   models.LoginEventSignOut,
		LoginID: loginID,
		UserID:  userID,
		Success: true,
	})
}
