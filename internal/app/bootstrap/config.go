// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/chipdash/internal/app/system/authclient"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the dashboard.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: backend_base_url, session_name, etc.
//   - Environment variables: CHIPDASH_BACKEND_BASE_URL, CHIPDASH_SESSION_NAME, etc.
//   - Command-line flags: --backend_base_url, --session_name, etc.
var appConfigKeys = []config.AppKey{
	// CHIP backend
	{Name: "backend_base_url", Default: "http://localhost:8081/api", Desc: "CHIP backend base URL"},
	{Name: "backend_timeout", Default: "10s", Desc: "Deadline for each backend request (e.g., 10s, 1m)"},
	{Name: "password_hash", Default: "sha256", Desc: "Password pre-hash sent to the backend: 'sha256', 'sha3-256' or 'none'"},
	{Name: "otp_send_path", Default: authclient.DefaultOTPSendPath, Desc: "Backend path that sends an OTP"},
	{Name: "otp_verify_path", Default: authclient.DefaultOTPVerifyPath, Desc: "Backend path that verifies an OTP"},
	{Name: "users_path", Default: "/users", Desc: "Backend path of the user listing"},

	// MongoDB
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "chipdash", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 5, Desc: "MongoDB min connection pool size (default: 5)"},

	// Sessions
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_enc_key", Default: "", Desc: "Session encryption key (16, 24 or 32 bytes; blank disables encryption)"},
	{Name: "session_name", Default: "chipdash-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "12h", Desc: "Session cookie lifetime"},
	{Name: "state_idle_ttl", Default: "30m", Desc: "Idle lifetime of server-side session state"},

	// Login throttling
	{Name: "login_rate_ip", Default: 20, Desc: "Login attempts allowed per IP per minute"},
	{Name: "login_rate_id", Default: 5, Desc: "Login attempts allowed per login id per 5 minutes"},

	// CSRF
	{Name: "csrf_key", Default: "dev-only-csrf-key-change-me-0123", Desc: "CSRF token key (exactly 32 bytes)"},

	// Audit logging
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, CHIPDASH_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CHIPDASH", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		BackendBaseURL: appValues.String("backend_base_url"),
		BackendTimeout: appValues.Duration("backend_timeout", 10*time.Second),
		PasswordHash:   appValues.String("password_hash"),
		OTPSendPath:    appValues.String("otp_send_path"),
		OTPVerifyPath:  appValues.String("otp_verify_path"),
		UsersPath:      appValues.String("users_path"),

		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionEncKey: appValues.String("session_enc_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 12*time.Hour),
		StateIdleTTL:  appValues.Duration("state_idle_ttl", 30*time.Minute),

		LoginRateIP: appValues.Int("login_rate_ip"),
		LoginRateID: appValues.Int("login_rate_id"),

		CSRFKey: appValues.String("csrf_key"),

		AuditLogAuth: appValues.String("audit_log_auth"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Bad backend URLs, unknown hash algorithms and malformed Mongo URIs are
// rejected here, before anything connects.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if _, err := chipapi.ParseBaseURL(appCfg.BackendBaseURL); err != nil {
		logger.Error("invalid backend base URL", zap.Error(err))
		return err
	}
	if _, err := authclient.ParseHashAlgorithm(appCfg.PasswordHash); err != nil {
		logger.Error("invalid password hash", zap.Error(err))
		return err
	}
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.BackendTimeout <= 0 {
		return fmt.Errorf("backend_timeout must be positive, got %s", appCfg.BackendTimeout)
	}
	if len(appCfg.CSRFKey) != 32 {
		return fmt.Errorf("csrf_key must be exactly 32 bytes, got %d", len(appCfg.CSRFKey))
	}
	switch len(appCfg.SessionEncKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("session_enc_key must be 16, 24 or 32 bytes, got %d", len(appCfg.SessionEncKey))
	}
	switch appCfg.AuditLogAuth {
	case "all", "db", "log", "off":
	default:
		return fmt.Errorf("audit_log_auth must be all, db, log or off, got %q", appCfg.AuditLogAuth)
	}
	if appCfg.LoginRateIP <= 0 || appCfg.LoginRateID <= 0 {
		return fmt.Errorf("login_rate_ip and login_rate_id must be positive")
	}
	return nil
}
