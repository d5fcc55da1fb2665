// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, timeouts); everything the
// dashboard itself needs lives here.
type AppConfig struct {
	// CHIP backend
	BackendBaseURL string        // e.g. https://chip.example.org/api
	BackendTimeout time.Duration // per-call deadline for backend requests
	PasswordHash   string        // password pre-hash: sha256, sha3-256 or none
	OTPSendPath    string
	OTPVerifyPath  string
	UsersPath      string

	// MongoDB (sign in audit records)
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management
	SessionKey    string        // signs the session cookie
	SessionEncKey string        // optional; encrypts the cookie (16, 24 or 32 bytes)
	SessionName   string        // cookie name
	SessionDomain string        // blank means current host
	SessionMaxAge time.Duration // cookie lifetime
	StateIdleTTL  time.Duration // idle lifetime of a server-side session state

	// Login throttling
	LoginRateIP int // attempts per IP per minute
	LoginRateID int // attempts per login id per 5 minutes

	// CSRF protection; exactly 32 bytes.
	CSRFKey string

	// Audit logging: all, db, log or off
	AuditLogAuth string
}
