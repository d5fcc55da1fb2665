// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Backend: appCfg.BackendTimeout})

	logger.Info("chipdash configured",
		zap.String("env", coreCfg.Env),
		zap.String("backend", appCfg.BackendBaseURL),
		zap.Duration("backend_timeout", appCfg.BackendTimeout),
		zap.String("password_hash", appCfg.PasswordHash),
		zap.Duration("state_idle_ttl", appCfg.StateIdleTTL),
		zap.String("audit_log_auth", appCfg.AuditLogAuth))
	return nil
}
