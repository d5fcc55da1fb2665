// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/dalemusser/chipdash/internal/app/features/errors"
	loginstore "github.com/dalemusser/chipdash/internal/app/store/logins"
	"go.uber.org/zap"
)

// Handler serves the sign in activity list. Logins is nil when audit
// records are not written to MongoDB.
type Handler struct {
	Logins *loginstore.Store
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs an activity list handler.
func NewHandler(logins *loginstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Logins: logins,
		Log:    logger,
		ErrLog: errLog,
	}
}
