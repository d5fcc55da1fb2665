package errors

import (
	"errors"
	"net/http"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"go.uber.org/zap"
)

// ErrorLogger logs a failure with request context and renders the matching
// error page. The HTMX variants answer with plain text so the failure lands
// in the swap target instead of replacing the page.
type ErrorLogger struct {
	log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
}

// LogBadRequest logs at info and renders a 400 page.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Info(msg, e.fields(r, err)...)
	RenderError(w, r, http.StatusBadRequest, "Bad request", userMsg, backURL)
}

// LogForbidden logs at info and renders a 403 page.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Info(msg, e.fields(r, err)...)
	RenderForbidden(w, r, userMsg, backURL)
}

// LogServerError logs at error and renders a 500 page.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Error(msg, e.fields(r, err)...)
	RenderError(w, r, http.StatusInternalServerError, "Something went wrong", userMsg, backURL)
}

// LogBackendError logs a failed CHIP backend call and renders a page whose
// status reflects it: 502 when the backend could not be reached, otherwise
// the backend's own status.
func (e *ErrorLogger) LogBackendError(w http.ResponseWriter, r *http.Request, msg string, err error, backURL string) {
	status := BackendStatus(err)
	e.log.Warn(msg, append(e.fields(r, err), zap.Int("status", status))...)
	RenderError(w, r, status, "CHIP service error",
		chipapi.UserMessage(err, "The CHIP service returned an error."), backURL)
}

// HTMXLogBadRequest answers an HTMX request with a plain 400.
func (e *ErrorLogger) HTMXLogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Info(msg, e.fields(r, err)...)
	http.Error(w, userMsg, http.StatusBadRequest)
}

// HTMXLogServerError answers an HTMX request with a plain 500.
func (e *ErrorLogger) HTMXLogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Error(msg, e.fields(r, err)...)
	http.Error(w, userMsg, http.StatusInternalServerError)
}

// BackendStatus maps a backend error to the status we answer with.
func BackendStatus(err error) int {
	var ne *chipapi.NetworkError
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	if errors.Is(err, chipapi.ErrBadResponse) {
		return http.StatusBadGateway
	}
	if s := chipapi.StatusOf(err); s >= 400 {
		return s
	}
	return http.StatusBadGateway
}
