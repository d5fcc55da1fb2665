package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID      string
	Name    string
	LoginID string
	Role    string
}

// AdminUser returns a TestUser with the admin role.
func AdminUser() TestUser {
	return TestUser{ID: "U1", Name: "Asha Rao", LoginID: BackendUsername, Role: "admin"}
}

// WorkerUser returns a TestUser with the worker role.
func WorkerUser() TestUser {
	return TestUser{ID: "U2", Name: "Meena K", LoginID: BackendMobile, Role: "worker"}
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:      user.ID,
		Name:    user.Name,
		LoginID: user.LoginID,
		Role:    user.Role,
	})
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewFormRequest creates a form-encoded request.
func NewFormRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// WithCookies copies the cookies set on rec onto req, as a browser would.
func WithCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(c)
	}
	return req
}

var bootOnce sync.Once

// BootTemplates loads every registered template set once per test binary.
// Import the feature's views package so its set is registered.
func BootTemplates(t *testing.T) {
	t.Helper()
	var err error
	bootOnce.Do(func() {
		eng := templates.New(false)
		if err = eng.Boot(zap.NewNop()); err == nil {
			templates.UseEngine(eng, zap.NewNop())
		}
	})
	if err != nil {
		t.Fatalf("boot templates: %v", err)
	}
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
