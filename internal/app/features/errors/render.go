package errors

import (
	"net/http"

	"github.com/dalemusser/chipdash/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	nav "github.com/dalemusser/waffle/pantry/httpnav"
)

// statusWriter forces the first status written to a fixed code so a
// template render reports the error status instead of 200.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusWriter) WriteHeader(int) {
	if s.wrote {
		return
	}
	s.wrote = true
	s.ResponseWriter.WriteHeader(s.status)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if !s.wrote {
		s.WriteHeader(s.status)
	}
	return s.ResponseWriter.Write(b)
}

// RenderStatus renders the named template with the given status code.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	templates.Render(&statusWriter{ResponseWriter: w, status: status}, r, name, data)
}

// RenderUnauthorized shows a friendly “sign in required” page.
// If backURL is empty, it will default to /login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	if backURL == "" {
		backURL = "/login"
	}
	vm := viewdata.NewBaseVM(r, "Sign in required", backURL)
	vm.BackURL = backURL
	RenderStatus(w, r, http.StatusUnauthorized, "error_page", pageData{
		BaseVM:  vm,
		Message: "Please sign in to continue.",
	})
}

// RenderForbidden shows a friendly access error page with a message.
// If backURL is empty, it resolves a safe back URL with a default fallback.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if backURL == "" {
		backURL = nav.ResolveBackURL(r, "/")
	}
	vm := viewdata.NewBaseVM(r, "Access denied", backURL)
	vm.BackURL = backURL
	RenderStatus(w, r, http.StatusForbidden, "error_page", pageData{
		BaseVM:  vm,
		Message: msg,
	})
}

// RenderError shows the generic error page.
func RenderError(w http.ResponseWriter, r *http.Request, status int, title, msg, backURL string) {
	if backURL == "" {
		backURL = nav.ResolveBackURL(r, "/")
	}
	vm := viewdata.NewBaseVM(r, title, backURL)
	vm.BackURL = backURL
	RenderStatus(w, r, status, "error_page", pageData{
		BaseVM:  vm,
		Message: msg,
	})
}

// RenderSnippetStatus renders a partial with the given status code.
func RenderSnippetStatus(w http.ResponseWriter, status int, name string, data any) {
	templates.RenderSnippet(&statusWriter{ResponseWriter: w, status: status}, name, data)
}
