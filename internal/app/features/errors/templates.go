// internal/app/features/errors/templates.go
package errors

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

// error_page.gohtml backs RenderError, RenderForbidden and RenderUnauthorized.
//
//go:embed templates/error_page.gohtml
var pageFS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "errors",
		FS:       pageFS,
		Patterns: []string{"templates/error_page.gohtml"},
	})
}
