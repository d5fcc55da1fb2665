// internal/app/features/dashboard/views/views.go
package dashboardviews

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

// The dashboard page and the selector partials live in one set so the page
// can embed "selector_panel" directly.
//
//go:embed templates/dashboard.gohtml templates/selector_panel.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "dashboard",
		FS:       FS,
		Patterns: []string{"templates/dashboard.gohtml", "templates/selector_panel.gohtml"},
	})
}
