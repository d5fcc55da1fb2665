// internal/app/bootstrap/views.go
package bootstrap

// Feature template sets register themselves from init; the engine boots in
// BuildHandler after every set is known.
import (
	_ "github.com/dalemusser/chipdash/internal/app/features/auditlog/views"
	_ "github.com/dalemusser/chipdash/internal/app/features/dashboard/views"
	_ "github.com/dalemusser/chipdash/internal/app/features/login/views"
)
