// internal/app/features/auditlog/types.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: The CHIP backend's identifier for a user
//   - LoginID / loginID / login_id: The email or mobile number typed at login

import (
	"time"

	"github.com/dalemusser/chipdash/internal/app/system/viewdata"
	"github.com/dalemusser/chipdash/internal/domain/models"
)

// listItem is one sign in record for display.
type listItem struct {
	At       time.Time
	Event    string
	LoginID  string
	UserID   string
	Provider string
	IP       string
	Success  bool
	Reason   string
}

// listData is the view model for the activity page.
type listData struct {
	viewdata.BaseVM

	Items    []listItem
	Disabled bool

	// Filters
	LoginID string
	Event   string
	Events  []eventOption

	// Pagination
	HasPrev    bool
	HasNext    bool
	PrevCursor string
	NextCursor string
}

// eventOption is one entry of the event filter dropdown.
type eventOption struct {
	Value string
	Label string
}

var eventOptions = []eventOption{
	{Value: models.LoginEventSignIn, Label: "Signed in"},
	{Value: models.LoginEventPassword, Label: "Password failed"},
	{Value: models.LoginEventOTPSent, Label: "OTP sent"},
	{Value: models.LoginEventOTPFailed, Label: "OTP failed"},
	{Value: models.LoginEventRateLimited, Label: "Rate limited"},
	{Value: models.LoginEventSignOut, Label: "Signed out"},
}

// knownEvent reports whether e is a recorded event kind.
func knownEvent(e string) bool {
	for _, o := range eventOptions {
		if o.Value == e {
			return true
		}
	}
	return false
}
