// internal/domain/models/loginhistory.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Login event kinds stored in LoginRecord.Event.
const (
	LoginEventSignIn      = "sign_in"
	LoginEventPassword    = "password"
	LoginEventOTPSent     = "otp_sent"
	LoginEventOTPFailed   = "otp_failed"
	LoginEventRateLimited = "rate_limited"
	LoginEventSignOut     = "sign_out"
)

// LoginRecord captures one step of a sign in against the CHIP backend.
// CreatedAt is indexed for recent-activity views.
type LoginRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Event     string             `bson:"event"`
	LoginID   string             `bson:"login_id"`
	UserID    string             `bson:"user_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	IP        string             `bson:"ip"`
	UserAgent string             `bson:"user_agent,omitempty"`
	Provider  string             `bson:"provider"` // "password" or "otp"
	Success   bool               `bson:"success"`
	Reason    string             `bson:"reason,omitempty"`
}
