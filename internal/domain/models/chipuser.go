// internal/domain/models/chipuser.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The CHIP backend's identifier for a user record
//   - LoginID / loginID / login_id: The email or mobile number the user types to log in

// Credentials are built from the login form and discarded once the backend
// call returns. They are never persisted or logged.
type Credentials struct {
	Username string
	Password string
}

// ChipUser is the user payload returned by the CHIP backend.
type ChipUser struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	Role        string `json:"role,omitempty"`
	Designation string `json:"designation,omitempty"`
	Status      string `json:"status,omitempty"`
}

// LoginResult is the session payload returned by a successful login or OTP
// verification. Token may be empty when the backend relies only on its cookie.
type LoginResult struct {
	Token string   `json:"token"`
	User  ChipUser `json:"user"`
}
