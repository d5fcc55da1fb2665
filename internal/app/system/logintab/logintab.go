// internal/app/system/logintab/logintab.go
package logintab

import (
	"fmt"
	"strings"
)

// Method is how the user identifies themselves on the login page.
type Method string

const (
	MethodEmail  Method = "email"
	MethodMobile Method = "mobile"
)

// ParseMethod accepts "email" or "mobile" in any case.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodEmail, MethodMobile:
		return m, nil
	}
	return "", fmt.Errorf("logintab: unknown method %q", s)
}

// State is the login page tab. Email is the default method.
type State struct {
	Method  Method
	OtpSent bool
}

func Initial() State { return State{Method: MethodEmail} }

// SwitchMethod selects m and always resets OtpSent, even when m is
// already the current method.
func SwitchMethod(s State, m Method) State {
	return State{Method: m}
}

func MarkOtpSent(s State) State {
	if s.Method == "" {
		s.Method = MethodEmail
	}
	s.OtpSent = true
	return s
}
