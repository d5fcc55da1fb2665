// internal/app/system/inputval/mobile.go
package inputval

import "strings"

// MobileLen is the number of digits in a mobile number.
const MobileLen = 10

// SanitizeMobile filters raw phone input the way the mobile login field does:
// non-digits are dropped, the input is rejected entirely (returns "", false)
// when its first digit is not 6-9, and digits past the tenth are cut off.
// Empty input yields ("", true).
func SanitizeMobile(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		if b.Len() == 0 && (r < '6' || r > '9') {
			return "", false
		}
		if b.Len() == MobileLen {
			break
		}
		b.WriteRune(r)
	}
	return b.String(), true
}

// IsValidMobile reports whether s is exactly ten digits starting with 6-9.
func IsValidMobile(s string) bool {
	if len(s) != MobileLen {
		return false
	}
	if s[0] < '6' || s[0] > '9' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
