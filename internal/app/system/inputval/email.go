// internal/app/system/inputval/email.go
package inputval

import "strings"

// IsValidEmail applies a practical subset of RFC 5322: a bare addr-spec, no
// display name, no whitespace, no leading/trailing/consecutive dots in either
// part. Single-label domains (user@localhost) are allowed.
func IsValidEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	if strings.ContainsAny(s, " \t\r\n<>()[],;:\"") {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if strings.Contains(local, "@") {
		return false
	}
	return dotAtomOK(local) && dotAtomOK(domain)
}

func dotAtomOK(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	return !strings.Contains(s, "..")
}
