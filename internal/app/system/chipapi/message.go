// internal/app/system/chipapi/message.go
package chipapi

import (
	"encoding/json"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag; backend messages are shown as plain text.
var strict = bluemonday.StrictPolicy()

// maxMessageLen bounds the message we surface from an error body.
const maxMessageLen = 300

// errorBody covers the shapes the CHIP backend uses for failures.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ExtractMessage returns the human-readable message inside a JSON error body,
// or "" when the body is not JSON or carries no message.
func ExtractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	switch {
	case strings.TrimSpace(eb.Message) != "":
		return CleanMessage(eb.Message)
	case strings.TrimSpace(eb.Error) != "":
		return CleanMessage(eb.Error)
	case len(eb.Errors) > 0:
		return CleanMessage(eb.Errors[0].Message)
	}
	return ""
}

// CleanMessage strips markup from a backend-supplied message and trims it.
func CleanMessage(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxMessageLen {
		s = string(r[:maxMessageLen])
	}
	return s
}
