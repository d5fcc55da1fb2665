// internal/app/system/inputval/inputval.go
package inputval

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule, with a message ready for display.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Result collects every failed rule of a Validate call.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Field names in messages come from the `label` tag.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if l := f.Tag.Get("label"); l != "" {
				return l
			}
			return f.Name
		})
		_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
			return IsValidMobile(fl.Field().String())
		})
		_ = v.RegisterValidation("chipemail", func(fl validator.FieldLevel) bool {
			return IsValidEmail(fl.Field().String())
		})
		_ = v.RegisterValidation("loginmethod", func(fl validator.FieldLevel) bool {
			m := fl.Field().String()
			return m == "email" || m == "mobile"
		})
	})
	return v
}

// Validate runs the `validate` struct tags of s and converts failures into
// display messages.
func Validate(s any) *Result {
	res := &Result{}
	err := instance().Struct(s)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return res
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters.", fe.Field(), fe.Param())
	case "email", "chipemail":
		return "A valid email address is required."
	case "mobile":
		return "Enter a valid 10-digit mobile number starting with 6, 7, 8 or 9."
	case "loginmethod":
		return fmt.Sprintf("%s must be email or mobile.", fe.Field())
	case "numeric":
		return fmt.Sprintf("%s must contain digits only.", fe.Field())
	}
	return fmt.Sprintf("%s is invalid.", fe.Field())
}
