// internal/app/system/otpflow/otpflow.go
//
// Package otpflow is the one-time-password step of sign in: a six slot code
// buffer plus the stage flags the login page renders from. All transitions
// are functions from State to State; callers own storage and locking.
package otpflow

import (
	"context"
	"errors"
	"strings"
)

// CodeLen is the number of digits in an OTP.
const CodeLen = 6

// MaxAttempts is the number of failed verifications allowed per sent code.
const MaxAttempts = 5

var (
	ErrIncompleteCode  = errors.New("otpflow: code is incomplete")
	ErrNotSent         = errors.New("otpflow: no code has been sent")
	ErrAlreadyVerified = errors.New("otpflow: already verified")
	ErrBadSlot         = errors.New("otpflow: slot out of range")
	ErrNotDigit        = errors.New("otpflow: not a digit")
	ErrTooManyAttempts = errors.New("otpflow: too many attempts")

	// ErrNotChecked marks a verifier error where the code was never judged
	// (issuer unreachable, request refused). It does not count as an attempt.
	ErrNotChecked = errors.New("otpflow: code was not checked")
)

// Stage is derived from the flags; it is never stored.
type Stage int

const (
	CredentialsEntry Stage = iota
	OtpSent
	Verified
)

func (s Stage) String() string {
	switch s {
	case OtpSent:
		return "otp_sent"
	case Verified:
		return "verified"
	default:
		return "credentials_entry"
	}
}

// State is the OTP step. The zero value is the reset state.
// Verified implies OtpSent.
type State struct {
	Digits       [CodeLen]string
	OtpSent      bool
	ShowOtpInput bool
	Verified     bool
	Attempts     int
}

func (s State) Stage() Stage {
	switch {
	case s.Verified:
		return Verified
	case s.OtpSent:
		return OtpSent
	default:
		return CredentialsEntry
	}
}

// Reset returns the initial state from any stage.
func Reset(State) State { return State{} }

// RequestOtp records that a code was sent. Calling it again while a code is
// outstanding is a resend: the buffer and the attempt count start over.
func RequestOtp(s State) (State, error) {
	if s.Verified {
		return s, ErrAlreadyVerified
	}
	return State{OtpSent: true, ShowOtpInput: true}, nil
}

// SetDigit writes ch into slot i. An empty ch clears the slot.
func SetDigit(s State, i int, ch string) (State, error) {
	if s.Stage() != OtpSent {
		return s, ErrNotSent
	}
	if i < 0 || i >= CodeLen {
		return s, ErrBadSlot
	}
	if ch != "" && !isDigit(ch) {
		return s, ErrNotDigit
	}
	s.Digits[i] = ch
	return s, nil
}

// SetCode fills the slots from a pasted code. Surrounding spaces are
// ignored; anything else that is not exactly CodeLen digits is rejected.
func SetCode(s State, code string) (State, error) {
	code = strings.TrimSpace(code)
	if len(code) != CodeLen {
		return s, ErrIncompleteCode
	}
	next := s
	for i := 0; i < CodeLen; i++ {
		var err error
		if next, err = SetDigit(next, i, code[i:i+1]); err != nil {
			return s, err
		}
	}
	return next, nil
}

func isDigit(ch string) bool {
	return len(ch) == 1 && ch[0] >= '0' && ch[0] <= '9'
}

// Complete reports whether every slot holds a digit.
func (s State) Complete() bool {
	for _, d := range s.Digits {
		if d == "" {
			return false
		}
	}
	return true
}

// Code concatenates the slots.
func (s State) Code() string {
	return strings.Join(s.Digits[:], "")
}

// ClearOtp empties the buffer and leaves the stage alone.
func ClearOtp(s State) State {
	s.Digits = [CodeLen]string{}
	return s
}

// Ready returns the code to verify, or why verification cannot start.
func Ready(s State) (string, error) {
	switch {
	case s.Verified:
		return "", ErrAlreadyVerified
	case !s.OtpSent:
		return "", ErrNotSent
	case s.Attempts >= MaxAttempts:
		return "", ErrTooManyAttempts
	case !s.Complete():
		return "", ErrIncompleteCode
	}
	return s.Code(), nil
}

// MarkVerified moves a complete, outstanding code to Verified.
func MarkVerified(s State) (State, error) {
	if _, err := Ready(s); err != nil {
		return s, err
	}
	s.Verified = true
	s.ShowOtpInput = false
	return s, nil
}

// RecordFailure counts a rejected code. The buffer is kept.
func RecordFailure(s State) State {
	if s.Stage() == OtpSent {
		s.Attempts++
	}
	return s
}

// Verifier checks a code with whoever issued it.
type Verifier interface {
	VerifyCode(ctx context.Context, code string) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, code string) error

func (f VerifierFunc) VerifyCode(ctx context.Context, code string) error { return f(ctx, code) }

// SubmitOtp verifies the buffered code. It does nothing and returns
// ErrIncompleteCode unless all slots are filled. On verifier failure the
// state stays in OtpSent with the attempt counted, unless the error wraps
// ErrNotChecked.
func SubmitOtp(ctx context.Context, s State, v Verifier) (State, error) {
	code, err := Ready(s)
	if err != nil {
		return s, err
	}
	if err := v.VerifyCode(ctx, code); err != nil {
		if errors.Is(err, ErrNotChecked) {
			return s, err
		}
		return RecordFailure(s), err
	}
	return MarkVerified(s)
}
