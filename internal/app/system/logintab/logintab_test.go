package logintab_test

import (
	"testing"

	"github.com/dalemusser/chipdash/internal/app/system/logintab"
)

func TestSwitchMethod_ResetsOtpSent(t *testing.T) {
	tests := []struct {
		name string
		from logintab.State
		to   logintab.Method
	}{
		{"email to mobile after send", logintab.State{Method: logintab.MethodEmail, OtpSent: true}, logintab.MethodMobile},
		{"email to mobile before send", logintab.State{Method: logintab.MethodEmail}, logintab.MethodMobile},
		{"mobile to email after send", logintab.State{Method: logintab.MethodMobile, OtpSent: true}, logintab.MethodEmail},
		{"same method", logintab.State{Method: logintab.MethodMobile, OtpSent: true}, logintab.MethodMobile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := logintab.SwitchMethod(tt.from, tt.to)
			if got.Method != tt.to || got.OtpSent {
				t.Errorf("SwitchMethod = %+v", got)
			}
		})
	}
}

func TestMarkOtpSent(t *testing.T) {
	got := logintab.MarkOtpSent(logintab.Initial())
	if got.Method != logintab.MethodEmail || !got.OtpSent {
		t.Errorf("MarkOtpSent = %+v", got)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]logintab.Method{"email": logintab.MethodEmail, " Mobile ": logintab.MethodMobile} {
		got, err := logintab.ParseMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := logintab.ParseMethod("sms"); err == nil {
		t.Error("ParseMethod(sms) should fail")
	}
}
