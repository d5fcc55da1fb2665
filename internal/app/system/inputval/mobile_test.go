package inputval

import "testing"

func TestSanitizeMobile(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"5123456789", "", false},
		{"9123456789", "9123456789", true},
		{"91234567891", "9123456789", true},
		{"", "", true},
		{"6", "6", true},
		{"0123", "", false},
		{"98-765 43210", "9876543210", true},
		{"abc7", "7", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := SanitizeMobile(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("SanitizeMobile(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsValidMobile(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"9123456789", true},
		{"6000000000", true},
		{"5123456789", false},
		{"912345678", false},
		{"91234567891", false},
		{"91234a6789", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidMobile(tt.in); got != tt.want {
			t.Errorf("IsValidMobile(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
