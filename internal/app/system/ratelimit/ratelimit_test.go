package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_AllowAndWindow(t *testing.T) {
	l := New(3, time.Minute)
	defer l.Close()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l.now = clock.Now

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d blocked", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("4th request allowed")
	}
	if l.Remaining("k") != 0 {
		t.Errorf("Remaining = %d", l.Remaining("k"))
	}
	if !l.Allow("other") {
		t.Error("keys are not independent")
	}

	clock.Advance(61 * time.Second)
	if !l.Allow("k") {
		t.Error("new window should allow")
	}
	if l.Remaining("k") != 2 {
		t.Errorf("Remaining = %d, want 2", l.Remaining("k"))
	}

	l.Reset("k")
	if l.Remaining("k") != 3 {
		t.Errorf("Remaining after Reset = %d", l.Remaining("k"))
	}
}

func TestLoginLimiter_PerLoginID(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	defer ll.Close()

	req := httptest.NewRequest("POST", "/login", nil)
	for i := 0; i < 2; i++ {
		if ok, _ := ll.Check(req, "Asha@Example.org"); !ok {
			t.Fatalf("attempt %d blocked", i+1)
		}
	}
	ok, reason := ll.Check(req, " asha@example.org")
	if ok || reason == "" {
		t.Fatalf("third attempt for the same account allowed (reason %q)", reason)
	}
	if ok, _ := ll.Check(req, "9123456789"); !ok {
		t.Error("different account blocked")
	}

	ll.ResetLoginID("ASHA@example.org")
	if ok, _ := ll.Check(req, "asha@example.org"); !ok {
		t.Error("ResetLoginID did not clear the limit")
	}
}

func TestLoginLimiter_PerIP(t *testing.T) {
	ll := NewLoginLimiterWithConfig(1, time.Minute, 100, time.Minute)
	defer ll.Close()

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "192.0.2.1:1000"
	if ok, _ := ll.Check(req, ""); !ok {
		t.Fatal("first attempt blocked")
	}
	if ok, _ := ll.Check(req, ""); ok {
		t.Error("second attempt from the same IP allowed")
	}
	other := httptest.NewRequest("POST", "/login", nil)
	other.RemoteAddr = "192.0.2.2:1000"
	if ok, _ := ll.Check(other, ""); !ok {
		t.Error("different IP blocked")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_RemainingForLoginID(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 3, time.Minute)
	defer ll.Close()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	if got := ll.RemainingForLoginID(" User@Example.org "); got != 3 {
		t.Errorf("before any attempt: got %d, want 3", got)
	}
	ll.Check(r, "user@example.org")
	if got := ll.RemainingForLoginID("USER@example.org"); got != 2 {
		t.Errorf("after one attempt: got %d, want 2", got)
	}
	if got := ll.RemainingForLoginID("  "); got != -1 {
		t.Errorf("empty login id: got %d, want -1", got)
	}
}
