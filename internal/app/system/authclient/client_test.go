package authclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"

	"github.com/dalemusser/chipdash/internal/app/system/authclient"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/chipdash/internal/testutil"
	"go.uber.org/zap"
)

func newClient(t *testing.T, hash authclient.HashAlgorithm) (*authclient.Client, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	b.Password = hash.Apply("secret")
	api, err := chipapi.New(b.URL(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("chipapi.New: %v", err)
	}
	return authclient.New(api, hash, zap.NewNop()), b
}

func TestLogin_Success_TransmitsHashedPassword(t *testing.T) {
	c, b := newClient(t, authclient.HashSHA256)

	res, err := c.Login(context.Background(), models.Credentials{Username: testutil.BackendUsername, Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != testutil.BackendToken {
		t.Errorf("Token: got %q", res.Token)
	}
	if res.User.ID != "U1" {
		t.Errorf("User.ID: got %q", res.User.ID)
	}

	sent := b.LastBody("/users/login")
	if sent["password"] == "secret" {
		t.Error("raw password must not be transmitted")
	}
	if sent["password"] != authclient.HashSHA256.Apply("secret") {
		t.Errorf("transmitted password: got %v", sent["password"])
	}
}

func TestLogin_401_UsesBackendMessage(t *testing.T) {
	c, _ := newClient(t, authclient.HashSHA256)

	_, err := c.Login(context.Background(), models.Credentials{Username: testutil.BackendUsername, Password: "wrong"})
	var ae *chipapi.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AuthError, got %T (%v)", err, err)
	}
	if ae.Message != "Invalid credentials" {
		t.Errorf("Message: got %q, want %q", ae.Message, "Invalid credentials")
	}
	if chipapi.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("StatusOf: got %d", chipapi.StatusOf(err))
	}
}

func TestLogin_401_MessageMatchingStatusTextIsKept(t *testing.T) {
	c, b := newClient(t, authclient.HashSHA256)
	b.RejectMessage = "Unauthorized"

	_, err := c.Login(context.Background(), models.Credentials{Username: testutil.BackendUsername, Password: "wrong"})
	var ae *chipapi.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AuthError, got %T (%v)", err, err)
	}
	if ae.Message != "Unauthorized" {
		t.Errorf("Message: got %q, want %q", ae.Message, "Unauthorized")
	}
}

func TestLogin_ErrorWithoutMessage_UsesGeneric(t *testing.T) {
	c, b := newClient(t, authclient.HashNone)
	b.Before = func(r *http.Request) {
		panic(http.ErrAbortHandler)
	}

	_, err := c.Login(context.Background(), models.Credentials{Username: "x", Password: "y"})
	var ae *chipapi.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AuthError, got %T", err)
	}
	if ae.Message != authclient.MsgLoginFailed {
		t.Errorf("Message: got %q, want %q", ae.Message, authclient.MsgLoginFailed)
	}
	var ne *chipapi.NetworkError
	if !errors.As(err, &ne) {
		t.Error("expected the NetworkError to stay reachable via errors.As")
	}
}

func TestLogin_EmptyCredentials_NoRequest(t *testing.T) {
	c, b := newClient(t, authclient.HashSHA256)

	_, err := c.Login(context.Background(), models.Credentials{Username: "  ", Password: "secret"})
	var ve *chipapi.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if n := b.Calls("/users/login"); n != 0 {
		t.Errorf("expected no backend call, got %d", n)
	}
}

func TestLogin_BackendCookieLandsInSessionJar(t *testing.T) {
	c, b := newClient(t, authclient.HashSHA3256)

	jar, _ := cookiejar.New(nil)
	ctx := chipapi.WithSession(context.Background(), &chipapi.Session{Jar: jar})
	if _, err := c.Login(ctx, models.Credentials{Username: testutil.BackendUsername, Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	u, _ := url.Parse(b.URL())
	found := false
	for _, ck := range jar.Cookies(u) {
		if ck.Name == testutil.BackendCookie {
			found = true
		}
	}
	if !found {
		t.Error("expected backend session cookie in jar")
	}
}

func TestRequestAndVerifyOTP(t *testing.T) {
	c, b := newClient(t, authclient.HashSHA256)
	ctx := context.Background()
	target := authclient.OTPTarget{Mobile: testutil.BackendMobile}

	if err := c.RequestOTP(ctx, target); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if got := b.LastBody("/users/otp/send")["mobile"]; got != testutil.BackendMobile {
		t.Errorf("otp send body mobile: got %v", got)
	}

	_, err := c.VerifyOTP(ctx, target, "000000")
	var ae *chipapi.AuthError
	if !errors.As(err, &ae) || ae.Message != "Invalid OTP" {
		t.Fatalf("expected AuthError 'Invalid OTP', got %v", err)
	}

	res, err := c.VerifyOTP(ctx, target, testutil.BackendOTP)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if res.Token != testutil.BackendToken {
		t.Errorf("Token: got %q", res.Token)
	}
}

func TestRequestOTP_UnknownAccount(t *testing.T) {
	c, _ := newClient(t, authclient.HashSHA256)

	err := c.RequestOTP(context.Background(), authclient.OTPTarget{Username: "nobody@example.org"})
	if got := chipapi.UserMessage(err, "x"); got != "No account found" {
		t.Errorf("UserMessage: got %q", got)
	}
}

func TestRequestOTP_EmptyTarget(t *testing.T) {
	c, _ := newClient(t, authclient.HashSHA256)

	err := c.RequestOTP(context.Background(), authclient.OTPTarget{})
	var ve *chipapi.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
