package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

func testAuth() *Auth {
	return New(Config{
		Username:  "dj",
		Password:  "correct-horse-battery-staple",
		JWTSecret: "test-secret-at-least-32-bytes-long!!",
		TokenTTL:  time.Hour,
	})
}

func TestAuthenticate_WrongPasswordIsUnauthorized(t *testing.T) {
	a := testAuth()
	_, err := a.Authenticate("dj", "wrong", "10.0.0.1:1234")
	if radioerr.KindOf(err) != radioerr.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestAuthenticate_CorrectCredentialsIssueValidToken(t *testing.T) {
	a := testAuth()
	token, err := a.Authenticate("dj", "correct-horse-battery-staple", "10.0.0.1:1234")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected token to validate, got %v", err)
	}
	if claims.Operator != "dj" {
		t.Fatalf("expected subject dj, got %q", claims.Operator)
	}
}

func TestValidateToken_RejectsTamperedSignature(t *testing.T) {
	a := testAuth()
	token, err := a.Authenticate("dj", "correct-horse-battery-staple", "10.0.0.1:1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Change the signature's first character: unlike the last one, all six
	// of its bits are significant, so the decoded signature always differs.
	sigStart := strings.LastIndex(token, ".") + 1
	repl := "A"
	if token[sigStart] == 'A' {
		repl = "B"
	}
	tampered := token[:sigStart] + repl + token[sigStart+1:]
	if _, err := a.ValidateToken(tampered); err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
}

func TestValidateToken_RejectsExpiredToken(t *testing.T) {
	a := New(Config{
		Username:  "dj",
		Password:  "pw",
		JWTSecret: "test-secret-at-least-32-bytes-long!!",
	})
	// New replaces a non-positive TokenTTL with its default, so set the
	// negative TTL on the instance to issue an already-expired token.
	a.tokenTTL = -time.Minute
	token, err := a.Authenticate("dj", "pw", "10.0.0.1:1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.ValidateToken(token); err == nil {
		t.Fatal("expected already-expired token to fail validation")
	}
}

func TestAuthenticate_RateLimitsRepeatedFailures(t *testing.T) {
	a := New(Config{
		Username:         "dj",
		Password:         "pw",
		JWTSecret:        "test-secret-at-least-32-bytes-long!!",
		TokenTTL:         time.Hour,
		MaxLoginFailures: 3,
		LoginWindow:      time.Minute,
	})

	for i := 0; i < 3; i++ {
		if _, err := a.Authenticate("dj", "wrong", "10.0.0.2:1"); radioerr.KindOf(err) != radioerr.Unauthorized {
			t.Fatalf("attempt %d: expected Unauthorized, got %v", i, err)
		}
	}

	_, err := a.Authenticate("dj", "pw", "10.0.0.2:1")
	if err == nil {
		t.Fatal("expected the correct password to still be rejected once rate-limited")
	}
}

func TestAuthenticate_SuccessResetsFailureCount(t *testing.T) {
	a := testAuth()
	if _, err := a.Authenticate("dj", "wrong", "10.0.0.3:1"); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := a.Authenticate("dj", "correct-horse-battery-staple", "10.0.0.3:1"); err != nil {
		t.Fatalf("expected success to clear prior failure, got %v", err)
	}
}
