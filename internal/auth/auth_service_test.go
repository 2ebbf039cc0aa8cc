package auth

import (
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, sessionTTL, rememberTTL time.Duration) *AuthService {
	t.Helper()
	svc, err := NewAuthService("test-secret", sessionTTL, rememberTTL)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func TestHashPassword_NeverStoresPlaintext(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "hunter2hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPasswordHash("hunter2hunter2", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong-password", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestIssueToken_RoundTrip(t *testing.T) {
	svc := newTestService(t, 24*time.Hour, 7*24*time.Hour)

	token, ttl, err := svc.IssueToken(42, "employer", false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if ttl != 24*time.Hour {
		t.Fatalf("expected session ttl, got %v", ttl)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.AccountID != 42 {
		t.Fatalf("account id = %d, want 42", claims.AccountID)
	}
	if claims.Role != "employer" {
		t.Fatalf("role = %q, want employer", claims.Role)
	}
}

func TestIssueToken_RememberMeExtendsExpiry(t *testing.T) {
	svc := newTestService(t, 24*time.Hour, 7*24*time.Hour)

	token, ttl, err := svc.IssueToken(7, "jobseeker", true)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if ttl != 7*24*time.Hour {
		t.Fatalf("expected remember ttl, got %v", ttl)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	// 2 天后仍有效，第 8 天前必须过期。
	exp := claims.ExpiresAt.Time
	if !exp.After(time.Now().Add(2 * 24 * time.Hour)) {
		t.Fatalf("remember-me token expires too early: %v", exp)
	}
	if !exp.Before(time.Now().Add(8 * 24 * time.Hour)) {
		t.Fatalf("remember-me token expires too late: %v", exp)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	// 负 TTL 直接构造不可用的服务，改用极短 TTL 并等待过期。
	svc := newTestService(t, time.Millisecond, time.Millisecond)

	token, _, err := svc.IssueToken(1, "jobseeker", false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := newTestService(t, time.Hour, time.Hour)
	verifier, err := NewAuthService("other-secret", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}

	token, _, err := issuer.IssueToken(1, "jobseeker", false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := newTestService(t, time.Hour, time.Hour)

	for _, tok := range []string{"", "not-a-jwt", strings.Repeat("a.", 40)} {
		if _, err := svc.ValidateToken(tok); err == nil {
			t.Fatalf("garbage token %q accepted", tok)
		}
	}
}
