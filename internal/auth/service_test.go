package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wirerelay/internal/store/sqlite"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
}

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st, testJWTConfig())
}

func TestRegister_RejectsOutOfRangeIdentity(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "password123"); !errors.Is(err, ErrBadIdentity) {
		t.Fatalf("expected ErrBadIdentity, got %v", err)
	}
	// Length is checked after trimming.
	if _, err := svc.Register(ctx, " ab ", "password123"); !errors.Is(err, ErrBadIdentity) {
		t.Fatalf("expected ErrBadIdentity, got %v", err)
	}
	if _, err := svc.Register(ctx, strings.Repeat("я", 33), "password123"); !errors.Is(err, ErrBadIdentity) {
		t.Fatalf("expected ErrBadIdentity for 33 runes, got %v", err)
	}
	// Limits count characters, not bytes.
	if _, err := svc.Register(ctx, strings.Repeat("я", 32), "password123"); err != nil {
		t.Fatalf("32 runes should register: %v", err)
	}
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "abc", "12345"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.Register(ctx, "abc", strings.Repeat("x", 73)); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword past bcrypt limit, got %v", err)
	}
}

func TestRegister_GrantCarriesTrimmedIdentity(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	before := time.Now()
	grant, err := svc.Register(ctx, " alice ", "password123")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if grant.Identity != "alice" {
		t.Fatalf("grant identity = %q, want alice", grant.Identity)
	}
	if grant.ExpiresAt.Before(before.Add(23*time.Hour)) || grant.ExpiresAt.After(before.Add(25*time.Hour)) {
		t.Fatalf("grant expiry %v not one ttl out", grant.ExpiresAt)
	}

	claims, err := svc.ValidateToken(grant.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "alice" || !claims.ExpiresAt.Time.Equal(grant.ExpiresAt) {
		t.Fatalf("claims %+v disagree with grant %+v", claims, grant)
	}

	if _, err := svc.Register(ctx, "alice", "password123"); !errors.Is(err, ErrIdentityTaken) {
		t.Fatalf("expected ErrIdentityTaken, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	grant, err := svc.Login(ctx, " bob ", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if grant.Identity != "bob" {
		t.Fatalf("grant identity = %q", grant.Identity)
	}
	if _, err := svc.ValidateToken(grant.Token); err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if _, err := svc.Login(ctx, "bob", "wrong-password"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestValidateToken_RejectsForeignAudienceAndExpired(t *testing.T) {
	cfg := testJWTConfig()

	other := *cfg
	other.Audience = "someone-else"
	foreign, err := GenerateToken(&other, 1, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(cfg, foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for audience, got %v", err)
	}

	expiredCfg := *cfg
	expiredCfg.TTL = -time.Minute
	expired, err := GenerateToken(&expiredCfg, 1, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(cfg, expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expiry, got %v", err)
	}

	if _, err := ValidateToken(cfg, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
