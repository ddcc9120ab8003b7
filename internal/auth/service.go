package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/wirerelay/internal/store"
)

var (
	// ErrBadCredentials hides whether the identity or the password was wrong.
	ErrBadCredentials = errors.New("bad credentials")
	ErrIdentityTaken  = errors.New("identity already registered")
	ErrBadIdentity    = errors.New("identity out of range")
	ErrWeakPassword   = errors.New("password out of range")
)

// Grant is a bearer token that lets a connection claim Identity until ExpiresAt.
type Grant struct {
	Token     string
	Identity  string
	ExpiresAt time.Time
}

// Service registers accounts and issues grants for them.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register reserves identity for a new account. The store's unique
// constraint decides races between concurrent registrations.
func (s *Service) Register(ctx context.Context, identity, password string) (Grant, error) {
	identity = strings.TrimSpace(identity)
	if err := checkCredentials(identity, password); err != nil {
		return Grant{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Grant{}, err
	}

	user, err := s.store.CreateUser(ctx, identity, hash)
	if errors.Is(err, store.ErrDuplicate) {
		return Grant{}, fmt.Errorf("register %q: %w", identity, ErrIdentityTaken)
	}
	if err != nil {
		return Grant{}, fmt.Errorf("register %q: %w", identity, err)
	}

	return issueGrant(s.jwtConfig, user.ID, user.Username)
}

// Login issues a fresh grant for an existing account.
func (s *Service) Login(ctx context.Context, identity, password string) (Grant, error) {
	identity = strings.TrimSpace(identity)

	user, err := s.store.GetUserByUsername(ctx, identity)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = ComparePassword(decoyHash(), password)
		return Grant{}, ErrBadCredentials
	case err != nil:
		return Grant{}, fmt.Errorf("login %q: %w", identity, err)
	}

	if ComparePassword(user.PasswordHash, password) != nil {
		return Grant{}, ErrBadCredentials
	}
	return issueGrant(s.jwtConfig, user.ID, user.Username)
}

// ValidateToken checks a bearer token against the service's signing config.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
