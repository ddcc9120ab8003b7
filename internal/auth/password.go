package auth

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Account rules. A registered identity is the name a WebSocket connection
// claims with its token, so it follows the relay identity limit.
const (
	minIdentityLen = 3
	maxIdentityLen = 32
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

func checkCredentials(identity, password string) error {
	if n := utf8.RuneCountInString(identity); n < minIdentityLen || n > maxIdentityLen {
		return fmt.Errorf("%w: %d characters, want %d-%d", ErrBadIdentity, n, minIdentityLen, maxIdentityLen)
	}
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return fmt.Errorf("%w: %d bytes, want %d-%d", ErrWeakPassword, n, minPasswordLen, maxPasswordLen)
	}
	return nil
}

// HashPassword returns the bcrypt hash stored for an account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword reports a mismatch between hash and password as an error.
func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// decoyHash is compared against when the identity is unknown, so a failed
// login costs one bcrypt round either way.
var decoyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("wirerelay-decoy")
	if err != nil {
		return ""
	}
	return hash
})
