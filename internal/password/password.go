// Package password hashes and verifies letter access passwords with bcrypt.
// A blank attempt is always treated as "not provided" and never verifies.
package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for letter passwords.
const DefaultCost = 12

// ErrEmpty is returned when asked to hash a blank password.
var ErrEmpty = errors.New("password is empty")

// Provided reports whether attempt carries a password. Whitespace-only input
// counts as absent.
func Provided(attempt string) bool { return strings.TrimSpace(attempt) != "" }

// Hash returns the bcrypt hash of plain. cost outside bcrypt's range falls
// back to DefaultCost.
func Hash(plain string, cost int) (string, error) {
	if !Provided(plain) {
		return "", ErrEmpty
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether attempt matches hash. The comparison is the
// library's constant-time check; malformed hashes never match.
func Verify(hash, attempt string) bool {
	if hash == "" || !Provided(attempt) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(attempt)) == nil
}
