package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinLength is the minimum accepted password length at signup.
const MinLength = 8

// Hash returns the bcrypt hash of a plaintext password using the default
// cost. The plaintext is never stored or logged.
func Hash(plain string) (string, error) {
	if len(plain) < MinLength {
		return "", fmt.Errorf("password must be at least %d characters", MinLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plain matches the stored bcrypt hash. Any bcrypt
// failure (mismatch, malformed hash) reads as a non-match.
func Verify(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
