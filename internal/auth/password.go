package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the floor enforced by CheckStrength.
const MinPasswordLength = 8

// HashPassword hashes a plaintext password using bcrypt with the given cost.
// Cost zero falls back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with the stored hash.
// A mismatch returns bcrypt.ErrMismatchedHashAndPassword; only a malformed
// hash yields a different error.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Strength is the result of a password policy check. Violations lists every
// rule the candidate breaks, not just the first.
type Strength struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// CheckStrength validates minimum length and character-class diversity.
func CheckStrength(password string) Strength {
	var violations []string
	if len(password) < MinPasswordLength {
		violations = append(violations, "must be at least 8 characters")
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !lower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !digit {
		violations = append(violations, "must contain a digit")
	}
	if !symbol {
		violations = append(violations, "must contain a symbol")
	}
	return Strength{Valid: len(violations) == 0, Violations: violations}
}
