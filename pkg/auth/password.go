package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 10
	MinPasswordLen = 8
	MaxPasswordLen = 128

	// Symbols accepted by the special-character rule
	PasswordSymbols = `!@#$%^&*(),.?":{}|<>`
)

// PasswordValidationError carries every rule the candidate password failed,
// so callers can render the full list of violations at once.
type PasswordValidationError struct {
	Violations []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "password validation failed"
	}
	return strings.Join(e.Violations, "; ")
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword checks a candidate password against every strength rule.
// All failing rules are reported together rather than short-circuiting.
func ValidatePassword(password string) error {
	violations := make([]string, 0)

	if len(password) < MinPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at least %d characters long", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at most %d characters long", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSymbol := false
	allLetters := len(password) > 0
	allDigits := len(password) > 0

	var prev rune
	runLen := 0
	hasRepeatRun := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(PasswordSymbols, r) {
			hasSymbol = true
		}
		if !unicode.IsLetter(r) {
			allLetters = false
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}

		if r == prev {
			runLen++
			if runLen >= 3 {
				hasRepeatRun = true
			}
		} else {
			prev = r
			runLen = 1
		}
	}

	if !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain at least one number")
	}
	if !hasSymbol {
		violations = append(violations, "must contain at least one special character")
	}
	if hasRepeatRun {
		violations = append(violations, "must not contain repeating characters (3 or more times)")
	}
	if allLetters {
		violations = append(violations, "must not contain only letters")
	}
	if allDigits {
		violations = append(violations, "must not contain only numbers")
	}

	if len(violations) > 0 {
		return &PasswordValidationError{Violations: violations}
	}

	return nil
}

// IsPasswordReused reports whether the candidate matches any of the stored
// prior hashes, using the same comparison as login.
func IsPasswordReused(password string, priorHashes []string) bool {
	for _, hash := range priorHashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil {
			return true
		}
	}
	return false
}

// GenerateSecureToken returns a hex-encoded 32-byte random token for email
// verification and password reset links.
func GenerateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken returns the SHA-256 hex digest of a plain token. Only hashes
// are stored; the plain token travels in the email link.
func HashToken(plainToken string) string {
	hash := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(hash[:])
}
