package validator

import (
	"errors"
	"net/mail"
	"strings"
)

const maxEmailLength = 254

var (
	ErrEmptyEmail   = errors.New("email is required")
	ErrInvalidEmail = errors.New("invalid email format")
)

// NormalizeEmail trims and lower-cases a bare address ("user@host"). Display
// names and angle brackets are rejected.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmptyEmail
	}
	if len(email) > maxEmailLength {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || !strings.Contains(parts[1], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
