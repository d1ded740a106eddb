package invitations

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"

	"orgauthz/internal/engine/errs"
)

const tokenBytes = 32

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken checks token against the hash stored on inv. Only the token of
// the latest create or resend matches.
func VerifyToken(inv *Invitation, token string) error {
	if token == "" || inv.TokenHash == "" {
		return &errs.InvalidInputError{Field: "token", Reason: "missing"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(inv.TokenHash), []byte(token)); err != nil {
		return &errs.InvalidInputError{Field: "token", Reason: "does not match this invitation"}
	}
	return nil
}
