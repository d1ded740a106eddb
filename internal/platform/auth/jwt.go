package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"orgauthz/internal/platform/config"
)

const issuer = "orgauthz"

// Claims identify a member: the user, the organization it acts in and the
// role it holds there.
type Claims struct {
	UserID         string `json:"uid"`
	OrganizationID string `json:"oid"`
	RoleID         string `json:"rid"`
	Email          string `json:"email"`
	jwt.RegisteredClaims
}

type TokenService struct {
	config config.JWTConfig
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{config: cfg, now: time.Now}
}

func (s *TokenService) GenerateAccessToken(userID, orgID, roleID, email string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:         userID,
		OrganizationID: orgID,
		RoleID:         roleID,
		Email:          email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.UserID == "" || claims.OrganizationID == "" {
			return nil, errors.New("token carries no member identity")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
