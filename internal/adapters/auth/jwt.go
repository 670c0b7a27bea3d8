// Package auth verifies and mints the bearer tokens that identify a user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/longregen/memoir/internal/domain"
	"github.com/longregen/memoir/internal/ports"
)

// JWTVerifier accepts HS256 tokens signed with a shared secret whose subject is the user ID
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ ports.TokenVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.NewDomainError(domain.ErrUnauthorized, "empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", domain.NewDomainError(domain.ErrUnauthorized, describe(err))
	}
	if !parsed.Valid {
		return "", domain.NewDomainError(domain.ErrUnauthorized, "invalid token")
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", domain.NewDomainError(domain.ErrUnauthorized, "token has no subject")
	}
	return subject, nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "token issuer mismatch"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature invalid"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token malformed"
	}
	return "invalid token"
}

// Mint signs a token for userID valid for ttl. It backs `memoir token` for local development.
func Mint(secret, issuer, userID string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
