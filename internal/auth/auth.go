// Package auth issues and validates reviewer JWTs and hashes reviewer
// API keys. Tokens are HS256-signed; the secret comes from config or is
// generated per process when unset.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "lexicon"

// Claims extends jwt.RegisteredClaims with the reviewer identity.
type Claims struct {
	jwt.RegisteredClaims
	Reviewer string `json:"reviewer"`
}

// JWTManager creates and validates reviewer tokens.
type JWTManager struct {
	secret     []byte
	expiration time.Duration
}

// NewJWTManager builds a manager from the configured secret. An empty
// secret generates an ephemeral one, which invalidates outstanding
// tokens on restart.
func NewJWTManager(secret string, expiration time.Duration) (*JWTManager, error) {
	if secret == "" {
		slog.Warn("auth: no JWT secret configured, generating an ephemeral one (not for production)")
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("auth: generate secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
	}
	if expiration <= 0 {
		return nil, fmt.Errorf("auth: token expiration must be positive, got %v", expiration)
	}
	return &JWTManager{secret: []byte(secret), expiration: expiration}, nil
}

// IssueToken creates a signed JWT for the given reviewer.
func (m *JWTManager) IssueToken(reviewer string) (string, time.Time, error) {
	if reviewer == "" {
		return "", time.Time{}, fmt.Errorf("auth: reviewer is required")
	}

	now := time.Now().UTC()
	exp := now.Add(m.expiration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewer,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		Reviewer: reviewer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithAudience(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	if claims.Issuer != issuer {
		return nil, fmt.Errorf("auth: invalid issuer: %s", claims.Issuer)
	}
	if claims.Reviewer == "" {
		return nil, fmt.Errorf("auth: missing reviewer claim")
	}

	return claims, nil
}
