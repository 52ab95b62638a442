package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/librarium/librarium/internal/shared"
)

const minSecretLength = 32

// Claims is the payload of a session token. Subject carries the principal id.
type Claims struct {
	jwt.RegisteredClaims
}

// PrincipalID parses the subject claim.
func (c *Claims) PrincipalID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidToken
	}
	return id, nil
}

// TokenCodec issues and verifies HS256 signed session tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenCodec builds a TokenCodec. The secret must be at least 32 bytes.
func NewTokenCodec(secret string, ttl time.Duration, issuer string) (*TokenCodec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: token secret must be at least %d bytes", minSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// TTL exposes the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject valid for the configured ttl.
func (c *TokenCodec) Issue(subject string) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("auth: token subject required")
	}
	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}

// Decode verifies signature, algorithm, issuer and expiry. Every failure yields
// shared.ErrInvalidToken so callers cannot tell the reasons apart.
func (c *TokenCodec) Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, shared.ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, shared.ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}
