// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTokenLifetime is how long a session token stays valid.
const DefaultTokenLifetime = 48 * time.Hour

// DefaultTokenIssuer is the iss claim written into session tokens.
const DefaultTokenIssuer = "authgate"

// SessionClaims are the JWT claims of a session token.
type SessionClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionIdentity is what a verified session token vouches for.
type SessionIdentity struct {
	AccountID ulid.ULID
	Email     string
}

// TokenIssuer mints and verifies HS256 session tokens.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	now      func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenClock overrides the time source used for iat/exp.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) { t.now = now }
}

// WithTokenIssuerName overrides the iss claim.
func WithTokenIssuerName(name string) TokenOption {
	return func(t *TokenIssuer) { t.issuer = name }
}

// NewTokenIssuer creates a TokenIssuer signing with secret.
func NewTokenIssuer(secret []byte, lifetime time.Duration, opts ...TokenOption) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token secret cannot be empty")
	}
	if lifetime <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").With("lifetime", lifetime.String()).Errorf("token lifetime must be positive")
	}
	t := &TokenIssuer{
		secret:   secret,
		lifetime: lifetime,
		issuer:   DefaultTokenIssuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Lifetime returns the configured token lifetime.
func (t *TokenIssuer) Lifetime() time.Duration {
	return t.lifetime
}

// Issue signs a token for account and returns it with its expiry.
func (t *TokenIssuer) Issue(account *Account) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.lifetime)
	claims := SessionClaims{
		ID:    account.ID.String(),
		Email: account.Email(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").With("account_id", account.ID.String()).Wrap(err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and expiry of token and returns the identity
// it carries. Failures wrap ErrTokenMalformed, ErrTokenSignature, or
// ErrTokenExpired, all of which match ErrTokenInvalid.
func (t *TokenIssuer) Verify(token string) (SessionIdentity, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return SessionIdentity{}, oops.Code(CodeTokenInvalid).Wrap(classifyTokenError(err))
	}

	id, err := ulid.Parse(claims.ID)
	if err != nil {
		return SessionIdentity{}, oops.Code(CodeTokenInvalid).With("claim", "id").Wrap(ErrTokenMalformed)
	}
	return SessionIdentity{AccountID: id, Email: claims.Email}, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}
