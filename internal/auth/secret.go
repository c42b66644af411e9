// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/samber/oops"
)

// Secret sizes.
const (
	OTPDigits        = 6
	ResetTokenBytes  = 32 // 64 hex chars
	otpUpperBoundary = 1_000_000
)

// SecretGenerator produces the raw one-time secrets handed to users.
type SecretGenerator interface {
	// GenerateOTP returns a zero-padded six digit code.
	GenerateOTP() (string, error)

	// GenerateResetToken returns a hex-encoded random token.
	GenerateResetToken() (string, error)
}

// RandomSecrets implements SecretGenerator on top of crypto/rand.
type RandomSecrets struct {
	reader io.Reader
}

// NewRandomSecrets creates a RandomSecrets reading from crypto/rand.
func NewRandomSecrets() *RandomSecrets {
	return &RandomSecrets{reader: rand.Reader}
}

// GenerateOTP returns a uniformly distributed code in 000000..999999.
func (g *RandomSecrets) GenerateOTP() (string, error) {
	n, err := rand.Int(g.reader, big.NewInt(otpUpperBoundary))
	if err != nil {
		return "", oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// GenerateResetToken returns ResetTokenBytes random bytes, hex-encoded.
func (g *RandomSecrets) GenerateResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(g.reader, buf); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret returns the hex SHA-256 digest of secret.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// SecretsEqual compares two secret hashes in constant time.
func SecretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
