// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Challenge is a hashed one-time secret bound to an expiry. The zero value
// means no challenge is pending.
type Challenge struct {
	hash      string
	expiresAt time.Time
}

// NewChallenge rebuilds a challenge from a stored hash and expiry.
// Both halves must be present.
func NewChallenge(hash string, expiresAt time.Time) (Challenge, error) {
	if hash == "" {
		return Challenge{}, oops.Code("CHALLENGE_INVALID").Errorf("challenge hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return Challenge{}, oops.Code("CHALLENGE_INVALID").Errorf("challenge expiry cannot be zero")
	}
	return Challenge{hash: hash, expiresAt: expiresAt}, nil
}

// IssueChallenge hashes secret and binds it to now+ttl.
func IssueChallenge(secret string, now time.Time, ttl time.Duration) Challenge {
	return Challenge{hash: HashSecret(secret), expiresAt: now.Add(ttl)}
}

// Pending reports whether a challenge is set.
func (c Challenge) Pending() bool {
	return c.hash != ""
}

// Hash returns the stored secret hash, or "" when no challenge is pending.
func (c Challenge) Hash() string {
	return c.hash
}

// ExpiresAt returns the expiry, or the zero time when no challenge is pending.
func (c Challenge) ExpiresAt() time.Time {
	return c.expiresAt
}

// ExpiredAt reports whether the challenge is past its expiry at now.
// A challenge is still valid at the exact expiry instant.
func (c Challenge) ExpiredAt(now time.Time) bool {
	return now.After(c.expiresAt)
}

// ActiveAt reports whether the challenge is pending and strictly before its
// expiry at now. Reset links stop working at the expiry instant.
func (c Challenge) ActiveAt(now time.Time) bool {
	return c.Pending() && now.Before(c.expiresAt)
}

// Matches compares secret against the stored hash in constant time.
func (c Challenge) Matches(secret string) bool {
	if !c.Pending() || secret == "" {
		return false
	}
	return SecretsEqual(HashSecret(secret), c.hash)
}
