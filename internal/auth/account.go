// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account is a registered user together with its pending challenges.
//
// Credential fields are unexported so the password hash can only be replaced
// through SetPassword and challenges can only be set as complete pairs.
type Account struct {
	ID        ulid.ULID
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	email        string
	passwordHash string
	verified     bool
	otp          Challenge
	reset        Challenge
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewAccount creates an unverified account with a freshly hashed password.
func NewAccount(email, password string, hasher PasswordHasher, now time.Time) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("email cannot be empty")
	}
	a := &Account{
		ID:        ulid.Make(),
		email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.SetPassword(hasher, password); err != nil {
		return nil, err
	}
	return a, nil
}

// Email returns the normalized email address.
func (a *Account) Email() string { return a.email }

// Verified reports whether the email address has been confirmed.
func (a *Account) Verified() bool { return a.verified }

// OTP returns the pending verification challenge, if any.
func (a *Account) OTP() Challenge { return a.otp }

// Reset returns the pending password reset challenge, if any.
func (a *Account) Reset() Challenge { return a.reset }

// SetPassword hashes raw and replaces the stored hash.
func (a *Account) SetPassword(hasher PasswordHasher, raw string) error {
	hash, err := hasher.Hash(raw)
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").With("account_id", a.ID.String()).Wrap(err)
	}
	a.passwordHash = hash
	return nil
}

// CheckPassword reports whether raw matches the stored hash.
func (a *Account) CheckPassword(hasher PasswordHasher, raw string) (bool, error) {
	ok, err := hasher.Verify(raw, a.passwordHash)
	if err != nil {
		return false, oops.Code("PASSWORD_VERIFY_FAILED").With("account_id", a.ID.String()).Wrap(err)
	}
	return ok, nil
}

// SetEmail replaces the email address after normalizing it.
func (a *Account) SetEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return oops.Code("ACCOUNT_INVALID").Errorf("email cannot be empty")
	}
	a.email = email
	return nil
}

// SetOTP replaces the verification challenge.
func (a *Account) SetOTP(c Challenge) { a.otp = c }

// ClearOTP removes the verification challenge.
func (a *Account) ClearOTP() { a.otp = Challenge{} }

// MarkVerified flips the account to verified and drops the OTP.
func (a *Account) MarkVerified() error {
	if a.verified {
		return oops.Code(CodeAlreadyVerified).With("account_id", a.ID.String()).Wrap(ErrAlreadyVerified)
	}
	a.verified = true
	a.otp = Challenge{}
	return nil
}

// SetReset replaces the password reset challenge.
func (a *Account) SetReset(c Challenge) { a.reset = c }

// ClearReset removes the password reset challenge.
func (a *Account) ClearReset() { a.reset = Challenge{} }

// LogValue keeps credentials out of structured logs.
func (a *Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", a.ID.String()),
		slog.String("email", a.email),
		slog.Bool("verified", a.verified),
	)
}

// AccountRecord is the flat persistence shape of an Account. Challenge
// columns are nil when no challenge is pending.
type AccountRecord struct {
	ID                  ulid.ULID
	Email               string
	PasswordHash        string
	Verified            bool
	OTPHash             *string
	OTPExpiresAt        *time.Time
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Record flattens the account for storage.
func (a *Account) Record() AccountRecord {
	rec := AccountRecord{
		ID:           a.ID,
		Email:        a.email,
		PasswordHash: a.passwordHash,
		Verified:     a.verified,
		Version:      a.Version,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	rec.OTPHash, rec.OTPExpiresAt = challengeColumns(a.otp)
	rec.ResetTokenHash, rec.ResetTokenExpiresAt = challengeColumns(a.reset)
	return rec
}

// RestoreAccount rebuilds an Account from storage. A challenge with only
// one of its two columns set is rejected.
func RestoreAccount(rec AccountRecord) (*Account, error) {
	otp, err := challengeFromColumns(rec.OTPHash, rec.OTPExpiresAt)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT").With("account_id", rec.ID.String()).With("challenge", "otp").Wrap(err)
	}
	reset, err := challengeFromColumns(rec.ResetTokenHash, rec.ResetTokenExpiresAt)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT").With("account_id", rec.ID.String()).With("challenge", "reset").Wrap(err)
	}
	return &Account{
		ID:           rec.ID,
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		email:        rec.Email,
		passwordHash: rec.PasswordHash,
		verified:     rec.Verified,
		otp:          otp,
		reset:        reset,
	}, nil
}

func challengeColumns(c Challenge) (*string, *time.Time) {
	if !c.Pending() {
		return nil, nil
	}
	hash, expiresAt := c.hash, c.expiresAt
	return &hash, &expiresAt
}

func challengeFromColumns(hash *string, expiresAt *time.Time) (Challenge, error) {
	if hash == nil && expiresAt == nil {
		return Challenge{}, nil
	}
	if hash == nil || expiresAt == nil {
		return Challenge{}, oops.Code("CHALLENGE_INVALID").Errorf("challenge hash and expiry must be set together")
	}
	return NewChallenge(*hash, *expiresAt)
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByResetTokenHash retrieves the account whose reset challenge has the
	// given hash and is unexpired at now.
	GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*Account, error)

	// Update persists account if its Version still matches the stored one,
	// then increments account.Version. Returns ErrConflict on a version
	// mismatch and ErrDuplicateEmail if a changed email is taken.
	Update(ctx context.Context, account *Account) error
}
