// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Challenge lifetimes.
const (
	DefaultOTPTTL   = 10 * time.Minute
	DefaultResetTTL = 10 * time.Minute
)

// CredentialStore enforces the account lifecycle rules on top of an
// AccountRepository. It performs no delivery; raw secrets are returned to
// the caller.
type CredentialStore struct {
	accounts AccountRepository
	hasher   PasswordHasher
	secrets  SecretGenerator
	otpTTL   time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

// StoreOption configures a CredentialStore.
type StoreOption func(*CredentialStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *CredentialStore) { s.now = now }
}

// WithSecretGenerator overrides the OTP and reset token source.
func WithSecretGenerator(g SecretGenerator) StoreOption {
	return func(s *CredentialStore) { s.secrets = g }
}

// WithOTPTTL overrides how long a verification OTP stays valid.
func WithOTPTTL(d time.Duration) StoreOption {
	return func(s *CredentialStore) { s.otpTTL = d }
}

// WithResetTTL overrides how long a reset token stays valid.
func WithResetTTL(d time.Duration) StoreOption {
	return func(s *CredentialStore) { s.resetTTL = d }
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(accounts AccountRepository, hasher PasswordHasher, opts ...StoreOption) (*CredentialStore, error) {
	if accounts == nil {
		return nil, oops.Code("STORE_INVALID_DEPS").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("STORE_INVALID_DEPS").Errorf("password hasher is required")
	}
	s := &CredentialStore{
		accounts: accounts,
		hasher:   hasher,
		secrets:  NewRandomSecrets(),
		otpTTL:   DefaultOTPTTL,
		resetTTL: DefaultResetTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.otpTTL <= 0 || s.resetTTL <= 0 {
		return nil, oops.Code("STORE_INVALID_DEPS").Errorf("challenge lifetimes must be positive")
	}
	return s, nil
}

// OTPTTL returns how long a verification OTP stays valid.
func (s *CredentialStore) OTPTTL() time.Duration { return s.otpTTL }

// ResetTTL returns how long a reset token stays valid.
func (s *CredentialStore) ResetTTL() time.Duration { return s.resetTTL }

// RegisterAccount creates an unverified account with a pending OTP and
// returns the raw OTP.
func (s *CredentialStore) RegisterAccount(ctx context.Context, email, password string) (*Account, string, error) {
	now := s.now()
	account, err := NewAccount(email, password, s.hasher, now)
	if err != nil {
		return nil, "", oops.Code("REGISTER_FAILED").With("operation", "new account").Wrap(err)
	}

	otp, err := s.secrets.GenerateOTP()
	if err != nil {
		return nil, "", oops.Code("REGISTER_FAILED").With("operation", "generate otp").Wrap(err)
	}
	account.SetOTP(IssueChallenge(otp, now, s.otpTTL))

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, "", err
		}
		return nil, "", oops.Code("REGISTER_FAILED").With("operation", "create account").Wrap(err)
	}
	return account, otp, nil
}

// ResendOTP replaces the pending OTP of an unverified account and returns
// the new raw OTP.
func (s *CredentialStore) ResendOTP(ctx context.Context, email string) (*Account, string, error) {
	account, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if account.Verified() {
		return nil, "", oops.Code(CodeAlreadyVerified).With("account_id", account.ID.String()).Wrap(ErrAlreadyVerified)
	}

	otp, err := s.secrets.GenerateOTP()
	if err != nil {
		return nil, "", oops.Code("RESEND_OTP_FAILED").With("operation", "generate otp").Wrap(err)
	}
	account.SetOTP(IssueChallenge(otp, s.now(), s.otpTTL))
	if err := s.save(ctx, account); err != nil {
		return nil, "", err
	}
	return account, otp, nil
}

// VerifyOTP checks otp against the pending challenge and, on a match, marks
// the account verified. An expired challenge is cleared before failing.
func (s *CredentialStore) VerifyOTP(ctx context.Context, email, otp string) (*Account, error) {
	account, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	challenge := account.OTP()
	if !challenge.Pending() {
		return nil, oops.Code(CodeNoPendingChallenge).With("account_id", account.ID.String()).Wrap(ErrNoPendingChallenge)
	}

	if challenge.ExpiredAt(s.now()) {
		account.ClearOTP()
		if err := s.save(ctx, account); err != nil {
			return nil, err
		}
		return nil, oops.Code(CodeOTPExpired).
			With("account_id", account.ID.String()).
			With("expired_at", challenge.ExpiresAt()).
			Wrap(ErrOTPExpired)
	}

	if !challenge.Matches(otp) {
		return nil, oops.Code(CodeOTPMismatch).With("account_id", account.ID.String()).Wrap(ErrOTPMismatch)
	}

	if err := account.MarkVerified(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login checks credentials. Unverified accounts are rejected before the
// password is compared.
func (s *CredentialStore) Login(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !account.Verified() {
		return nil, oops.Code(CodeUnverified).With("account_id", account.ID.String()).Wrap(ErrUnverified)
	}

	ok, err := account.CheckPassword(s.hasher, password)
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "check password").Wrap(err)
	}
	if !ok {
		return nil, oops.Code(CodeBadCredentials).With("account_id", account.ID.String()).Wrap(ErrBadCredentials)
	}
	return account, nil
}

// RequestPasswordReset stores a fresh reset challenge and returns the raw
// token. An unexpired challenge blocks a new one.
func (s *CredentialStore) RequestPasswordReset(ctx context.Context, email string) (*Account, string, error) {
	account, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if !account.Verified() {
		return nil, "", oops.Code(CodeUnverified).With("account_id", account.ID.String()).Wrap(ErrUnverified)
	}

	now := s.now()
	if current := account.Reset(); current.ActiveAt(now) {
		return nil, "", oops.Code(CodeChallengeActive).
			With("account_id", account.ID.String()).
			With("expires_at", current.ExpiresAt()).
			Wrap(ErrChallengeInProgress)
	}

	token, err := s.secrets.GenerateResetToken()
	if err != nil {
		return nil, "", oops.Code("RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}
	account.SetReset(IssueChallenge(token, now, s.resetTTL))
	if err := s.save(ctx, account); err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// CancelPasswordReset drops the pending reset challenge of an account.
func (s *CredentialStore) CancelPasswordReset(ctx context.Context, id ulid.ULID) error {
	account, err := s.lookupByID(ctx, id)
	if err != nil {
		return err
	}
	if !account.Reset().Pending() {
		return nil
	}
	account.ClearReset()
	return s.save(ctx, account)
}

// ResetPassword replaces the password of the account holding an unexpired
// challenge for token.
func (s *CredentialStore) ResetPassword(ctx context.Context, token, newPassword string) (*Account, error) {
	if token == "" {
		return nil, oops.Code(CodeInvalidResetToken).Wrap(ErrInvalidResetToken)
	}

	now := s.now()
	account, err := s.accounts.GetByResetTokenHash(ctx, HashSecret(token), now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeInvalidResetToken).Wrap(ErrInvalidResetToken)
		}
		return nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "get by token hash").Wrap(err)
	}
	if challenge := account.Reset(); !challenge.Matches(token) || !challenge.ActiveAt(now) {
		return nil, oops.Code(CodeInvalidResetToken).With("account_id", account.ID.String()).Wrap(ErrInvalidResetToken)
	}

	if err := account.SetPassword(s.hasher, newPassword); err != nil {
		return nil, oops.Code("RESET_PASSWORD_FAILED").With("operation", "set password").Wrap(err)
	}
	account.ClearReset()
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *CredentialStore) ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword, confirm string) error {
	account, err := s.lookupByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := account.CheckPassword(s.hasher, oldPassword)
	if err != nil {
		return oops.Code("CHANGE_PASSWORD_FAILED").With("operation", "check password").Wrap(err)
	}
	if !ok {
		return oops.Code(CodeBadOldPassword).With("account_id", id.String()).Wrap(ErrBadOldPassword)
	}
	if newPassword != confirm {
		return oops.Code(CodePasswordMismatch).With("account_id", id.String()).Wrap(ErrPasswordMismatch)
	}

	if err := account.SetPassword(s.hasher, newPassword); err != nil {
		return oops.Code("CHANGE_PASSWORD_FAILED").With("operation", "set password").Wrap(err)
	}
	return s.save(ctx, account)
}

// UpdateEmail changes the email address of an account.
func (s *CredentialStore) UpdateEmail(ctx context.Context, id ulid.ULID, email string) (*Account, error) {
	account, err := s.lookupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if NormalizeEmail(email) == account.Email() {
		return account, nil
	}
	if err := account.SetEmail(email); err != nil {
		return nil, oops.Code("UPDATE_EMAIL_FAILED").With("account_id", id.String()).Wrap(err)
	}
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount returns the account with id.
func (s *CredentialStore) GetAccount(ctx context.Context, id ulid.ULID) (*Account, error) {
	return s.lookupByID(ctx, id)
}

func (s *CredentialStore) lookupByEmail(ctx context.Context, email string) (*Account, error) {
	email = NormalizeEmail(email)
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeAccountNotFound).With("email", email).Wrap(ErrAccountNotFound)
		}
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	return account, nil
}

func (s *CredentialStore) lookupByID(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeAccountNotFound).With("account_id", id.String()).Wrap(ErrAccountNotFound)
		}
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("account_id", id.String()).Wrap(err)
	}
	return account, nil
}

// save stamps UpdatedAt and performs a version-checked update. Conflict and
// duplicate-email errors pass through with their codes.
func (s *CredentialStore) save(ctx context.Context, account *Account) error {
	account.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateEmail) {
			return err
		}
		return oops.Code("ACCOUNT_SAVE_FAILED").With("account_id", account.ID.String()).Wrap(err)
	}
	return nil
}
