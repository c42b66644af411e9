// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package memory provides an in-process AccountRepository for development
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// AccountRepository implements auth.AccountRepository in memory. Accounts
// are stored as records so callers never share mutable state with the store.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]auth.AccountRecord
	byEmail map[string]ulid.ULID
}

// NewAccountRepository creates an empty AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[ulid.ULID]auth.AccountRecord),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new account.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	rec := account.Record()
	email := auth.NormalizeEmail(rec.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return oops.Code(auth.CodeDuplicateEmail).With("email", email).Wrap(auth.ErrDuplicateEmail)
	}
	if _, exists := r.byID[rec.ID]; exists {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("id", rec.ID.String()).Errorf("account id already exists")
	}

	rec.Version = 1
	r.byID[rec.ID] = rec
	r.byEmail[email] = rec.ID
	account.Version = 1
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	rec, ok := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return nil, oops.Code(auth.CodeNotFound).With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return auth.RestoreAccount(rec)
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	email = auth.NormalizeEmail(email)

	r.mu.RLock()
	id, ok := r.byEmail[email]
	rec := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return nil, oops.Code(auth.CodeNotFound).With("email", email).Wrap(auth.ErrNotFound)
	}
	return auth.RestoreAccount(rec)
}

// GetByResetTokenHash retrieves the account with an unexpired reset
// challenge matching hash.
func (r *AccountRepository) GetByResetTokenHash(_ context.Context, hash string, now time.Time) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.byID {
		if rec.ResetTokenHash == nil || rec.ResetTokenExpiresAt == nil {
			continue
		}
		if auth.SecretsEqual(*rec.ResetTokenHash, hash) && now.Before(*rec.ResetTokenExpiresAt) {
			return auth.RestoreAccount(rec)
		}
	}
	return nil, oops.Code(auth.CodeNotFound).With("operation", "get by reset token").Wrap(auth.ErrNotFound)
}

// Update persists account if its version matches the stored one.
func (r *AccountRepository) Update(_ context.Context, account *auth.Account) error {
	rec := account.Record()
	email := auth.NormalizeEmail(rec.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[rec.ID]
	if !ok {
		return oops.Code(auth.CodeNotFound).With("id", rec.ID.String()).Wrap(auth.ErrNotFound)
	}
	if current.Version != rec.Version {
		return oops.Code(auth.CodeConflict).
			With("id", rec.ID.String()).
			With("expected_version", rec.Version).
			With("actual_version", current.Version).
			Wrap(auth.ErrConflict)
	}

	oldEmail := auth.NormalizeEmail(current.Email)
	if email != oldEmail {
		if _, taken := r.byEmail[email]; taken {
			return oops.Code(auth.CodeDuplicateEmail).With("email", email).Wrap(auth.ErrDuplicateEmail)
		}
		delete(r.byEmail, oldEmail)
		r.byEmail[email] = rec.ID
	}

	rec.Version = current.Version + 1
	rec.CreatedAt = current.CreatedAt
	r.byID[rec.ID] = rec
	account.Version = rec.Version
	return nil
}
