// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool used by the repository, so
// pgxmock can stand in for it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, email, password_hash, is_verified,
	otp_hash, otp_expires_at, reset_token_hash, reset_token_expires_at,
	version, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account at version 1.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	rec := account.Record()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)
	`,
		rec.ID.String(),
		rec.Email,
		rec.PasswordHash,
		rec.Verified,
		rec.OTPHash,
		rec.OTPExpiresAt,
		rec.ResetTokenHash,
		rec.ResetTokenExpiresAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(auth.CodeDuplicateEmail).With("email", rec.Email).Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", rec.ID.String()).
			Wrap(err)
	}
	account.Version = 1
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeNotFound).With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeNotFound).With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// GetByResetTokenHash retrieves the account whose reset challenge matches
// hash and has not expired at now.
func (r *AccountRepository) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2
	`, hash, now)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeNotFound).With("operation", "get by reset token").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_RESET_TOKEN_FAILED").
			With("operation", "get account by reset token hash").
			Wrap(err)
	}
	return account, nil
}

// Update writes account if the stored version equals account.Version and
// bumps the version on success.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	rec := account.Record()
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			password_hash = $3,
			is_verified = $4,
			otp_hash = $5,
			otp_expires_at = $6,
			reset_token_hash = $7,
			reset_token_expires_at = $8,
			updated_at = $9,
			version = version + 1
		WHERE id = $1 AND version = $10
	`,
		rec.ID.String(),
		rec.Email,
		rec.PasswordHash,
		rec.Verified,
		rec.OTPHash,
		rec.OTPExpiresAt,
		rec.ResetTokenHash,
		rec.ResetTokenExpiresAt,
		rec.UpdatedAt,
		rec.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(auth.CodeDuplicateEmail).With("email", rec.Email).Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", rec.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return r.explainMissedUpdate(ctx, rec)
	}
	account.Version = rec.Version + 1
	return nil
}

// explainMissedUpdate tells a deleted row apart from a stale version.
func (r *AccountRepository) explainMissedUpdate(ctx context.Context, rec auth.AccountRecord) error {
	var current int64
	err := r.pool.QueryRow(ctx, `SELECT version FROM accounts WHERE id = $1`, rec.ID.String()).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code(auth.CodeNotFound).With("id", rec.ID.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "read account version").
			With("id", rec.ID.String()).
			Wrap(err)
	}
	return oops.Code(auth.CodeConflict).
		With("id", rec.ID.String()).
		With("expected_version", rec.Version).
		With("actual_version", current).
		Wrap(auth.ErrConflict)
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		rec   auth.AccountRecord
		idStr string
	)
	err := row.Scan(
		&idStr,
		&rec.Email,
		&rec.PasswordHash,
		&rec.Verified,
		&rec.OTPHash,
		&rec.OTPExpiresAt,
		&rec.ResetTokenHash,
		&rec.ResetTokenExpiresAt,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	rec.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT").With("id", idStr).Wrap(err)
	}
	return auth.RestoreAccount(rec)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
