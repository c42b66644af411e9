// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"errors"
	"fmt"
)

// Repository errors.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an update loses a race against a
	// concurrent modification of the same account.
	ErrConflict = errors.New("account was modified concurrently")
)

// Flow errors. Each one maps to a distinct client-visible outcome.
var (
	ErrDuplicateEmail      = errors.New("email is already registered")
	ErrAccountNotFound     = errors.New("account not found")
	ErrUnverified          = errors.New("account is not verified")
	ErrAlreadyVerified     = errors.New("account is already verified")
	ErrBadCredentials      = errors.New("invalid email or password")
	ErrOTPExpired          = errors.New("otp has expired")
	ErrOTPMismatch         = errors.New("otp is invalid")
	ErrNoPendingChallenge  = errors.New("no verification is pending")
	ErrChallengeInProgress = errors.New("a password reset was already requested")
	ErrInvalidResetToken   = errors.New("reset token is invalid or has expired")
	ErrBadOldPassword      = errors.New("old password is incorrect")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrDelivery            = errors.New("mail delivery failed")
)

// Session token errors. All of them satisfy errors.Is(err, ErrTokenInvalid).
var (
	ErrTokenInvalid   = errors.New("session token is invalid or expired")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenSignature = fmt.Errorf("%w: signature mismatch", ErrTokenInvalid)
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
)

// Error codes attached to the errors above.
const (
	CodeNotFound           = "ACCOUNT_NOT_FOUND"
	CodeConflict           = "ACCOUNT_CONFLICT"
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeAccountNotFound    = "AUTH_ACCOUNT_NOT_FOUND"
	CodeUnverified         = "AUTH_UNVERIFIED"
	CodeAlreadyVerified    = "AUTH_ALREADY_VERIFIED"
	CodeBadCredentials     = "AUTH_BAD_CREDENTIALS"
	CodeOTPExpired         = "AUTH_OTP_EXPIRED"
	CodeOTPMismatch        = "AUTH_OTP_MISMATCH"
	CodeNoPendingChallenge = "AUTH_NO_PENDING_CHALLENGE"
	CodeChallengeActive    = "AUTH_CHALLENGE_IN_PROGRESS"
	CodeInvalidResetToken  = "AUTH_INVALID_RESET_TOKEN"
	CodeBadOldPassword     = "AUTH_BAD_OLD_PASSWORD"
	CodePasswordMismatch   = "AUTH_PASSWORD_MISMATCH"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeTokenInvalid       = "AUTH_TOKEN_INVALID"
	CodeDelivery           = "AUTH_DELIVERY_FAILED"
)
