// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package auth implements the account credential lifecycle for Authgate.
//
// # Domain Types
//
// Account carries durable credentials plus two ephemeral challenges: the
// email verification OTP and the password reset token. A Challenge is either
// fully absent (the zero value) or a complete hash/expiry pair, so a
// half-set challenge cannot be represented. Accounts are created with
// NewAccount and rehydrated from storage with RestoreAccount; the password
// hash only changes through Account.SetPassword.
//
// # Services
//
//   - CredentialStore - business rules for register, verify, login, reset,
//     and profile changes against an AccountRepository
//   - TokenIssuer - signs and verifies session tokens
//   - Service - composes the above with mail delivery into the user-facing
//     flows
//
// Raw secrets (passwords, OTPs, reset tokens) are never persisted; only their
// hashes reach the repository.
package auth
