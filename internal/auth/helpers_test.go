// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/memory"
)

// fastHasher keeps argon2id cheap enough for unit tests.
var fastHasher = auth.NewArgon2idHasherWithParams(auth.Argon2Params{
	Time:    1,
	Memory:  64,
	Threads: 1,
	SaltLen: 8,
	KeyLen:  16,
})

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: testEpoch} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedSecrets hands out predetermined secrets in order.
type scriptedSecrets struct {
	otps   []string
	tokens []string
}

func (s *scriptedSecrets) GenerateOTP() (string, error) {
	otp := s.otps[0]
	if len(s.otps) > 1 {
		s.otps = s.otps[1:]
	}
	return otp, nil
}

func (s *scriptedSecrets) GenerateResetToken() (string, error) {
	token := s.tokens[0]
	if len(s.tokens) > 1 {
		s.tokens = s.tokens[1:]
	}
	return token, nil
}

// recordingMailer captures outgoing messages and can be told to fail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []auth.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg auth.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) auth.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "expected a message to be sent")
	return m.sent[len(m.sent)-1]
}

type storeFixture struct {
	repo    *memory.AccountRepository
	clock   *testClock
	secrets *scriptedSecrets
	store   *auth.CredentialStore
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	f := &storeFixture{
		repo:    memory.NewAccountRepository(),
		clock:   newTestClock(),
		secrets: &scriptedSecrets{otps: []string{"482913"}, tokens: []string{"reset-token-1"}},
	}
	store, err := auth.NewCredentialStore(f.repo, fastHasher,
		auth.WithClock(f.clock.Now),
		auth.WithSecretGenerator(f.secrets),
	)
	require.NoError(t, err)
	f.store = store
	return f
}

// registerVerified creates a verified account with the given password.
func (f *storeFixture) registerVerified(t *testing.T, email, password string) *auth.Account {
	t.Helper()
	ctx := context.Background()
	_, otp, err := f.store.RegisterAccount(ctx, email, password)
	require.NoError(t, err)
	account, err := f.store.VerifyOTP(ctx, email, otp)
	require.NoError(t, err)
	return account
}
