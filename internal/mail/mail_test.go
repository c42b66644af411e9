// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/pkg/errutil"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		msg         auth.Message
		wantSubject string
		wantBody    []string
		wantCode    string
	}{
		{
			name:        "otp notice",
			msg:         auth.Message{To: "a@x.com", Kind: auth.MailOTP, Code: "482913", ValidFor: 10 * time.Minute},
			wantSubject: SubjectOTP,
			wantBody:    []string{"482913", "10 minutes"},
		},
		{
			name:        "reset notice",
			msg:         auth.Message{To: "a@x.com", Kind: auth.MailResetLink, Link: "https://app.example.com/password/reset/abc", ValidFor: 10 * time.Minute},
			wantSubject: SubjectResetLink,
			wantBody:    []string{`href="https://app.example.com/password/reset/abc"`, "10 minutes"},
		},
		{
			name:     "otp notice without code",
			msg:      auth.Message{Kind: auth.MailOTP},
			wantCode: "MAIL_INVALID",
		},
		{
			name:     "reset notice without link",
			msg:      auth.Message{Kind: auth.MailResetLink},
			wantCode: "MAIL_INVALID",
		},
		{
			name:     "unknown kind",
			msg:      auth.Message{Kind: "newsletter"},
			wantCode: "MAIL_INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.msg)
			if tt.wantCode != "" {
				errutil.AssertErrorCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, got.Subject)
			for _, want := range tt.wantBody {
				assert.Contains(t, got.HTML, want)
			}
		})
	}
}

func TestRender_EscapesLink(t *testing.T) {
	got, err := Render(auth.Message{Kind: auth.MailResetLink, Link: `javascript:alert(1)`, ValidFor: time.Minute})
	require.NoError(t, err)
	assert.NotContains(t, got.HTML, "javascript:")
	assert.Contains(t, got.HTML, "1 minute")
}

func TestNewSMTPSender_Validation(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Port: 587, From: "a@x.com"})
	errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")

	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587})
	errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "noreply@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "noreply@example.com", s.from, "username doubles as sender")
	assert.Equal(t, "smtp.example.com:587", s.addr)
	assert.NotNil(t, s.auth)
}

func TestSMTPSender_Send(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	require.NoError(t, err)

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err = s.Send(context.Background(), auth.Message{To: "a@x.com", Kind: auth.MailOTP, Code: "482913", ValidFor: 10 * time.Minute})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Account Verification OTP\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html")
	headers, body, found := strings.Cut(gotMsg, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, headers, "To: a@x.com")
	assert.Contains(t, body, "482913")
}

func TestSMTPSender_SendFailures(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	require.NoError(t, err)

	t.Run("relay error", func(t *testing.T) {
		s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("554 transaction failed")
		}
		err := s.Send(context.Background(), auth.Message{To: "a@x.com", Kind: auth.MailOTP, Code: "1"})
		errutil.AssertErrorCode(t, err, "MAIL_SEND_FAILED")
		assert.Contains(t, err.Error(), "554")
	})

	t.Run("cancelled context never dials", func(t *testing.T) {
		called := false
		s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
			called = true
			return nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.Send(ctx, auth.Message{To: "a@x.com", Kind: auth.MailOTP, Code: "1"})
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, called)
	})
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := s.Send(context.Background(), auth.Message{To: "a@x.com", Kind: auth.MailOTP, Code: "482913", ValidFor: 10 * time.Minute})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"subject":"Account Verification OTP"`)
	assert.Contains(t, buf.String(), `"code":"482913"`)

	err = s.Send(context.Background(), auth.Message{Kind: "unknown"})
	errutil.AssertErrorCode(t, err, "MAIL_INVALID")
}

type observation struct {
	kind string
	err  error
}

type fakeObserver struct{ seen []observation }

func (o *fakeObserver) ObserveMail(kind string, err error) {
	o.seen = append(o.seen, observation{kind: kind, err: err})
}

type stubMailer struct{ err error }

func (m stubMailer) Send(context.Context, auth.Message) error { return m.err }

func TestInstrumented(t *testing.T) {
	obs := &fakeObserver{}
	boom := errors.New("boom")

	require.NoError(t, NewInstrumented(stubMailer{}, obs).Send(context.Background(), auth.Message{Kind: auth.MailOTP}))
	err := NewInstrumented(stubMailer{err: boom}, obs).Send(context.Background(), auth.Message{Kind: auth.MailResetLink})
	assert.ErrorIs(t, err, boom)

	require.Len(t, obs.seen, 2)
	assert.Equal(t, observation{kind: "otp"}, obs.seen[0])
	assert.Equal(t, "reset_link", obs.seen[1].kind)
	assert.ErrorIs(t, obs.seen[1].err, boom)
}
