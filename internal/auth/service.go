// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/pkg/errutil"
)

// Flow names reported to the FlowObserver.
const (
	FlowRegister       = "register"
	FlowResendOTP      = "resend_otp"
	FlowVerifyOTP      = "verify_otp"
	FlowLogin          = "login"
	FlowForgotPassword = "forgot_password"
	FlowResetPassword  = "reset_password"
	FlowChangePassword = "change_password"
	FlowUpdateEmail    = "update_email"
	FlowAuthenticate   = "authenticate"
)

// ResetPath is the client route that receives reset tokens.
const ResetPath = "/password/reset/"

// Session is an issued session token and the account it belongs to.
type Session struct {
	Account   *Account
	Token     string
	ExpiresAt time.Time
}

// Service runs the user-facing authentication flows. Every flow persists
// state before any mail is sent.
type Service struct {
	store     *CredentialStore
	tokens    *TokenIssuer
	mailer    Mailer
	clientURL string
	logger    *slog.Logger
	observer  FlowObserver
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for flow events.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithFlowObserver sets the sink for flow outcomes.
func WithFlowObserver(o FlowObserver) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// NewService creates a Service. clientURL is the base of reset links.
func NewService(store *CredentialStore, tokens *TokenIssuer, mailer Mailer, clientURL string, opts ...ServiceOption) (*Service, error) {
	if store == nil || tokens == nil || mailer == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("credential store, token issuer and mailer are required")
	}
	if _, err := url.ParseRequestURI(clientURL); err != nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").With("client_url", clientURL).Wrap(err)
	}
	s := &Service{
		store:     store,
		tokens:    tokens,
		mailer:    mailer,
		clientURL: strings.TrimRight(clientURL, "/"),
		logger:    slog.Default(),
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account and mails its verification OTP. A delivery
// failure leaves the account pending so ResendOTP can be used.
func (s *Service) Register(ctx context.Context, email, password string) (account *Account, err error) {
	defer func() { s.observer.ObserveFlow(FlowRegister, err) }()

	account, otp, err := s.store.RegisterAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account registered", "account", account)

	if err := s.sendOTP(ctx, account, otp); err != nil {
		return account, err
	}
	return account, nil
}

// ResendOTP issues and mails a fresh OTP for an unverified account.
func (s *Service) ResendOTP(ctx context.Context, email string) (err error) {
	defer func() { s.observer.ObserveFlow(FlowResendOTP, err) }()

	account, otp, err := s.store.ResendOTP(ctx, email)
	if err != nil {
		return err
	}
	return s.sendOTP(ctx, account, otp)
}

// VerifyOTP confirms the account email and opens a session.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (session *Session, err error) {
	defer func() { s.observer.ObserveFlow(FlowVerifyOTP, err) }()

	account, err := s.store.VerifyOTP(ctx, email, otp)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account verified", "account", account)
	return s.openSession(account)
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (session *Session, err error) {
	defer func() { s.observer.ObserveFlow(FlowLogin, err) }()

	account, err := s.store.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "login succeeded", "account", account)
	return s.openSession(account)
}

// ForgotPassword mails a reset link. If the mail cannot be delivered the
// reset challenge is withdrawn so a new request is not blocked.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.observer.ObserveFlow(FlowForgotPassword, err) }()

	account, token, err := s.store.RequestPasswordReset(ctx, email)
	if err != nil {
		return err
	}

	msg := Message{
		To:       account.Email(),
		Kind:     MailResetLink,
		Link:     s.ResetLink(token),
		ValidFor: s.store.ResetTTL(),
	}
	if sendErr := s.mailer.Send(ctx, msg); sendErr != nil {
		if cancelErr := s.store.CancelPasswordReset(ctx, account.ID); cancelErr != nil {
			errutil.LogErrorContext(ctx, s.logger, slog.LevelError, "withdrawing reset challenge failed", cancelErr)
		}
		return s.deliveryFailed(ctx, account, MailResetLink, sendErr)
	}
	s.logger.InfoContext(ctx, "reset link sent", "account", account)
	return nil
}

// ResetPassword sets a new password using a mailed reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.observer.ObserveFlow(FlowResetPassword, err) }()

	account, err := s.store.ResetPassword(ctx, token, newPassword)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", "account", account)
	return nil
}

// ChangePassword replaces the password of an authenticated account.
func (s *Service) ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword, confirm string) (err error) {
	defer func() { s.observer.ObserveFlow(FlowChangePassword, err) }()

	if err := s.store.ChangePassword(ctx, id, oldPassword, newPassword, confirm); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password changed", "account_id", id.String())
	return nil
}

// UpdateEmail changes the email address of an authenticated account.
func (s *Service) UpdateEmail(ctx context.Context, id ulid.ULID, email string) (account *Account, err error) {
	defer func() { s.observer.ObserveFlow(FlowUpdateEmail, err) }()

	return s.store.UpdateEmail(ctx, id, email)
}

// Profile returns the account with id.
func (s *Service) Profile(ctx context.Context, id ulid.ULID) (*Account, error) {
	return s.store.GetAccount(ctx, id)
}

// Authenticate resolves a session token to its current account. Token
// failures keep their ErrTokenInvalid kind; a token whose account no longer
// exists yields ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (account *Account, err error) {
	defer func() { s.observer.ObserveFlow(FlowAuthenticate, err) }()

	identity, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	account, err = s.store.GetAccount(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, oops.Code(CodeUnauthorized).With("account_id", identity.AccountID.String()).Wrap(ErrUnauthorized)
		}
		return nil, err
	}
	return account, nil
}

// ResetLink builds the client URL carrying a raw reset token.
func (s *Service) ResetLink(token string) string {
	return s.clientURL + ResetPath + url.PathEscape(token)
}

// TokenLifetime returns how long issued session tokens stay valid.
func (s *Service) TokenLifetime() time.Duration {
	return s.tokens.Lifetime()
}

func (s *Service) openSession(account *Account) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) sendOTP(ctx context.Context, account *Account, otp string) error {
	msg := Message{
		To:       account.Email(),
		Kind:     MailOTP,
		Code:     otp,
		ValidFor: s.store.OTPTTL(),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return s.deliveryFailed(ctx, account, MailOTP, err)
	}
	s.logger.InfoContext(ctx, "verification otp sent", "account", account)
	return nil
}

func (s *Service) deliveryFailed(ctx context.Context, account *Account, kind MailKind, err error) error {
	wrapped := oops.Code(CodeDelivery).
		With("account_id", account.ID.String()).
		With("mail_kind", string(kind)).
		With("cause", err.Error()).
		Wrap(ErrDelivery)
	errutil.LogErrorContext(ctx, s.logger, slog.LevelError, "mail delivery failed", wrapped)
	return wrapped
}
