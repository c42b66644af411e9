// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package mail

import (
	"context"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers notices through an SMTP relay using STARTTLS and
// PLAIN auth.
type SMTPSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendFunc
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).With("port", cfg.Port).Errorf("smtp host and port are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if !strings.Contains(from, "@") {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("from", from).Errorf("sender address is required")
	}

	s := &SMTPSender{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     from,
		sendMail: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send renders msg and hands it to the relay. net/smtp has no context
// support, so ctx is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg auth.Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("kind", string(msg.Kind)).Wrap(err)
	}
	if err := s.sendMail(s.addr, s.auth, s.from, []string{msg.To}, buildMessage(s.from, msg.To, rendered)); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("kind", string(msg.Kind)).
			With("relay", s.addr).
			Wrap(err)
	}
	return nil
}
