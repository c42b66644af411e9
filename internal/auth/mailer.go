// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"time"
)

// MailKind identifies which notice a Message carries.
type MailKind string

// Mail kinds.
const (
	MailOTP       MailKind = "otp"
	MailResetLink MailKind = "reset_link"
)

// Message is an outbound notice. Code is set for MailOTP, Link for
// MailResetLink.
type Message struct {
	To       string
	Kind     MailKind
	Code     string
	Link     string
	ValidFor time.Duration
}

// Mailer delivers notices to account holders.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// FlowObserver receives the outcome of every flow the Service runs.
type FlowObserver interface {
	ObserveFlow(flow string, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveFlow(string, error) {}
