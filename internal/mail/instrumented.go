// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package mail

import (
	"context"

	"github.com/authgate/authgate/internal/auth"
)

// Observer records the outcome of each delivery attempt.
type Observer interface {
	ObserveMail(kind string, err error)
}

// Instrumented reports every Send of the wrapped mailer to an Observer.
type Instrumented struct {
	next     auth.Mailer
	observer Observer
}

// NewInstrumented wraps next.
func NewInstrumented(next auth.Mailer, observer Observer) *Instrumented {
	return &Instrumented{next: next, observer: observer}
}

// Send delegates to the wrapped mailer.
func (m *Instrumented) Send(ctx context.Context, msg auth.Message) error {
	err := m.next.Send(ctx, msg)
	m.observer.ObserveMail(string(msg.Kind), err)
	return err
}
