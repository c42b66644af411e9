// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/authgate/authgate/internal/auth"
)

// LogSender writes notices to a logger instead of delivering them. It is
// meant for development, where the OTP or link has to be read off the log.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs msg after rendering it, so template errors still surface.
func (s *LogSender) Send(ctx context.Context, msg auth.Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "outgoing mail",
		"to", msg.To,
		"subject", rendered.Subject,
		"kind", string(msg.Kind),
		"code", msg.Code,
		"link", msg.Link,
		"valid_for", msg.ValidFor.String(),
	)
	return nil
}
