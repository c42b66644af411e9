// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package web

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

type localKey int

const accountKey localKey = iota

const bearerPrefix = "Bearer "

// requireSession admits requests carrying a valid session token and stores
// the resolved account for the handlers behind it.
func (s *Server) requireSession(c fiber.Ctx) error {
	token := s.sessionToken(c)
	if token == "" {
		return oops.Code(auth.CodeUnauthorized).With("reason", "missing token").Wrap(auth.ErrUnauthorized)
	}
	account, err := s.svc.Authenticate(c.Context(), token)
	if err != nil {
		return err
	}
	c.Locals(accountKey, account)
	return c.Next()
}

// sessionToken prefers an Authorization bearer token over the session cookie.
func (s *Server) sessionToken(c fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
		if token := strings.TrimSpace(header[len(bearerPrefix):]); token != "" {
			return token
		}
	}
	return c.Cookies(s.cookies.Name())
}

// currentAccount returns the account stored by requireSession.
func currentAccount(c fiber.Ctx) (*auth.Account, error) {
	account, ok := c.Locals(accountKey).(*auth.Account)
	if !ok || account == nil {
		return nil, oops.Code(auth.CodeUnauthorized).With("reason", "no session").Wrap(auth.ErrUnauthorized)
	}
	return account, nil
}
