// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package web

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/authgate/authgate/internal/auth"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "aulg"

// CookieBinder writes and clears the session cookie. Production cookies are
// Secure and SameSite=Strict; otherwise they are SameSite=Lax.
type CookieBinder struct {
	name       string
	production bool
	lifetime   time.Duration
}

// NewCookieBinder creates a CookieBinder. lifetime sets Max-Age.
func NewCookieBinder(name string, production bool, lifetime time.Duration) CookieBinder {
	if name == "" {
		name = DefaultCookieName
	}
	return CookieBinder{name: name, production: production, lifetime: lifetime}
}

// Name returns the cookie name.
func (b CookieBinder) Name() string { return b.name }

// Bind attaches the session token to the response.
func (b CookieBinder) Bind(c fiber.Ctx, session *auth.Session) {
	cookie := b.base()
	cookie.Value = session.Token
	cookie.MaxAge = int(b.lifetime / time.Second)
	cookie.Expires = session.ExpiresAt
	c.Cookie(cookie)
}

// Clear expires the session cookie with the same attributes it was set with.
func (b CookieBinder) Clear(c fiber.Ctx) {
	cookie := b.base()
	cookie.Expires = time.Unix(0, 0).UTC()
	c.Cookie(cookie)
}

func (b CookieBinder) base() *fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if b.production {
		sameSite = fiber.CookieSameSiteStrictMode
	}
	return &fiber.Cookie{
		Name:     b.name,
		Path:     "/",
		HTTPOnly: true,
		Secure:   b.production,
		SameSite: sameSite,
	}
}
