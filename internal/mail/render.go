// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package mail delivers account notices by SMTP or to the log.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"mime"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Subjects per notice kind.
const (
	SubjectOTP       = "Account Verification OTP"
	SubjectResetLink = "Reset Password Link"
)

// Rendered is a notice ready to be put on the wire.
type Rendered struct {
	Subject string
	HTML    string
}

type templateData struct {
	Code     string
	Link     string
	ValidFor string
}

// Render produces the subject and HTML body for msg.
func Render(msg auth.Message) (Rendered, error) {
	var (
		name    string
		subject string
	)
	switch msg.Kind {
	case auth.MailOTP:
		if msg.Code == "" {
			return Rendered{}, oops.Code("MAIL_INVALID").With("kind", string(msg.Kind)).Errorf("otp notice without a code")
		}
		name, subject = "otp.html", SubjectOTP
	case auth.MailResetLink:
		if msg.Link == "" {
			return Rendered{}, oops.Code("MAIL_INVALID").With("kind", string(msg.Kind)).Errorf("reset notice without a link")
		}
		name, subject = "reset_link.html", SubjectResetLink
	default:
		return Rendered{}, oops.Code("MAIL_INVALID").With("kind", string(msg.Kind)).Errorf("unknown notice kind")
	}

	var buf bytes.Buffer
	data := templateData{Code: msg.Code, Link: msg.Link, ValidFor: humanDuration(msg.ValidFor)}
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Rendered{}, oops.Code("MAIL_RENDER_FAILED").With("template", name).Wrap(err)
	}
	return Rendered{Subject: subject, HTML: buf.String()}, nil
}

// humanDuration renders whole minutes the way the notices phrase them.
func humanDuration(d time.Duration) string {
	minutes := int(math.Ceil(d.Minutes()))
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// buildMessage assembles an RFC 5322 message with an HTML body.
func buildMessage(from, to string, r Rendered) []byte {
	var b strings.Builder
	b.WriteString("From: <" + from + ">\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", r.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(r.HTML)
	return []byte(b.String())
}
