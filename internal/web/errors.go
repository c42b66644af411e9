// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/pkg/errutil"
)

// CodeRequestInvalid is reported for requests rejected before they reach the
// auth service.
const CodeRequestInvalid = "REQUEST_INVALID"

const internalErrorMessage = "Internal server error"

// RequestError reports a request body or parameter that failed validation.
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type statusMapping struct {
	target error
	status int
}

// errorStatuses is checked in order; the first sentinel matched decides the
// status and the client-visible message.
var errorStatuses = []statusMapping{
	{auth.ErrDuplicateEmail, http.StatusBadRequest},
	{auth.ErrAlreadyVerified, http.StatusBadRequest},
	{auth.ErrOTPExpired, http.StatusBadRequest},
	{auth.ErrOTPMismatch, http.StatusBadRequest},
	{auth.ErrNoPendingChallenge, http.StatusBadRequest},
	{auth.ErrChallengeInProgress, http.StatusBadRequest},
	{auth.ErrBadOldPassword, http.StatusBadRequest},
	{auth.ErrPasswordMismatch, http.StatusBadRequest},
	{auth.ErrAccountNotFound, http.StatusNotFound},
	{auth.ErrInvalidResetToken, http.StatusNotFound},
	{auth.ErrUnverified, http.StatusForbidden},
	{auth.ErrBadCredentials, http.StatusUnauthorized},
	{auth.ErrUnauthorized, http.StatusUnauthorized},
	{auth.ErrTokenInvalid, http.StatusUnauthorized},
	{auth.ErrConflict, http.StatusConflict},
	{auth.ErrDelivery, http.StatusInternalServerError},
}

// classify maps err to a status code and the body sent to the client.
// Unrecognized errors become an opaque 500.
func classify(err error) (int, errorBody) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, errorBody{Message: reqErr.Message, Code: CodeRequestInvalid}
	}

	for _, m := range errorStatuses {
		if errors.Is(err, m.target) {
			return m.status, errorBody{Message: m.target.Error(), Code: errutil.Code(err)}
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, errorBody{Message: fiberErr.Message}
	}
	return http.StatusInternalServerError, errorBody{Message: internalErrorMessage}
}

// handleError is the fiber error handler. Server-side failures are logged
// with their oops context; client errors are left to the access log.
func (s *Server) handleError(c fiber.Ctx, err error) error {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Context(), s.logger, slog.LevelError, "request failed", err)
	}
	return c.Status(status).JSON(body)
}
