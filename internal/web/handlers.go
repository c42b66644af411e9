// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/authgate/authgate/internal/auth"
)

// userView is the public representation of an account. It never carries
// credentials or challenge state.
type userView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newUserView(a *auth.Account) userView {
	return userView{
		ID:         a.ID.String(),
		Email:      a.Email(),
		IsVerified: a.Verified(),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type validator interface {
	validate() error
}

// bindRequest decodes the JSON body into in and validates it.
func bindRequest[T validator](c fiber.Ctx, in *T) error {
	if err := c.Bind().Body(in); err != nil {
		return &RequestError{Field: "body", Message: "Invalid request body"}
	}
	return (*in).validate()
}

func (s *Server) register(c fiber.Ctx) error {
	var in registerRequest
	if err := bindRequest(c, &in); err != nil {
		return err
	}
	if _, err := s.svc.Register(c.Context(), in.Email, in.Password); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "A verification OTP has been sent to your email.",
	})
}

func (s *Server) verifyOTP(c fiber.Ctx) error {
	var in verifyOTPRequest
	if err := bindRequest(c, &in); err != nil {
		return err
	}
	session, err := s.svc.VerifyOTP(c.Context(), in.Email, in.OTP)
	if err != nil {
		return err
	}
	return s.sessionResponse(c, session, "OTP verified successfully")
}

func (s *Server) resendOTP(c fiber.Ctx) error {
	var in emailRequest
	if err := bindRequest(c, &in); err != nil {
		return err
	}
	if err := s.svc.ResendOTP(c.Context(), in.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "A new verification OTP has been sent to your email.",
	})
}

func (s *Server) login(c fiber.Ctx) error {
	var in loginRequest
	if err := bindRequest(c, &in); err != nil {
		return err
	}
	session, err := s.svc.Login(c.Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return s.sessionResponse(c, session, "Logged in successfully")
}

func (s *Server) logout(c fiber.Ctx) error {
	s.cookies.Clear(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (s *Server) forgotPassword(c fiber.Ctx) error {
	var in emailRequest
	if err := bindRequest(c, &in); err != nil {
		return err
	}
	if err := s.svc.ForgotPassword(c.Context(), in.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("A password reset link has been sent to %s. Please check your inbox to proceed.", auth.NormalizeEmail(in.Email)),
	})
}

func (s *Server) resetPassword(c fiber.Ctx) error {
	var in resetPasswordRequest
	if err := c.Bind().Body(&in); err != nil {
		return &RequestError{Field: "body", Message: "Invalid request body"}
	}
	token := c.Params("token")
	if err := in.validate(token); err != nil {
		return err
	}
	if err := s.svc.ResetPassword(c.Context(), token, in.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password has been reset successfully",
	})
}

func (s *Server) profile(c fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    newUserView(account),
	})
}

func (s *Server) updatePassword(c fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var in updatePasswordRequest
	if err := bindRequest(c, &in); err != nil {
		return err
	}
	if err := s.svc.ChangePassword(c.Context(), account.ID, in.OldPassword, in.NewPassword, in.ConfirmPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password updated successfully",
	})
}

func (s *Server) updateProfile(c fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var in updateProfileRequest
	if err := bindRequest(c, &in); err != nil {
		return err
	}
	updated, err := s.svc.UpdateEmail(c.Context(), account.ID, in.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    newUserView(updated),
	})
}

// sessionResponse sets the session cookie and returns the token in the body
// for clients that send it as a bearer token.
func (s *Server) sessionResponse(c fiber.Ctx, session *auth.Session, message string) error {
	s.cookies.Bind(c, session)
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   message,
		"user":      newUserView(session.Account),
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}
