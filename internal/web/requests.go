// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package web

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	otpLength         = 6
)

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r registerRequest) validate() error {
	return firstProblem(
		checkEmail(r.Email),
		checkPassword("password", "Password", r.Password),
		checkPassword("confirmPassword", "Confirm Password", r.ConfirmPassword),
		checkConfirmation(r.Password, r.ConfirmPassword),
	)
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r verifyOTPRequest) validate() error {
	return firstProblem(checkEmail(r.Email), checkOTP(r.OTP))
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) validate() error {
	return checkEmail(r.Email)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) validate() error {
	return firstProblem(checkEmail(r.Email), checkPassword("password", "Password", r.Password))
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r resetPasswordRequest) validate(token string) error {
	if strings.TrimSpace(token) == "" {
		return &RequestError{Field: "token", Message: "Reset token is required"}
	}
	return firstProblem(
		checkPassword("password", "Password", r.Password),
		checkPassword("confirmPassword", "Confirm Password", r.ConfirmPassword),
		checkConfirmation(r.Password, r.ConfirmPassword),
	)
}

// updatePasswordRequest leaves the confirmation check to the auth service,
// which reports a wrong old password first.
type updatePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r updatePasswordRequest) validate() error {
	if r.OldPassword == "" {
		return &RequestError{Field: "oldPassword", Message: "Old Password is required"}
	}
	return checkPassword("newPassword", "New Password", r.NewPassword)
}

type updateProfileRequest struct {
	Email string `json:"email"`
}

func (r updateProfileRequest) validate() error {
	return checkEmail(r.Email)
}

func firstProblem(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// checkEmail accepts a bare addr-spec; display names and surrounding
// whitespace are rejected.
func checkEmail(email string) error {
	if email == "" {
		return &RequestError{Field: "email", Message: "Email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return &RequestError{Field: "email", Message: "Invalid email format"}
	}
	return nil
}

func checkPassword(field, label, password string) error {
	if password == "" {
		return &RequestError{Field: field, Message: label + " is required"}
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return &RequestError{Field: field, Message: label + " must be at least 8 characters long"}
	}
	return nil
}

func checkConfirmation(password, confirm string) error {
	if password != confirm {
		return &RequestError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return nil
}

func checkOTP(otp string) error {
	if otp == "" {
		return &RequestError{Field: "otp", Message: "OTP is required"}
	}
	if utf8.RuneCountInString(otp) != otpLength {
		return &RequestError{Field: "otp", Message: "OTP must be exactly 6 characters long"}
	}
	return nil
}
