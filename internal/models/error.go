package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountLocked            = errors.New("account is temporarily locked")
	ErrAccountPermanentlyLocked = errors.New("account is permanently locked")
	ErrPasswordExpired          = errors.New("password has expired")
	ErrPasswordReused           = errors.New("password was used recently")

	// Token errors
	ErrTokenExpired = errors.New("token is expired or invalid")

	// MFA errors
	ErrMFANotEnrolled = errors.New("mfa is not set up for this account")
	ErrMFAInvalidCode = errors.New("invalid mfa code")
)
