package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token classes issued by the token manager
const (
	TokenTypeSession  = "session"
	TokenTypeMFASetup = "mfa_setup"
)

// TokenClaims is the claim set carried by every signed token. Session
// tokens are the only proof of identity; nothing is persisted server-side
// beyond issuance.
type TokenClaims struct {
	Type        string   `json:"type"`
	UserID      string   `json:"user_id"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	MFAVerified bool     `json:"mfa_verified,omitempty"`
	jwt.RegisteredClaims
}

// LoginStatus enumerates every terminal outcome of a login request
type LoginStatus string

const (
	LoginStatusSuccess            LoginStatus = "success"
	LoginStatusMFARequired        LoginStatus = "mfa_required"
	LoginStatusMFASetupRequired   LoginStatus = "mfa_setup_required"
	LoginStatusLocked             LoginStatus = "locked"
	LoginStatusInvalidCredentials LoginStatus = "invalid_credentials"
	LoginStatusEmailUnverified    LoginStatus = "email_unverified"
	LoginStatusPasswordExpired    LoginStatus = "password_expired"
	LoginStatusRateLimited        LoginStatus = "rate_limited"
)
