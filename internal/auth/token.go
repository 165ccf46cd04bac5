package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/inkwell-blog/inkwell/internal/models"
)

// TokenManager handles JWT token generation and validation. Tokens are
// self-contained: validity is proven by signature and expiry alone, with
// account-state checks layered on by the caller.
type TokenManager struct {
	secret        string
	sessionExpiry time.Duration
	setupExpiry   time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, sessionExpiry, setupExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        secret,
		sessionExpiry: sessionExpiry,
		setupExpiry:   setupExpiry,
	}
}

// GenerateSessionToken mints a full session token carrying the user's role
// and resolved permission set. mfaVerified records whether this session
// completed an MFA challenge.
func (tm *TokenManager) GenerateSessionToken(user *models.User, mfaVerified bool) (string, error) {
	claims := &models.TokenClaims{
		Type:        models.TokenTypeSession,
		UserID:      user.ID,
		Role:        user.Role,
		Permissions: models.EffectivePermissions(user.Role, user.Permissions),
		MFAVerified: mfaVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// GenerateSetupToken mints a short-lived token scoped to completing MFA
// enrollment. It is rejected everywhere except the MFA setup endpoints.
func (tm *TokenManager) GenerateSetupToken(user *models.User) (string, error) {
	claims := &models.TokenClaims{
		Type:   models.TokenTypeMFASetup,
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.setupExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign setup token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token signature and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type == "" || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: missing required claims")
	}

	return claims, nil
}
