package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/inkwell-blog/inkwell/internal/models"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	userContextKey   contextKey = "user"
)

// UserFetcher loads the current account record during token verification
type UserFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// PolicyReader supplies the live security policy (or its cached fallback)
type PolicyReader interface {
	Current(ctx context.Context) *models.SecurityPolicy
}

// ContextWithClaims returns a context carrying validated token claims
func ContextWithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ContextWithUser returns a context carrying the authenticated user record
func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ClaimsFromContext retrieves validated token claims from the request context
func ClaimsFromContext(ctx context.Context) (*models.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*models.TokenClaims)
	return claims, ok
}

// UserFromContext retrieves the authenticated user from the request context
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// CheckAccountUsable decides whether an authenticated account may hold a
// session right now. A passwordExpiryDays of zero skips the expiry check.
func CheckAccountUsable(user *models.User, now time.Time, passwordExpiryDays int) error {
	if user.PermanentlyLocked {
		return models.ErrAccountPermanentlyLocked
	}
	if user.IsTemporarilyLocked(now) {
		return models.ErrAccountLocked
	}
	if user.PasswordIsExpired(now, passwordExpiryDays) {
		return models.ErrPasswordExpired
	}
	return nil
}

func writeAccountStateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAccountPermanentlyLocked), errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteForbidden(w, "account is locked")
	case errors.Is(err, models.ErrPasswordExpired):
		pkghttp.WriteUnauthorized(w, "password has expired")
	default:
		pkghttp.WriteUnauthorized(w, "invalid or expired token")
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// RequireSession authenticates a full session token. A valid signature is
// necessary but not sufficient: the account is re-fetched and must still
// exist, not be locked, and not have an expired password.
func RequireSession(tm *TokenManager, users UserFetcher, policies PolicyReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization token")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil || claims.Type != models.TokenTypeSession {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			policy := policies.Current(r.Context())
			if err := CheckAccountUsable(user, time.Now(), policy.PasswordExpiryDays); err != nil {
				writeAccountStateError(w, err)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			ctx = ContextWithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSetupToken authenticates the short-lived MFA-setup token. Session
// tokens are also accepted so already-authenticated users can re-enroll.
func RequireSetupToken(tm *TokenManager, users UserFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization token")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			if claims.Type != models.TokenTypeMFASetup && claims.Type != models.TokenTypeSession {
				pkghttp.WriteUnauthorized(w, "invalid token for mfa setup")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			// An expired password does not block enrollment; only lock
			// state is checked here
			if err := CheckAccountUsable(user, time.Now(), 0); err != nil {
				writeAccountStateError(w, err)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			ctx = ContextWithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on the effective permission set resolved
// at authentication time. All gates consume the same resolved set; there is
// no per-check admin special-casing.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			effective := models.EffectivePermissions(user.Role, user.Permissions)
			if !models.HasPermission(effective, permission) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminMFA refuses admin accounts that have not enabled MFA when the
// policy demands it.
func RequireAdminMFA(policies PolicyReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			policy := policies.Current(r.Context())
			if policy.RequireAdminMFA && user.Role == models.RoleAdmin && !user.MFAEnabled {
				pkghttp.WriteForbidden(w, "administrators must enable 2fa to access this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
