package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/handlers"
	"github.com/inkwell-blog/inkwell/internal/middleware"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

// Dependencies carries everything route registration needs
type Dependencies struct {
	AuthHandler  *handlers.AuthHandler
	MFAHandler   *handlers.MFAHandler
	AdminHandler *handlers.AdminHandler
	UserHandler  *handlers.UserHandler

	TokenManager *auth.TokenManager
	Users        auth.UserFetcher
	Policies     *services.PolicyService
	RateLimits   *services.RateLimitService
	Audit        *services.AuditService
	IPConfig     *pkghttp.IPConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	authLimit := middleware.AdaptiveRateLimit(deps.RateLimits, models.RateLimitClassAuth, deps.IPConfig)
	apiLimit := middleware.AdaptiveRateLimit(deps.RateLimits, models.RateLimitClassAPI, deps.IPConfig)

	// Public routes, throttled under the auth budget
	router.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/auth/register", deps.AuthHandler.Register)
		r.Post("/auth/login", deps.AuthHandler.Login)
		r.Post("/auth/verify-email", deps.AuthHandler.VerifyEmail)
		r.Post("/auth/resend-verification", deps.AuthHandler.ResendVerification)
		r.Post("/auth/password-reset", deps.AuthHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/complete", deps.AuthHandler.CompletePasswordReset)
	})

	// MFA enrollment accepts the short-lived setup token issued at login, so
	// admins forced into enrollment can finish it before holding a session
	router.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Use(auth.RequireSetupToken(deps.TokenManager, deps.Users))
		r.Post("/auth/mfa/setup", deps.MFAHandler.BeginEnrollment)
		r.Post("/auth/mfa/verify", deps.MFAHandler.ConfirmEnrollment)
	})

	// Session-holding routes
	router.Group(func(r chi.Router) {
		r.Use(apiLimit)
		r.Use(auth.RequireSession(deps.TokenManager, deps.Users, deps.Policies))

		r.Get("/users/me", deps.UserHandler.GetMe)
		r.Put("/users/me", deps.UserHandler.UpdateMe)
		r.Post("/auth/password", deps.AuthHandler.ChangePassword)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePermission(models.PermissionManageUsers))
			r.Use(auth.RequireAdminMFA(deps.Policies))
			r.Use(middleware.AuditTrail(deps.Audit, deps.IPConfig))

			r.Get("/admin/users", deps.AdminHandler.ListUsers)
			r.Get("/admin/users/{id}", deps.AdminHandler.GetUser)
			r.Post("/admin/users/{id}/lock", deps.AdminHandler.LockUser)
			r.Post("/admin/users/{id}/unlock", deps.AdminHandler.UnlockUser)
			r.Post("/admin/users/{id}/reset-mfa", deps.AdminHandler.ResetUserMFA)
			r.Delete("/admin/users/{id}", deps.AdminHandler.DeleteUser)

			r.Get("/admin/security-policy", deps.AdminHandler.GetSecurityPolicy)
			r.Put("/admin/security-policy", deps.AdminHandler.UpdateSecurityPolicy)
			r.Get("/admin/audit-log", deps.AdminHandler.QueryAuditLog)
			r.Get("/admin/security-summary", deps.AdminHandler.GetSecuritySummary)
		})
	})
}
