package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

// AdminServiceInterface defines the interface for administrative operations
type AdminServiceInterface interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	LockUser(ctx context.Context, input services.LockUserInput) (*models.User, error)
	UnlockUser(ctx context.Context, targetID, actorID, ipAddress string) (*models.User, error)
	ResetUserMFA(ctx context.Context, targetID, actorID, ipAddress string) error
	DeleteUser(ctx context.Context, targetID, actorID, ipAddress string) error
	QueryAuditLog(ctx context.Context, query services.AuditQuery) ([]*models.AuditLog, error)
	SecuritySummary(ctx context.Context, window time.Duration) (*services.SecuritySummary, error)
}

// PolicyServiceInterface defines the interface for security policy management
type PolicyServiceInterface interface {
	Current(ctx context.Context) *models.SecurityPolicy
	Update(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error)
}

// AdminHandler handles administrative HTTP requests
type AdminHandler struct {
	service  AdminServiceInterface
	policies PolicyServiceInterface
	audit    services.AuditRecorder
	ipConfig *pkghttp.IPConfig
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service AdminServiceInterface, policies PolicyServiceInterface, audit services.AuditRecorder, ipConfig *pkghttp.IPConfig) *AdminHandler {
	return &AdminHandler{
		service:  service,
		policies: policies,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// LockUserRequest represents the request body for locking an account
type LockUserRequest struct {
	Permanent       bool   `json:"permanent"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,gte=1,lte=43200"`
	Reason          string `json:"reason" validate:"omitempty,oneof=failed_attempts suspicious_activity admin_action policy_violation"`
}

// RateLimitRuleRequest represents one rate limit budget in a policy update
type RateLimitRuleRequest struct {
	WindowSeconds int `json:"window_seconds" validate:"required,gte=1"`
	MaxRequests   int `json:"max_requests" validate:"required,gte=1"`
}

// UpdatePolicyRequest represents the request body for a security policy update
type UpdatePolicyRequest struct {
	RequireAdminMFA    bool                            `json:"require_admin_mfa"`
	PasswordExpiryDays int                             `json:"password_expiry_days" validate:"gte=0,lte=3650"`
	MaxLoginAttempts   int                             `json:"max_login_attempts" validate:"required,gte=1,lte=100"`
	LockoutMinutes     int                             `json:"lockout_minutes" validate:"required,gte=1,lte=43200"`
	SessionIdleMinutes int                             `json:"session_idle_minutes" validate:"gte=0,lte=43200"`
	RateLimits         map[string]RateLimitRuleRequest `json:"rate_limits" validate:"omitempty,dive"`
}

// PolicyResponse represents the security policy in API responses
type PolicyResponse struct {
	RequireAdminMFA    bool                            `json:"require_admin_mfa"`
	PasswordExpiryDays int                             `json:"password_expiry_days"`
	MaxLoginAttempts   int                             `json:"max_login_attempts"`
	LockoutMinutes     int                             `json:"lockout_minutes"`
	SessionIdleMinutes int                             `json:"session_idle_minutes"`
	RateLimits         map[string]RateLimitRuleRequest `json:"rate_limits"`
}

func toPolicyResponse(policy *models.SecurityPolicy) PolicyResponse {
	rateLimits := make(map[string]RateLimitRuleRequest, len(policy.RateLimits))
	for class, rule := range policy.RateLimits {
		rateLimits[class] = RateLimitRuleRequest{
			WindowSeconds: int(rule.Window / time.Second),
			MaxRequests:   rule.MaxRequests,
		}
	}
	return PolicyResponse{
		RequireAdminMFA:    policy.RequireAdminMFA,
		PasswordExpiryDays: policy.PasswordExpiryDays,
		MaxLoginAttempts:   policy.MaxLoginAttempts,
		LockoutMinutes:     int(policy.LockoutDuration / time.Minute),
		SessionIdleMinutes: int(policy.SessionIdleTimeout / time.Minute),
		RateLimits:         rateLimits,
	}
}

// ListUsers returns a page of accounts
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users":  toUserResponses(users),
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser returns a single account
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// LockUser applies an administrative lock to an account
func (h *AdminHandler) LockUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req LockUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.LockUser(r.Context(), services.LockUserInput{
		TargetID:  chi.URLParam(r, "id"),
		ActorID:   claims.UserID,
		Permanent: req.Permanent,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
		Reason:    req.Reason,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// UnlockUser clears all lock state from an account
func (h *AdminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.UnlockUser(r.Context(), chi.URLParam(r, "id"), claims.UserID,
		pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// ResetUserMFA clears a user's TOTP enrollment
func (h *AdminHandler) ResetUserMFA(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	err := h.service.ResetUserMFA(r.Context(), chi.URLParam(r, "id"), claims.UserID,
		pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "MFA reset. The user can enroll again on next login.",
	})
}

// DeleteUser removes an account
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id"), claims.UserID,
		pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSecurityPolicy returns the effective security policy
func (h *AdminHandler) GetSecurityPolicy(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, toPolicyResponse(h.policies.Current(r.Context())))
}

// UpdateSecurityPolicy replaces the security policy
func (h *AdminHandler) UpdateSecurityPolicy(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rateLimits := make(map[string]models.RateLimitRule, len(req.RateLimits))
	for class, rule := range req.RateLimits {
		rateLimits[class] = models.RateLimitRule{
			Window:      time.Duration(rule.WindowSeconds) * time.Second,
			MaxRequests: rule.MaxRequests,
		}
	}

	updated, err := h.policies.Update(r.Context(), &models.SecurityPolicy{
		RequireAdminMFA:    req.RequireAdminMFA,
		PasswordExpiryDays: req.PasswordExpiryDays,
		MaxLoginAttempts:   req.MaxLoginAttempts,
		LockoutDuration:    time.Duration(req.LockoutMinutes) * time.Minute,
		SessionIdleTimeout: time.Duration(req.SessionIdleMinutes) * time.Minute,
		RateLimits:         rateLimits,
	})
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.audit.Record(services.AuditEvent{
		Action:    models.AuditActionSecuritySettingsUpdated,
		Status:    models.AuditStatusSuccess,
		UserID:    claims.UserID,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if len(req.RateLimits) > 0 {
		h.audit.Record(services.AuditEvent{
			Action:    models.AuditActionRateLimitsUpdated,
			Status:    models.AuditStatusSuccess,
			UserID:    claims.UserID,
			IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, toPolicyResponse(updated))
}

// AuditLogEntryResponse represents one audit entry in API responses
type AuditLogEntryResponse struct {
	ID             string               `json:"id"`
	Action         string               `json:"action"`
	Status         string               `json:"status"`
	UserID         string               `json:"user_id,omitempty"`
	IPAddress      string               `json:"ip_address,omitempty"`
	UserAgent      string               `json:"user_agent,omitempty"`
	Endpoint       string               `json:"endpoint,omitempty"`
	Method         string               `json:"method,omitempty"`
	ResponseStatus *int                 `json:"response_status,omitempty"`
	LatencyMs      *int64               `json:"latency_ms,omitempty"`
	Details        models.AuditDetails  `json:"details,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func toAuditLogResponse(entry *models.AuditLog) AuditLogEntryResponse {
	resp := AuditLogEntryResponse{
		ID:             entry.ID.String(),
		Action:         entry.Action,
		Status:         entry.Status,
		ResponseStatus: entry.ResponseStatus,
		LatencyMs:      entry.LatencyMs,
		Details:        entry.Details,
		CreatedAt:      entry.CreatedAt,
	}
	if entry.UserID != nil {
		resp.UserID = entry.UserID.String()
	}
	if entry.IPAddress != nil {
		resp.IPAddress = *entry.IPAddress
	}
	if entry.UserAgent != nil {
		resp.UserAgent = *entry.UserAgent
	}
	if entry.Endpoint != nil {
		resp.Endpoint = *entry.Endpoint
	}
	if entry.Method != nil {
		resp.Method = *entry.Method
	}
	return resp
}

// SecuritySummaryResponse represents recent security activity counts
type SecuritySummaryResponse struct {
	WindowHours    int `json:"window_hours"`
	LoginFailures  int `json:"login_failures"`
	Lockouts       int `json:"lockouts"`
	MFAFailures    int `json:"mfa_failures"`
	RateLimitTrips int `json:"rate_limit_trips"`
}

// GetSecuritySummary returns security activity counts for the trailing
// window. The window is given in hours and defaults to 24.
func (h *AdminHandler) GetSecuritySummary(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 24*90 {
			window = time.Duration(n) * time.Hour
		}
	}

	summary, err := h.service.SecuritySummary(r.Context(), window)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SecuritySummaryResponse{
		WindowHours:    int(summary.Window / time.Hour),
		LoginFailures:  summary.LoginFailures,
		Lockouts:       summary.Lockouts,
		MFAFailures:    summary.MFAFailures,
		RateLimitTrips: summary.RateLimitTrips,
	})
}

// QueryAuditLog returns a filtered page of audit entries
func (h *AdminHandler) QueryAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	entries, err := h.service.QueryAuditLog(r.Context(), services.AuditQuery{
		UserID:    r.URL.Query().Get("user_id"),
		Action:    r.URL.Query().Get("action"),
		IPAddress: r.URL.Query().Get("ip"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]AuditLogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toAuditLogResponse(entry))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": out,
		"limit":   limit,
		"offset":  offset,
	})
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
