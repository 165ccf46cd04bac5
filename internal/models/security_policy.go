package models

import (
	"time"
)

// Rate limit route classes
const (
	RateLimitClassDefault = "default"
	RateLimitClassAuth    = "auth"
	RateLimitClassAPI     = "api"
	RateLimitClassUpload  = "upload"
)

// RateLimitRule is a {window, max-requests} budget for one route class
type RateLimitRule struct {
	Window      time.Duration `json:"window"`
	MaxRequests int           `json:"max_requests"`
}

// SecurityPolicy is the single mutable, admin-editable security configuration.
// Exactly one row exists in the store; when it is absent or unreadable the
// hard-coded defaults from DefaultSecurityPolicy apply.
type SecurityPolicy struct {
	ID                 string
	RequireAdminMFA    bool
	PasswordExpiryDays int
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	SessionIdleTimeout time.Duration
	RateLimits         map[string]RateLimitRule
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DefaultSecurityPolicy returns the built-in fallback policy
func DefaultSecurityPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		RequireAdminMFA:    true,
		PasswordExpiryDays: 90,
		MaxLoginAttempts:   5,
		LockoutDuration:    15 * time.Minute,
		SessionIdleTimeout: 30 * time.Minute,
		RateLimits: map[string]RateLimitRule{
			RateLimitClassDefault: {Window: 15 * time.Minute, MaxRequests: 100},
			RateLimitClassAuth:    {Window: 15 * time.Minute, MaxRequests: 5},
			RateLimitClassAPI:     {Window: 15 * time.Minute, MaxRequests: 100},
			RateLimitClassUpload:  {Window: time.Hour, MaxRequests: 10},
		},
	}
}

// RuleFor resolves the budget for a route class, falling back to the
// default class when the named class is not configured.
func (p *SecurityPolicy) RuleFor(class string) RateLimitRule {
	if rule, ok := p.RateLimits[class]; ok {
		return rule
	}
	if rule, ok := p.RateLimits[RateLimitClassDefault]; ok {
		return rule
	}
	return RateLimitRule{Window: 15 * time.Minute, MaxRequests: 100}
}
