package services

import (
	"context"
	"sync"
	"time"

	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/pkg/metrics"
)

// pruneThreshold bounds the tracked-key map; expired windows are swept
// inline once the map grows past it
const pruneThreshold = 10000

// RateLimitDecision is the outcome of a single admission check
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// rateWindow pins the budget rule that was live when it opened. A policy
// change applies at the next rollover, never to a window in flight.
type rateWindow struct {
	start time.Time
	count int
	rule  models.RateLimitRule
}

// RateLimitService is a fixed-window request counter keyed by route class
// and caller identity. Budgets come from the live security policy and are
// snapshotted per window, so an admin change to a class takes effect at
// the next rollover without a restart. Windows roll over lazily on the
// next check.
type RateLimitService struct {
	policies PolicyProvider
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*rateWindow
}

// PolicyProvider supplies the effective security policy for budget lookups
type PolicyProvider interface {
	Current(ctx context.Context) *models.SecurityPolicy
}

// NewRateLimitService creates a rate limiter backed by the given policy
// provider
func NewRateLimitService(policies PolicyProvider) *RateLimitService {
	return &RateLimitService{
		policies: policies,
		now:      time.Now,
		windows:  make(map[string]*rateWindow),
	}
}

// Allow checks whether a request identified by key may proceed under the
// budget for class. The key is typically the client IP, or IP plus the
// claimed identity on authentication routes.
func (s *RateLimitService) Allow(ctx context.Context, class, key string) RateLimitDecision {
	now := s.now()
	mapKey := class + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[mapKey]
	if !ok || now.Sub(w.start) >= w.rule.Window {
		rule := s.policies.Current(ctx).RuleFor(class)
		w = &rateWindow{start: now, rule: rule}
		s.windows[mapKey] = w
		if len(s.windows) > pruneThreshold {
			s.pruneLocked(now)
		}
	}

	if w.count >= w.rule.MaxRequests {
		metrics.RateLimitTrips.WithLabelValues(class).Inc()
		return RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.start.Add(w.rule.Window).Sub(now),
		}
	}

	w.count++
	return RateLimitDecision{
		Allowed:   true,
		Remaining: w.rule.MaxRequests - w.count,
	}
}

// Reset clears the window for a key within a class. Used when a successful
// authentication should stop counting against the caller.
func (s *RateLimitService) Reset(class, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, class+":"+key)
}

// pruneLocked drops windows that ended before now. Caller holds s.mu.
func (s *RateLimitService) pruneLocked(now time.Time) {
	for key, w := range s.windows {
		if now.Sub(w.start) >= w.rule.Window {
			delete(s.windows, key)
		}
	}
}
