package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/inkwell-blog/inkwell/internal/services"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

// classLimiter admits requests against the policy budget for one route class
type classLimiter interface {
	Allow(ctx context.Context, class, key string) services.RateLimitDecision
}

// AdaptiveRateLimit enforces the policy-driven budget for a route class,
// keyed by client IP. Budget changes made by an admin apply without a
// restart.
func AdaptiveRateLimit(limiter classLimiter, class string, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipConfig)

			decision := limiter.Allow(r.Context(), class, ip)
			if !decision.Allowed {
				retryAfter := int(decision.RetryAfter / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FloodGuard is a coarse per-IP ceiling applied in front of the adaptive
// limiter. It exists to shed abusive traffic before any policy lookup runs;
// the budget is deliberately far above every class budget.
func FloodGuard() func(next http.Handler) http.Handler {
	return httprate.Limit(
		1000,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", 60)
		}),
	)
}

// compile-time check that the service satisfies the middleware contract
var _ classLimiter = (*services.RateLimitService)(nil)
