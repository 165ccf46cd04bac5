package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

// AuditTrail records every request passing through it as an admin_action
// audit entry with endpoint, method, response status, and latency. Mounted
// on the administrative route group only.
func AuditTrail(recorder services.AuditRecorder, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			status := models.AuditStatusSuccess
			if wrapped.Status() >= http.StatusBadRequest {
				status = models.AuditStatusFailure
			}

			event := services.AuditEvent{
				Action:         models.AuditActionAdminAction,
				Status:         status,
				IPAddress:      pkghttp.ExtractClientIP(r, ipConfig),
				UserAgent:      r.UserAgent(),
				Endpoint:       r.URL.Path,
				Method:         r.Method,
				ResponseStatus: wrapped.Status(),
				LatencyMs:      time.Since(start).Milliseconds(),
			}
			if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
				event.UserID = claims.UserID
			}
			recorder.Record(event)
		})
	}
}
