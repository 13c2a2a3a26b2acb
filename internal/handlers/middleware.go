package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// RequestID propagates X-Request-ID, generating one when absent, and
// stores it in the request context for the logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// RateLimit rejects requests beyond the token bucket with 429.
// A non-positive rps disables limiting.
func RateLimit(rps float64, burst int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) mux.MiddlewareFunc {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, max(burst, 1))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				metricsCollector.RateLimitedTotal.Inc()
				metricsCollector.RecordAPIRequest(r.URL.Path, r.Method, "429")
				logger.Warn(r.Context(), "[API_RATE_LIMITED] Request rejected by rate limiter", logging.Fields{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				})
				w.Header().Set("Retry-After", "1")
				writeError(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
