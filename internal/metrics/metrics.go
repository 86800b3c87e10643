// Package metrics provides Prometheus metrics for the auth gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Token endpoint metrics
	tokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_token_exchanges_total",
			Help: "Total number of authorization code exchanges",
		},
		[]string{"status"}, // "success", "invalid_grant", "invalid_client", ...
	)

	tokensIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_tokens_issued_total",
			Help: "Total number of tokens issued",
		},
		[]string{"type", "format"}, // type: "access", "refresh", "id"
	)

	tokenRevocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authgate_token_revocations_total",
			Help: "Total number of token revocation requests",
		},
	)

	tokenIntrospectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_token_introspections_total",
			Help: "Total number of token introspection requests",
		},
		[]string{"active"}, // "true" or "false"
	)

	// Admin authentication metrics
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_login_attempts_total",
			Help: "Total number of admin login attempts",
		},
		[]string{"status"}, // "success", "failure"
	)

	authRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_auth_rejections_total",
			Help: "Total number of rejected bearer/session authentications",
		},
		[]string{"reason"}, // "missing", "expired", "invalid", "error"
	)

	// Authorization code metrics
	authCodesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authgate_auth_codes_issued_total",
			Help: "Total number of authorization codes issued",
		},
	)

	// Rate limiting metrics
	rateLimitExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"endpoint"},
	)
)

// RecordTokenExchange records a code exchange outcome.
func RecordTokenExchange(status string) {
	tokenExchangesTotal.WithLabelValues(status).Inc()
}

// RecordTokenIssued records a token being issued.
func RecordTokenIssued(tokenType, format string) {
	tokensIssuedTotal.WithLabelValues(tokenType, format).Inc()
}

// RecordTokenRevocation records a token revocation.
func RecordTokenRevocation() {
	tokenRevocationsTotal.Inc()
}

// RecordTokenIntrospection records a token introspection.
func RecordTokenIntrospection(active bool) {
	tokenIntrospectionsTotal.WithLabelValues(strconv.FormatBool(active)).Inc()
}

// RecordLogin records an admin login attempt.
func RecordLogin(status string) {
	loginAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordAuthRejection records a rejected bearer/session authentication.
func RecordAuthRejection(reason string) {
	authRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordAuthCodeIssued records an authorization code being issued.
func RecordAuthCodeIssued() {
	authCodesIssuedTotal.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event.
func RecordRateLimitExceeded(endpoint string) {
	rateLimitExceededTotal.WithLabelValues(endpoint).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes the path for metrics to avoid high cardinality.
func normalizePath(path string) string {
	knownPaths := []string{
		"/healthz",
		"/readyz",
		"/metrics",
		"/oauth/authorize",
		"/oauth/token",
		"/oauth/revoke",
		"/oauth/introspect",
		"/api/v1/admin/login",
		"/api/v1/admin/logout",
		"/api/v1/admin/sessions",
		"/api/v1/users/me",
		"/.well-known/openid-configuration",
		"/.well-known/jwks.json",
	}

	for _, known := range knownPaths {
		if path == known {
			return path
		}
	}

	// Unknown paths collapse to one label value
	return "/other"
}
