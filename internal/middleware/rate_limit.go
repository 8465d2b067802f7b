package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/gatekeephq/gatekeep/pkg/http"
)

// RateLimitConfig holds rate limiting configuration. TrustedProxies are the
// CIDR ranges whose forwarding headers are believed when resolving the
// client IP the limit is keyed on.
type RateLimitConfig struct {
	RequestsPerMinute int
	TrustedProxies    []string
}

// DefaultOpsRateLimit is the limit applied to the operational endpoints.
func DefaultOpsRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 60}
}

// RateLimitByIP limits requests per client IP. The key is the resolved
// client IP, so a forged X-Forwarded-For from an untrusted peer still
// counts against the peer's own address.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	ipConfig := &pkghttp.IPConfig{TrustedProxies: config.TrustedProxies}
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Rate limit exceeded"}`))
		}),
	)
}
