package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter throttles a route with a shared token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewRateLimiter allows perSecond requests on average with bursts of burst.
func NewRateLimiter(perSecond float64, burst int, log zerolog.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		log:     log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter.Allow() {
			retry := time.Second
			if lim := l.limiter.Limit(); lim > 0 {
				retry = time.Duration(float64(time.Second) / float64(lim))
			}
			l.log.Warn().Str("path", r.URL.Path).Msg("Rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"}, l.log)
			return
		}
		next.ServeHTTP(w, r)
	})
}
