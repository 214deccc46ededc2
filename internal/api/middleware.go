package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

// Throttle caps the request rate of next with one shared token bucket.
func Throttle(perSecond, burst int, next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
