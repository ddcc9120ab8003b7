package http

import "golang.org/x/time/rate"

// rateLimiter throttles inbound frames on one connection.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows rps frames per second with the given burst. rps <= 0 disables limiting.
func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return &rateLimiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limiter == nil {
		return true
	}
	return r.limiter.Allow()
}
