package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages rate limiters per IP address
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		now:      time.Now,
	}
}

// GetLimiter returns the rate limiter for the given IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, exists := i.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.visitors[ip] = v
	}
	v.lastSeen = i.now()

	return v.limiter
}

// Cleanup forgets addresses that have not been seen for maxIdle
func (i *IPRateLimiter) Cleanup(maxIdle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := i.now().Add(-maxIdle)
	removed := 0
	for ip, v := range i.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(i.visitors, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup forgets idle addresses every interval until the returned
// stop function is called. An address counts as idle once it has not been
// seen for interval and its bucket would have refilled completely, so
// dropping it never loosens the limit.
func (i *IPRateLimiter) StartCleanup(interval time.Duration) (stop func()) {
	maxIdle := interval
	if refill := i.refillTime(); refill > maxIdle {
		maxIdle = refill
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				i.Cleanup(maxIdle)
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

func (i *IPRateLimiter) refillTime() time.Duration {
	if i.rate == rate.Inf || i.rate <= 0 {
		return 0
	}
	return time.Duration(float64(i.burst) / float64(i.rate) * float64(time.Second))
}

// Len returns the number of tracked addresses
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.visitors)
}

// RateLimiter returns per-IP rate limiting middleware backed by limiter
func RateLimiter(limiter *IPRateLimiter, logger *slog.Logger) echo.MiddlewareFunc {
	// Seconds until one token is refilled
	retryAfter := "1"
	if limiter.rate > 0 && limiter.rate < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / float64(limiter.rate))))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if limiter.GetLimiter(ip).Allow() {
				return next(c)
			}

			if logger != nil {
				logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", c.Path()))
			}

			c.Response().Header().Set("Retry-After", retryAfter)
			return echo.NewHTTPError(http.StatusTooManyRequests, map[string]string{
				"error":       "rate limit exceeded",
				"code":        "RATE_LIMITED",
				"retry_after": retryAfter,
			})
		}
	}
}
