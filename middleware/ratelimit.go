// middleware/ratelimit.go - Fixed-window per-IP rate limiting
package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

type window struct {
	count   int
	resetAt time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
}

func newRateLimiter(limit int, period time.Duration) *rateLimiter {
	rl := &rateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
	go rl.evictLoop()
	return rl
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(rl.period)}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func (rl *rateLimiter) evictLoop() {
	for range time.Tick(rl.period) {
		rl.mu.Lock()
		now := time.Now()
		for key, w := range rl.windows {
			if now.After(w.resetAt) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

var (
	apiLimiter  = newRateLimiter(120, time.Minute)
	authLimiter = newRateLimiter(10, time.Minute)
)

// RateLimitMiddleware applies the general per-IP limit.
func RateLimitMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !apiLimiter.allow(c.IP()) {
			return c.Status(429).JSON(fiber.Map{"error": "Too many requests"})
		}
		return c.Next()
	}
}

// AuthRateLimitMiddleware applies the stricter limit on auth endpoints.
func AuthRateLimitMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !authLimiter.allow(c.IP()) {
			return c.Status(429).JSON(fiber.Map{"error": "Too many requests"})
		}
		return c.Next()
	}
}
