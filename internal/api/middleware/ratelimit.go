package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// SubmitLimiter keeps one token bucket per account.
type SubmitLimiter struct {
	accounts map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewSubmitLimiter allows one request every per, with bursts of burst.
func NewSubmitLimiter(per time.Duration, burst int) *SubmitLimiter {
	return &SubmitLimiter{
		accounts: make(map[string]*rate.Limiter),
		r:        rate.Every(per),
		b:        burst,
	}
}

func (l *SubmitLimiter) Allow(account string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.accounts[account]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.accounts[account] = limiter
	}

	return limiter.Allow()
}

// Prune drops the buckets that have refilled completely. A full bucket
// behaves exactly like a new one, so only idle accounts are forgotten.
func (l *SubmitLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for account, limiter := range l.accounts {
		if limiter.Tokens() >= float64(l.b) {
			delete(l.accounts, account)
			removed++
		}
	}
	return removed
}

// Handler rejects requests of accounts that are over their limit. It must
// run after AuthMiddleware.
func (l *SubmitLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, _ := c.Locals(LocalAccount).(string)
		if !l.Allow(account) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "You are posting too fast, please wait a moment",
			})
		}
		return c.Next()
	}
}
