// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

// RateLimiter throttles requests per client IP, with tighter limits on the
// endpoints that move money.
type RateLimiter struct {
	ips            map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             sync.Mutex
	defaultLimit   rate.Limit
	defaultBurst   int
	blockDuration  time.Duration
	endpointLimits map[string]endpointLimit
	now            func() time.Time
	done           chan struct{}
}

func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = 20
	}
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	limiter := &RateLimiter{
		ips:           make(map[string]*rate.Limiter),
		blockedIPs:    make(map[string]time.Time),
		defaultLimit:  rate.Limit(rps),
		defaultBurst:  burst,
		blockDuration: 5 * time.Minute,
		endpointLimits: map[string]endpointLimit{
			// Each call moves money or locks earnings
			"/api/payouts":             {limit: rate.Every(time.Second), burst: 5},
			"/api/payouts/:id/pay":     {limit: rate.Every(time.Second), burst: 5},
			"/api/payouts/:id/reverse": {limit: rate.Every(time.Second), burst: 5},
			"/api/advances":            {limit: rate.Every(time.Second), burst: 5},
		},
		now:  time.Now,
		done: make(chan struct{}),
	}

	go limiter.cleanupBlockedIPs()

	return limiter
}

// Stop ends the cleanup routine.
func (r *RateLimiter) Stop() {
	close(r.done)
}

func (r *RateLimiter) cleanupBlockedIPs() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for ip, blockUntil := range r.blockedIPs {
				if now.After(blockUntil) {
					delete(r.blockedIPs, ip)
					delete(r.ips, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Path() {
			case "/health", "/metrics":
				return next(c)
			}
			ip := c.RealIP()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if r.now().Before(blockUntil) {
					r.mu.Unlock()
					return tooManyRequests(c, blockUntil)
				}
				// Block has expired - remove it and reset the limiter
				delete(r.blockedIPs, ip)
				delete(r.ips, ip)
			}
			r.mu.Unlock()

			limit, burst := r.defaultLimit, r.defaultBurst
			key := ip
			if el, ok := r.endpointLimits[c.Path()]; ok && c.Request().Method == http.MethodPost {
				limit, burst = el.limit, el.burst
				key = ip + " " + c.Path()
			}

			if !r.getLimiter(key, limit, burst).Allow() {
				blockUntil := r.now().Add(r.blockDuration)
				r.mu.Lock()
				r.blockedIPs[ip] = blockUntil
				r.mu.Unlock()
				return tooManyRequests(c, blockUntil)
			}

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, until time.Time) error {
	c.Response().Header().Set("Retry-After", until.UTC().Format(http.TimeFormat))
	return c.JSON(http.StatusTooManyRequests, models.Response{
		Status:  http.StatusTooManyRequests,
		Message: "Too many requests",
		Data:    map[string]string{"retryAfter": until.Format(time.RFC3339)},
	})
}

func (r *RateLimiter) getLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, exists := r.ips[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		r.ips[key] = limiter
	}
	return limiter
}
