package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newLimitedServer(rl *RateLimiter) *echo.Echo {
	e := echo.New()
	e.Use(rl.RateLimit())
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.POST("/api/payouts", ok)
	e.GET("/api/payouts", ok)
	e.GET("/health", ok)
	return e
}

func call(e *echo.Echo, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":4242"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_PayoutEndpoint(t *testing.T) {
	rl := NewRateLimiter(100)
	defer rl.Stop()
	e := newLimitedServer(rl)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, call(e, http.MethodPost, "/api/payouts", "10.0.0.1").Code)
	}
	rec := call(e, http.MethodPost, "/api/payouts", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// the client stays blocked on every route except health checks
	assert.Equal(t, http.StatusTooManyRequests, call(e, http.MethodGet, "/api/payouts", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/health", "10.0.0.1").Code)

	assert.Equal(t, http.StatusOK, call(e, http.MethodPost, "/api/payouts", "10.0.0.2").Code)
}

func TestRateLimiter_DefaultLimit(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()
	e := newLimitedServer(rl)

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/api/payouts", "10.0.0.3").Code)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/api/payouts", "10.0.0.3").Code)
	assert.Equal(t, http.StatusTooManyRequests, call(e, http.MethodGet, "/api/payouts", "10.0.0.3").Code)
}

func TestRateLimiter_FractionalRateAllowsOneRequest(t *testing.T) {
	rl := NewRateLimiter(0.2)
	defer rl.Stop()
	e := newLimitedServer(rl)

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/api/payouts", "10.0.0.4").Code)
	assert.Equal(t, http.StatusTooManyRequests, call(e, http.MethodGet, "/api/payouts", "10.0.0.4").Code)
}
