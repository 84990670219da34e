package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	ExposeHeaders    []string
	MaxAge           int
}

// NewCORSConfig creates a new CORS configuration with the default origins plus extra
func NewCORSConfig(extra []string) *CORSConfig {
	// Default origins
	origins := []string{
		"http://localhost:3000", // React dev server
		"http://localhost:3001", // Alternative React port
		"http://localhost:8080", // Alternative dev port
		"https://finance.barrim.online",
	}

	for _, origin := range extra {
		if trimmedOrigin := strings.TrimSpace(origin); trimmedOrigin != "" {
			origins = append(origins, trimmedOrigin)
		}
	}

	return &CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Idempotency-Key"},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Retry-After"},
		MaxAge:           86400, // 24 hours
	}
}

// GlobalCORS creates a global CORS middleware
func GlobalCORS(extraOrigins []string) echo.MiddlewareFunc {
	config := NewCORSConfig(extraOrigins)

	return echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     config.AllowOrigins,
		AllowMethods:     config.AllowMethods,
		AllowHeaders:     config.AllowHeaders,
		AllowCredentials: config.AllowCredentials,
		ExposeHeaders:    config.ExposeHeaders,
		MaxAge:           config.MaxAge,
	})
}
