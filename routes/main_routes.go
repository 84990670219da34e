package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/HSouheill/barrim_ledger/metrics"
	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing service answers.
type Pinger func(ctx context.Context) error

// SetupRoutes registers the unauthenticated service routes
func SetupRoutes(e *echo.Echo, storeName string, ping Pinger) {
	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "OK",
			"message": "Barrim commission ledger is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		status := map[string]string{"status": "healthy", "store": storeName, "database": "connected"}
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				status["status"], status["database"] = "degraded", "unreachable"
				return c.JSON(http.StatusServiceUnavailable, status)
			}
		}
		return c.JSON(http.StatusOK, status)
	})

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}
