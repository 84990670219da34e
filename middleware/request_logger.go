package middleware

import (
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const loggerKey = "logger"

// ContextLogger stores a request-scoped entry of log on the context.
func ContextLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(loggerKey, log.WithFields(logrus.Fields{
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
			}))
			return next(c)
		}
	}
}

// Logger returns the entry set by ContextLogger, or one on the standard
// logrus logger.
func Logger(c echo.Context) *logrus.Entry {
	if entry, ok := c.Get(loggerKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// RequestLogger writes one structured log line per request.
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"route":   v.RoutePath,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"ip":      v.RemoteIP,
				"user":    Actor(c),
			})
			switch {
			case v.Error != nil:
				entry.WithError(v.Error).Error("request failed")
			case v.Status >= 500:
				entry.Error("request")
			case v.Status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		},
	})
}
