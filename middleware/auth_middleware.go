// middleware/auth_middleware.go
package middleware

import (
	"net/http"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequireUserType checks if the authenticated user has one of the allowed user types
func RequireUserType(allowedTypes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userType := ExtractUserType(c)

			// If no user type found, deny access
			if userType == "" {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Authentication failed: user type not found",
				})
			}

			for _, allowedType := range allowedTypes {
				if userType == allowedType {
					return next(c)
				}
			}

			Logger(c).WithFields(logrus.Fields{
				"userType": userType,
				"path":     c.Request().URL.Path,
				"allowed":  allowedTypes,
			}).Warn("access denied")
			return c.JSON(http.StatusForbidden, models.Response{
				Status:  http.StatusForbidden,
				Message: "Access denied for your user type",
			})
		}
	}
}

// RequireFinance allows admins and finance staff.
func RequireFinance() echo.MiddlewareFunc {
	return RequireUserType(UserTypeAdmin, UserTypeFinance)
}
