package routes

import (
	"github.com/HSouheill/barrim_ledger/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterPortalRoutes sets up the sales representative self-service routes
func RegisterPortalRoutes(e *echo.Echo, ctrl Controllers, auth echo.MiddlewareFunc) {
	me := e.Group("/api/sales-rep/me", auth, middleware.RequireUserType(middleware.UserTypeSalesRep))
	me.GET("/balance", ctrl.Portal.MyBalance)
	me.GET("/earnings", ctrl.Portal.MyEarnings)
	me.GET("/payouts", ctrl.Portal.MyPayouts)

	// The handler checks the user type itself since the token may come as a query parameter
	e.GET("/api/ws", ctrl.Portal.Connect, auth)
}
