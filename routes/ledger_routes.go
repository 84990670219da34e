package routes

import (
	"github.com/HSouheill/barrim_ledger/controllers"
	"github.com/HSouheill/barrim_ledger/middleware"
	"github.com/labstack/echo/v4"
)

// Controllers bundles every handler the router mounts.
type Controllers struct {
	SalesReps *controllers.SalesRepController
	Earnings  *controllers.EarningController
	Advances  *controllers.AdvanceController
	Payouts   *controllers.PayoutController
	Finance   *controllers.FinanceController
	Portal    *controllers.PortalController
}

// RegisterLedgerRoutes sets up the finance back-office routes. auth validates
// the bearer token; every route also requires an admin or finance user.
func RegisterLedgerRoutes(e *echo.Echo, ctrl Controllers, auth echo.MiddlewareFunc) {
	finance := middleware.RequireFinance()

	// Sales representative management
	salesReps := e.Group("/api/sales-reps", auth, finance)
	salesReps.POST("", ctrl.SalesReps.CreateSalesRep)
	salesReps.GET("", ctrl.SalesReps.ListSalesReps)
	salesReps.GET("/:id", ctrl.SalesReps.GetSalesRep)
	salesReps.POST("/:id/suspend", ctrl.SalesReps.SuspendSalesRep)
	salesReps.POST("/:id/reactivate", ctrl.SalesReps.ReactivateSalesRep)
	salesReps.GET("/:id/balance", ctrl.SalesReps.GetBalance)

	// Commission earnings
	earnings := e.Group("/api/earnings", auth, finance)
	earnings.POST("", ctrl.Earnings.RecordEarning)
	earnings.GET("", ctrl.Earnings.ListEarnings)
	earnings.POST("/promote", ctrl.Earnings.PromoteDue)
	earnings.GET("/:id", ctrl.Earnings.GetEarning)
	earnings.POST("/:id/earn", ctrl.Earnings.MarkEarned)
	earnings.POST("/:id/payable", ctrl.Earnings.MarkPayable)
	earnings.POST("/:id/reverse", ctrl.Earnings.ReverseEarning)

	// Refunds and cancellations of the underlying source
	sources := e.Group("/api/sources", auth, finance)
	sources.POST("/:type/:id/reverse", ctrl.Earnings.ReverseSource)

	// Advances
	advances := e.Group("/api/advances", auth, finance)
	advances.POST("", ctrl.Advances.IssueAdvance)
	advances.GET("", ctrl.Advances.ListAdvances)
	advances.POST("/:id/cancel", ctrl.Advances.CancelAdvance)

	// Payouts
	payouts := e.Group("/api/payouts", auth, finance)
	payouts.POST("", ctrl.Payouts.CreatePayout)
	payouts.GET("", ctrl.Payouts.ListPayouts)
	payouts.GET("/:id", ctrl.Payouts.GetPayout)
	payouts.POST("/:id/pay", ctrl.Payouts.PayPayout)
	payouts.POST("/:id/reverse", ctrl.Payouts.ReversePayout)

	// Dashboard
	dashboard := e.Group("/api/finance", auth, finance)
	dashboard.GET("/summary", ctrl.Finance.GetSummary)
	dashboard.GET("/balances", ctrl.Finance.GetBalances)
}
