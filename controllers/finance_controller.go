package controllers

import (
	"net/http"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/labstack/echo/v4"
)

type FinanceController struct {
	finance     *services.FinanceService
	commissions *services.CommissionService
}

func NewFinanceController(finance *services.FinanceService, commissions *services.CommissionService) *FinanceController {
	return &FinanceController{finance: finance, commissions: commissions}
}

// GetSummary returns the ledger-wide commission position
func (fc *FinanceController) GetSummary(c echo.Context) error {
	summary, err := fc.finance.Summary(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Finance summary retrieved successfully",
		Data:    summary,
	})
}

func (fc *FinanceController) GetBalances(c echo.Context) error {
	balances, err := fc.commissions.Balances(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Balances retrieved successfully",
		Data:    balances,
	})
}
