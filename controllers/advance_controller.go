package controllers

import (
	"net/http"

	"github.com/HSouheill/barrim_ledger/middleware"
	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/labstack/echo/v4"
)

type AdvanceController struct {
	advances *services.AdvanceService
}

func NewAdvanceController(advances *services.AdvanceService) *AdvanceController {
	return &AdvanceController{advances: advances}
}

func (ac *AdvanceController) IssueAdvance(c echo.Context) error {
	var req models.IssueAdvanceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	advance, err := ac.advances.Issue(c.Request().Context(), req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Advance issued",
		Data:    advance,
	})
}

// ListAdvances lists a representative's advances; ?outstanding=true hides settled ones
func (ac *AdvanceController) ListAdvances(c echo.Context) error {
	repID, err := queryID(c, "salesRepId")
	if err != nil || repID == nil {
		return badRequest(c, "salesRepId is required")
	}

	advances, err := ac.advances.List(c.Request().Context(), *repID, c.QueryParam("outstanding") == "true")
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Advances retrieved successfully",
		Data:    advances,
	})
}

func (ac *AdvanceController) CancelAdvance(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid advance ID")
	}

	advance, err := ac.advances.Cancel(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Advance cancelled",
		Data:    advance,
	})
}
