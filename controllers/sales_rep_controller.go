package controllers

import (
	"net/http"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/labstack/echo/v4"
)

type SalesRepController struct {
	commissions *services.CommissionService
}

func NewSalesRepController(commissions *services.CommissionService) *SalesRepController {
	return &SalesRepController{commissions: commissions}
}

// CreateSalesRep registers a new sales representative
func (src *SalesRepController) CreateSalesRep(c echo.Context) error {
	var req models.CreateSalesRepRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	rep, err := src.commissions.CreateRep(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Sales representative created successfully",
		Data:    rep,
	})
}

func (src *SalesRepController) ListSalesReps(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && status != models.RepActive && status != models.RepSuspended {
		return badRequest(c, "status must be active or suspended")
	}

	reps, err := src.commissions.ListReps(c.Request().Context(), status)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Sales representatives retrieved successfully",
		Data:    reps,
	})
}

func (src *SalesRepController) GetSalesRep(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales representative ID")
	}

	rep, err := src.commissions.GetRep(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Sales representative retrieved successfully",
		Data:    rep,
	})
}

// SuspendSalesRep puts a representative's payouts on hold
func (src *SalesRepController) SuspendSalesRep(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales representative ID")
	}
	var req models.SuspendSalesRepRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	rep, err := src.commissions.SuspendRep(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Sales representative suspended",
		Data:    rep,
	})
}

func (src *SalesRepController) ReactivateSalesRep(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales representative ID")
	}

	rep, err := src.commissions.ReactivateRep(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Sales representative reactivated",
		Data:    rep,
	})
}

// GetBalance returns what a representative has earned and can be paid
func (src *SalesRepController) GetBalance(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales representative ID")
	}

	balance, err := src.commissions.Balance(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Balance retrieved successfully",
		Data:    balance,
	})
}
