package controllers

import (
	"net/http"
	"strings"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/labstack/echo/v4"
)

type EarningController struct {
	commissions *services.CommissionService
}

func NewEarningController(commissions *services.CommissionService) *EarningController {
	return &EarningController{commissions: commissions}
}

// RecordEarning books the commission of one invoice, project, subscription or referral
func (ec *EarningController) RecordEarning(c echo.Context) error {
	var req models.RecordEarningRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	earning, err := ec.commissions.RecordEarning(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Commission earning recorded",
		Data:    earning,
	})
}

// earningFilter reads the list filters shared by the finance and portal views.
func earningFilter(c echo.Context) (repositories.EarningFilter, error) {
	f := repositories.EarningFilter{
		SourceType: c.QueryParam("sourceType"),
		SourceID:   c.QueryParam("sourceId"),
		Limit:      queryLimit(c),
	}
	if status := c.QueryParam("status"); status != "" {
		f.Statuses = strings.Split(status, ",")
	}
	payoutID, err := queryID(c, "payoutId")
	if err != nil {
		return f, err
	}
	f.PayoutID = payoutID
	return f, nil
}

func (ec *EarningController) ListEarnings(c echo.Context) error {
	f, err := earningFilter(c)
	if err != nil {
		return badRequest(c, "Invalid payoutId")
	}
	repID, err := queryID(c, "salesRepId")
	if err != nil {
		return badRequest(c, "Invalid salesRepId")
	}
	f.SalesRepID = repID

	earnings, err := ec.commissions.ListEarnings(c.Request().Context(), f)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earnings retrieved successfully",
		Data:    earnings,
	})
}

func (ec *EarningController) GetEarning(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid earning ID")
	}

	earning, err := ec.commissions.GetEarning(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earning retrieved successfully",
		Data:    earning,
	})
}

func (ec *EarningController) MarkEarned(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid earning ID")
	}

	earning, err := ec.commissions.MarkEarned(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earning confirmed",
		Data:    earning,
	})
}

func (ec *EarningController) MarkPayable(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid earning ID")
	}

	earning, err := ec.commissions.MarkPayable(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earning released for payout",
		Data:    earning,
	})
}

func (ec *EarningController) ReverseEarning(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid earning ID")
	}
	var req models.ReverseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	earning, err := ec.commissions.ReverseEarning(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earning reversed",
		Data:    earning,
	})
}

// PromoteDue runs the hold-period promotion on demand
func (ec *EarningController) PromoteDue(c echo.Context) error {
	promoted, err := ec.commissions.PromoteDue(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Due earnings promoted",
		Data:    map[string]int{"promoted": promoted},
	})
}

// ReverseSource undoes the commissions of a refunded or cancelled source
func (ec *EarningController) ReverseSource(c echo.Context) error {
	var req models.ReverseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := ec.commissions.ReverseSource(c.Request().Context(), c.Param("type"), c.Param("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Source earnings reversed",
		Data:    result,
	})
}
