package controllers

import (
	"net/http"

	"github.com/HSouheill/barrim_ledger/middleware"
	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const idempotencyHeader = "Idempotency-Key"

type PayoutController struct {
	payouts *services.PayoutService
}

func NewPayoutController(payouts *services.PayoutService) *PayoutController {
	return &PayoutController{payouts: payouts}
}

// CreatePayout drafts a payout. Retrying with the same Idempotency-Key
// returns the original draft with 200 instead of 201.
func (pc *PayoutController) CreatePayout(c echo.Context) error {
	var req models.CreatePayoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	repID, err := primitive.ObjectIDFromHex(req.SalesRepID)
	if err != nil {
		return badRequest(c, "Invalid salesRepId")
	}
	earningIDs := make([]primitive.ObjectID, 0, len(req.EarningIDs))
	for _, raw := range req.EarningIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return badRequest(c, "Invalid earning ID "+raw)
		}
		earningIDs = append(earningIDs, id)
	}

	key := c.Request().Header.Get(idempotencyHeader)
	if len(key) > 128 {
		return badRequest(c, "Idempotency-Key is too long")
	}

	payout, created, err := pc.payouts.CreateDraft(c.Request().Context(), services.CreateDraftInput{
		SalesRepID:     repID,
		EarningIDs:     earningIDs,
		Note:           req.Note,
		CreatedBy:      middleware.Actor(c),
		IdempotencyKey: key,
	})
	if err != nil {
		return respondError(c, err)
	}

	if !created {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Payout already created for this Idempotency-Key",
			Data:    payout,
		})
	}
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Draft payout created",
		Data:    payout,
	})
}

func (pc *PayoutController) ListPayouts(c echo.Context) error {
	repID, err := queryID(c, "salesRepId")
	if err != nil {
		return badRequest(c, "Invalid salesRepId")
	}

	payouts, err := pc.payouts.List(c.Request().Context(), repositories.PayoutFilter{
		SalesRepID: repID,
		Status:     c.QueryParam("status"),
		Limit:      queryLimit(c),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payouts retrieved successfully",
		Data:    payouts,
	})
}

func (pc *PayoutController) GetPayout(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payout ID")
	}

	payout, err := pc.payouts.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout retrieved successfully",
		Data:    payout,
	})
}

func (pc *PayoutController) PayPayout(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payout ID")
	}

	payout, err := pc.payouts.Pay(c.Request().Context(), id, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout paid",
		Data:    payout,
	})
}

func (pc *PayoutController) ReversePayout(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payout ID")
	}
	var req models.ReverseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	payout, err := pc.payouts.Reverse(c.Request().Context(), id, req.Reason, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout reversed",
		Data:    payout,
	})
}
