package controllers

import (
	"net/http"

	"github.com/HSouheill/barrim_ledger/middleware"
	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/HSouheill/barrim_ledger/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PortalController serves a sales representative their own ledger. The
// representative is always taken from the token, never from the request.
type PortalController struct {
	commissions *services.CommissionService
	payouts     *services.PayoutService
	hub         *websocket.Hub
	jwtSecret   string
}

func NewPortalController(commissions *services.CommissionService, payouts *services.PayoutService, hub *websocket.Hub, jwtSecret string) *PortalController {
	return &PortalController{commissions: commissions, payouts: payouts, hub: hub, jwtSecret: jwtSecret}
}

func currentRep(c echo.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
	return id, err == nil
}

func invalidTokenRep(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.Response{
		Status:  http.StatusUnauthorized,
		Message: "Invalid sales representative ID in token",
	})
}

func (pc *PortalController) MyBalance(c echo.Context) error {
	repID, ok := currentRep(c)
	if !ok {
		return invalidTokenRep(c)
	}

	balance, err := pc.commissions.Balance(c.Request().Context(), repID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Balance retrieved successfully",
		Data:    balance,
	})
}

func (pc *PortalController) MyEarnings(c echo.Context) error {
	repID, ok := currentRep(c)
	if !ok {
		return invalidTokenRep(c)
	}
	f, err := earningFilter(c)
	if err != nil {
		return badRequest(c, "Invalid payoutId")
	}
	f.SalesRepID = &repID

	earnings, err := pc.commissions.ListEarnings(c.Request().Context(), f)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Earnings retrieved successfully",
		Data:    earnings,
	})
}

func (pc *PortalController) MyPayouts(c echo.Context) error {
	repID, ok := currentRep(c)
	if !ok {
		return invalidTokenRep(c)
	}

	payouts, err := pc.payouts.List(c.Request().Context(), repositories.PayoutFilter{
		SalesRepID: &repID,
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

// Connect opens the notification socket. Browsers pass the token as ?token=
// since they cannot set headers on the upgrade request.
func (pc *PortalController) Connect(c echo.Context) error {
	userID := middleware.GetUserIDFromToken(c)
	userType := middleware.ExtractUserType(c)
	if userID == "" {
		claims, err := middleware.ParseToken(pc.jwtSecret, c.QueryParam("token"))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Please provide valid credentials",
			})
		}
		userID, userType = claims.UserID, claims.UserType
	}
	if userType != middleware.UserTypeSalesRep {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Notifications are available to sales representatives only",
		})
	}

	repID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return badRequest(c, "Invalid sales representative ID in token")
	}
	return websocket.HandleWebSocket(c, pc.hub, repID)
}
