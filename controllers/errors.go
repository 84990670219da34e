package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/HSouheill/barrim_ledger/middleware"
	"github.com/HSouheill/barrim_ledger/models"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// statusFor maps a service error to the HTTP status it is reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrEarningLocked),
		errors.Is(err, services.ErrEarningUnavailable),
		errors.Is(err, services.ErrDuplicateEarning),
		errors.Is(err, services.ErrDuplicateRep),
		errors.Is(err, services.ErrPayoutInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrRepNotPayable),
		errors.Is(err, services.ErrNothingToPay),
		errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		middleware.Logger(c).WithError(err).WithField("route", c.Path()).Error("request failed")
		message = "Internal server error"
	}
	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: message,
	})
}

// bindAndValidate decodes the body into req and runs the registered
// validator. Failures wrap services.ErrValidation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", services.ErrValidation)
	}
	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %s", services.ErrValidation, err.Error())
	}
	return nil
}

func pathID(c echo.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	return id, err == nil
}

// queryID parses an optional object id query parameter.
func queryID(c echo.Context, name string) (*primitive.ObjectID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryLimit(c echo.Context) int64 {
	limit, err := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if err != nil || limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
