package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/iliyamo/event-ticketing/internal/fulfillment"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/pricing"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// requestTimeout bounds the database work of a single request.  Payment
// calls carry their own timeout inside the gateway client.
const requestTimeout = 15 * time.Second

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the authenticated caller's id.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

// optionalUserID returns a pointer to the caller's id or nil for guests.
func optionalUserID(c echo.Context) *uint64 {
	id, ok := middleware.UserID(c)
	if !ok {
		return nil
	}
	return &id
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// writeError maps domain errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrTicketNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrPurchasedTicketNotFound),
		errors.Is(err, repository.ErrWalletNotFound),
		errors.Is(err, repository.ErrTransactionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrDuplicateTicket),
		errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, fulfillment.ErrLocked):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, payment.ErrGateway):
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable, please retry"})
	default:
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// money renders an amount with two decimals, as the gateway and buyers
// expect.
func money(d decimal.Decimal) string { return d.StringFixed(2) }
