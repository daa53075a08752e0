package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/checkout"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/pricing"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// OnSaleEvents resolves events open for purchase.
type OnSaleEvents interface {
	GetOnSaleBySlug(ctx context.Context, slug string, now time.Time) (*model.Event, error)
}

// OrderPlacer starts checkout for a cart.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*checkout.PlaceOrderResult, error)
}

// PaymentConfirmer verifies payments and triggers fulfillment.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, req checkout.ConfirmRequest) (*checkout.ConfirmResult, error)
}

// OrderReader loads orders by their public code.
type OrderReader interface {
	GetByCode(ctx context.Context, code string) (*model.Order, error)
}

// IssuedTickets lists the ticket units materialised for an order.
type IssuedTickets interface {
	ListByOrder(ctx context.Context, orderID uint64) ([]model.PurchasedTicket, error)
}

// UserLookup loads an account by id.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// OrderHandler serves checkout and payment verification.
type OrderHandler struct {
	Events      OnSaleEvents
	Checkout    OrderPlacer
	Engine      PaymentConfirmer
	Orders      OrderReader
	Issued      IssuedTickets // optional; adds issued codes to paid order summaries
	Users       UserLookup // optional; signed-in buyers receive tickets at their account email
	CallbackURL string
	SiteURL     string
	Now         func() time.Time
}

func (h *OrderHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

type createOrderReq struct {
	Email          string              `json:"email"`
	SelectedTicket []checkout.CartItem `json:"selected_ticket"`
}

// Create handles POST /v1/events/:slug/orders.
func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	event, err := h.Events.GetOnSaleBySlug(ctx, c.Param("slug"), h.now())
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event is not available"})
		}
		return writeError(c, err)
	}

	userID := optionalUserID(c)
	email := req.Email
	if userID != nil && h.Users != nil {
		u, err := h.Users.GetByID(ctx, *userID)
		switch {
		case err == nil:
			email = u.Email
		case errors.Is(err, sql.ErrNoRows):
			userID = nil
		default:
			return writeError(c, err)
		}
	}

	res, err := h.Checkout.PlaceOrder(ctx, checkout.PlaceOrderRequest{
		Event:       event,
		UserID:      userID,
		Email:       email,
		Items:       req.SelectedTicket,
		CallbackURL: h.CallbackURL,
	})
	if err != nil {
		if res != nil && errors.Is(err, payment.ErrGateway) {
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":    "payment gateway unavailable, please retry",
				"order_id": res.Order.Code,
			})
		}
		return writeError(c, err)
	}

	out := echo.Map{"order_id": res.Order.Code, "amount": money(res.Amount)}
	if !res.Free() {
		out["reference"] = res.Reference
		out["authorization_url"] = res.AuthorizationURL
	}
	return c.JSON(http.StatusOK, out)
}

type summaryLine struct {
	Ticket   string `json:"ticket"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
}

// Summary handles GET /v1/orders/:order_id/summary.
func (h *OrderHandler) Summary(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.GetByCode(ctx, c.Param("order_id"))
	if err != nil {
		return writeError(c, err)
	}
	lines := make([]summaryLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lt, err := pricing.LineTotal(l.Price, l.Quantity)
		if err != nil {
			return writeError(c, err)
		}
		lines = append(lines, summaryLine{Ticket: l.TierName, Price: money(l.Price), Quantity: l.Quantity, Total: money(lt)})
	}
	total, err := pricing.OrderTotal(o)
	if err != nil {
		return writeError(c, err)
	}
	out := echo.Map{
		"order_id":     o.Code,
		"event":        o.EventSlug,
		"event_name":   o.EventName,
		"email":        o.Email,
		"status":       o.Status,
		"reference":    o.Reference(),
		"tickets":      lines,
		"total_amount": money(total),
	}
	if h.Issued != nil && o.Status == model.OrderSuccess {
		units, err := h.Issued.ListByOrder(ctx, o.ID)
		if err != nil {
			return writeError(c, err)
		}
		issued := make([]issuedUnit, 0, len(units))
		for _, u := range units {
			issued = append(issued, issuedUnit{Code: u.Code, Ticket: u.TierName, CheckinStatus: u.CheckinStatus, Delivered: u.Delivered()})
		}
		out["issued"] = issued
	}
	return c.JSON(http.StatusOK, out)
}

type issuedUnit struct {
	Code          string `json:"code"`
	Ticket        string `json:"ticket"`
	CheckinStatus string `json:"checkin_status"`
	Delivered     bool   `json:"delivered"`
}

// Verify handles GET /v1/orders/:order_id/verify[/:reference].  The
// reference is omitted only for free orders.
func (h *OrderHandler) Verify(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Engine.ConfirmPayment(ctx, checkout.ConfirmRequest{
		OrderCode: c.Param("order_id"),
		Reference: c.Param("reference"),
		SiteURL:   h.SiteURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrGateway):
			return writeError(c, err)
		case errors.Is(err, repository.ErrOrderNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order not found for this reference"})
		default:
			return writeError(c, err)
		}
	}
	if res.AlreadyVerified {
		return c.JSON(http.StatusOK, echo.Map{"success": "Your transaction has already been verified"})
	}
	if res.Status != model.OrderSuccess {
		// The processor's own answer tells the buyer why the payment failed.
		if res.Verification != nil && len(res.Verification.Raw) > 0 {
			return c.JSONBlob(http.StatusBadRequest, res.Verification.Raw)
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment was not successful", "status": res.Status})
	}
	return c.JSONBlob(http.StatusOK, res.Verification.Raw)
}
