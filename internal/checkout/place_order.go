package checkout

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/pricing"
	"github.com/shopspring/decimal"
)

// errPricedFreeOrder guards against skipping the gateway for an order
// that carries a paid tier.
var errPricedFreeOrder = errors.New("checkout: zero total computed for an order with priced tickets")

// PlaceOrderRequest is a buyer's checkout submission.
type PlaceOrderRequest struct {
	Event       *model.Event
	UserID      *uint64
	Email       string
	Items       []CartItem
	CallbackURL string
}

// PlaceOrderResult is returned to the buyer.  Reference and
// AuthorizationURL are empty for free orders.
type PlaceOrderResult struct {
	Order            *model.Order
	Amount           decimal.Decimal
	Reference        string
	AuthorizationURL string
}

// Free reports whether the order needs no payment.
func (r *PlaceOrderResult) Free() bool { return r.Amount.IsZero() }

// Checkout assembles orders and starts their payment.
type Checkout struct {
	Assembler *Assembler
	Orders    OrderStore
	Gateway   Gateway
}

// PlaceOrder assembles the order, prices it and, unless the total is
// zero, initializes the payment and stores the returned reference.  On a
// gateway failure the order stays pending without a reference and the
// *payment.GatewayError is returned together with the partial result.
func (c *Checkout) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	order, err := c.Assembler.Assemble(ctx, req.Event, req.UserID, req.Email, req.Items)
	if err != nil {
		return nil, err
	}
	total, err := pricing.OrderTotal(order)
	if err != nil {
		return nil, err
	}
	res := &PlaceOrderResult{Order: order, Amount: total}

	if total.IsZero() {
		for _, l := range order.Lines {
			if l.Price.IsPositive() {
				return nil, errPricedFreeOrder
			}
		}
		monitoring.TrackOrderCreated("free")
		return res, nil
	}

	started := time.Now()
	init, err := c.Gateway.Initialize(ctx, payment.InitializeRequest{
		Email:       order.Email,
		Amount:      total,
		CallbackURL: req.CallbackURL,
		Metadata: map[string]any{
			"order_id": order.Code,
			"event":    order.EventSlug,
		},
	})
	monitoring.TrackGatewayCall("initialize", err, time.Since(started))
	if err != nil {
		log.Printf("checkout: initialize payment for order %s: %v", order.Code, err)
		monitoring.TrackOrderCreated("gateway_error")
		return res, err
	}

	if err := c.Orders.SetPaymentReference(ctx, order.ID, init.Reference); err != nil {
		return res, err
	}
	ref := init.Reference
	order.PaymentRef = &ref
	res.Reference = init.Reference
	res.AuthorizationURL = init.AuthorizationURL
	monitoring.TrackOrderCreated("awaiting_payment")
	return res, nil
}
