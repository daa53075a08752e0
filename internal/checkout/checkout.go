// Package checkout runs the order to payment to ticket pipeline.
//
// Assembler persists a pending order from a buyer's cart.  Checkout prices
// it and starts the payment with the gateway.  Engine confirms the payment
// and, through an atomic pending to success transition, hands the order to
// fulfillment exactly once.
package checkout

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticketing/internal/fulfillment"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/queue"
)

// OrderStore is the persistence the pipeline needs.  repository.OrderRepo
// implements it.
type OrderStore interface {
	CreateOrder(ctx context.Context, d model.OrderDraft, now time.Time) (*model.Order, error)
	SetPaymentReference(ctx context.Context, orderID uint64, ref string) error
	GetByCode(ctx context.Context, code string) (*model.Order, error)
	GetByCodeAndReference(ctx context.Context, code, ref string) (*model.Order, error)
	TransitionStatus(ctx context.Context, orderID uint64, from, to model.OrderStatus) (bool, error)
	ListAwaitingFulfillment(ctx context.Context, limit int) ([]model.Order, error)
}

// Gateway is the payment processor.  payment.Client implements it.
type Gateway interface {
	Initialize(ctx context.Context, req payment.InitializeRequest) (*payment.Initialization, error)
	Verify(ctx context.Context, reference string) (*payment.Verification, error)
}

// Fulfiller issues tickets for a paid order.  fulfillment.Fulfiller
// implements it.
type Fulfiller interface {
	FulfillOrder(ctx context.Context, order *model.Order, siteURL string) (*fulfillment.Report, error)
}

// Publisher announces paid orders.  queue.Publisher implements it.
type Publisher interface {
	PublishOrderPaid(ctx context.Context, ev queue.OrderPaidEvent) error
}
