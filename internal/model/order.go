package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderSuccess OrderStatus = "success"
	OrderFailed  OrderStatus = "failed"
)

// OrderLine is a (tier, quantity) pair.  Lines are shared rows: two orders
// buying two "VIP" tickets reference the same order_lines row through the
// order_items join table.
type OrderLine struct {
	ID       uint64          // order_lines.id
	TierID   uint64          // order_lines.tier_id
	TierName string          // ticket_tiers.name
	Price    decimal.Decimal // ticket_tiers.price
	Quantity int             // order_lines.quantity
}

// Order is a buyer's checkout for one event.  The total is never stored;
// use pricing.OrderTotal.
//
// Fields:
//  ID         – primary key identifier.
//  Code       – public order identifier returned to the buyer.
//  UserID     – authenticated buyer, nil for guest checkout.
//  EventID    – event being purchased.
//  Email      – contact address tickets are delivered to.
//  Status     – pending, success or failed.
//  PaymentRef – gateway reference, nil until initialisation.
//  Lines      – attached order lines.
type Order struct {
	ID         uint64      // orders.id
	Code       string      // orders.order_code
	UserID     *uint64     // orders.user_id (nullable)
	EventID    uint64      // orders.event_id
	EventName  string      // events.name
	EventSlug  string      // events.slug
	Email      string      // orders.email
	Status     OrderStatus // orders.status
	PaymentRef *string     // orders.payment_ref (nullable)
	Lines      []OrderLine // order_items -> order_lines
	CreatedAt  time.Time   // orders.created_at
	UpdatedAt  time.Time   // orders.updated_at
}

// Reference returns the payment reference or "" when none is stored.
func (o *Order) Reference() string {
	if o.PaymentRef == nil {
		return ""
	}
	return *o.PaymentRef
}

// Units is the number of tickets the order entitles the buyer to.
func (o *Order) Units() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// LineRequest is one requested cart line resolved by tier name.
type LineRequest struct {
	TierName string
	Quantity int
}

// OrderDraft carries everything needed to persist a new pending order.
type OrderDraft struct {
	EventID uint64
	UserID  *uint64
	Email   string
	Lines   []LineRequest
}
