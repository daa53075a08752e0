// Package queue carries order events over RabbitMQ.  A message is
// published to the order.paid queue when an order's payment is confirmed;
// the consumer re-drives ticket fulfillment for it.
package queue

// OrderPaidQueue is the durable queue holding OrderPaidEvent messages.
const OrderPaidQueue = "order.paid"

// OrderPaidEvent is published once per order, by the request that moved
// the order from pending to success.  It holds enough to locate the order
// and rebuild redemption links without a request context.
type OrderPaidEvent struct {
	OrderID     uint64 `json:"order_id"`
	OrderCode   string `json:"order_code"`
	EventID     uint64 `json:"event_id"`
	EventSlug   string `json:"event_slug"`
	Email       string `json:"email"`
	Units       int    `json:"units"`
	TotalAmount string `json:"total_amount"`
	SiteURL     string `json:"site_url"`
	PaidAt      string `json:"paid_at"`
}
