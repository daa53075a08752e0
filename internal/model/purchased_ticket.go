package model

import "time"

// Check-in states of a purchased ticket.
const (
	CheckinNew = "new"
	CheckinIn  = "in"
	CheckinOut = "out"
)

// PurchasedTicket is one redeemable unit issued after payment.  The
// (OrderID, OrderLineID, UnitIndex) triple is unique so a unit is never
// materialised twice.
type PurchasedTicket struct {
	ID            uint64     // purchased_tickets.id
	OrderID       uint64     // purchased_tickets.order_id
	OrderLineID   uint64     // purchased_tickets.order_line_id
	UnitIndex     int        // purchased_tickets.unit_index
	TierID        uint64     // purchased_tickets.tier_id
	TierName      string     // ticket_tiers.name
	Code          string     // purchased_tickets.code
	ImagePath     *string    // purchased_tickets.image_path (nullable)
	CheckinStatus string     // purchased_tickets.checkin_status
	DeliveredAt   *time.Time // purchased_tickets.delivered_at (nullable)
	CreatedAt     time.Time  // purchased_tickets.created_at
	OrderEmail    string     // orders.email
}

// Delivered reports whether the ticket email has been sent.
func (p *PurchasedTicket) Delivered() bool { return p.DeliveredAt != nil }

// ValidCheckinTarget reports whether status is a state a scan may move a
// ticket into.
func ValidCheckinTarget(status string) bool {
	return status == CheckinIn || status == CheckinOut
}
