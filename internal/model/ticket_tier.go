package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock policies for a ticket tier.
const (
	StockLimited   = "limited"
	StockUnlimited = "unlimited"
)

// DefaultPurchaseLimit is the per-order cap applied when a tier does not
// specify one.
const DefaultPurchaseLimit = 5

// TicketTier is a priced class of ticket for one event, e.g. "General" or
// "VIP".  Names are unique within an event.
type TicketTier struct {
	ID            uint64          // ticket_tiers.id
	EventID       uint64          // ticket_tiers.event_id
	Name          string          // ticket_tiers.name
	Description   string          // ticket_tiers.description
	Price         decimal.Decimal // ticket_tiers.price DECIMAL(10,2)
	StockType     string          // ticket_tiers.stock_type
	Quantity      *int            // ticket_tiers.quantity (nullable)
	PurchaseLimit int             // ticket_tiers.purchase_limit
	SaleStartsAt  time.Time       // ticket_tiers.sale_starts_at
	SaleEndsAt    time.Time       // ticket_tiers.sale_ends_at
	IsActive      bool            // ticket_tiers.is_active
	CreatedAt     time.Time       // ticket_tiers.created_at
	UpdatedAt     time.Time       // ticket_tiers.updated_at
}

// Validate checks the tier invariants.  It is called by the repository
// before every insert so invalid tiers never reach the database.
func (t *TicketTier) Validate() error {
	verr := &ValidationError{}
	if t.Name == "" {
		verr.Add("name", "name is required")
	}
	if t.Price.IsNegative() {
		verr.Add("price", "price cannot be negative")
	}
	switch t.StockType {
	case StockUnlimited:
	case StockLimited:
		if t.Quantity == nil || *t.Quantity <= 0 {
			verr.Add("quantity", "limited stock requires a positive quantity")
		}
	default:
		verr.Add("stock_type", "stock_type must be limited or unlimited")
	}
	if t.PurchaseLimit < 0 {
		verr.Add("limit", "purchase limit cannot be negative")
	}
	if t.SaleEndsAt.IsZero() {
		verr.Add("sale_end_date", "sale end date is required")
	} else if !t.SaleStartsAt.Before(t.SaleEndsAt) {
		verr.Add("sale_start_date", "the start time for the ticket sale cannot be greater than the end time")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}
