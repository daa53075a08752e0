package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/ident"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// TierRepo manages the ticket tiers offered for an event.
type TierRepo struct {
	db *sql.DB
}

// NewTierRepo constructs a TierRepo with the given DB handle.
func NewTierRepo(db *sql.DB) *TierRepo { return &TierRepo{db: db} }

const tierColumns = `id, event_id, name, description, price, stock_type, quantity, purchase_limit,
	sale_starts_at, sale_ends_at, is_active, created_at, updated_at`

func scanTier(s rowScanner, t *model.TicketTier) error {
	var qty sql.NullInt64
	if err := s.Scan(&t.ID, &t.EventID, &t.Name, &t.Description, &t.Price, &t.StockType, &qty,
		&t.PurchaseLimit, &t.SaleStartsAt, &t.SaleEndsAt, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	if qty.Valid {
		n := int(qty.Int64)
		t.Quantity = &n
	}
	return nil
}

// Create validates and inserts a tier.  A zero PurchaseLimit is replaced
// with model.DefaultPurchaseLimit.  A name already used on the same event
// yields ErrDuplicateTicket.
func (r *TierRepo) Create(ctx context.Context, t *model.TicketTier) error {
	if t.PurchaseLimit == 0 {
		t.PurchaseLimit = model.DefaultPurchaseLimit
	}
	if err := t.Validate(); err != nil {
		return err
	}
	const q = `INSERT INTO ticket_tiers (event_id, name, description, price, stock_type, quantity,
		purchase_limit, sale_starts_at, sale_ends_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.EventID, t.Name, t.Description, t.Price, t.StockType,
		t.Quantity, t.PurchaseLimit, t.SaleStartsAt.UTC(), t.SaleEndsAt.UTC())
	if err != nil {
		if ident.IsDuplicateKey(err) {
			return ErrDuplicateTicket
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.IsActive = true
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

// ListByEvent returns the tiers of an event, cheapest first.
func (r *TierRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE event_id = ? ORDER BY price ASC, id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketTier
	for rows.Next() {
		var t model.TicketTier
		if err := scanTier(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByNameForEventTx resolves an active tier by name within an event
// using the caller's transaction.  Inactive tiers are reported as missing.
func (r *TierRepo) GetByNameForEventTx(ctx context.Context, tx *sql.Tx, eventID uint64, name string) (*model.TicketTier, error) {
	var t model.TicketTier
	err := scanTier(tx.QueryRowContext(ctx,
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE event_id = ? AND name = ? AND is_active = 1`,
		eventID, name), &t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}
