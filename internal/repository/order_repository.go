package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/ident"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// OrderRepo manages orders, their shared order lines and the order_items
// join rows that attach lines to orders.
type OrderRepo struct {
	db    *sql.DB
	tiers *TierRepo
}

// NewOrderRepo constructs an OrderRepo with the given DB handle.
func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db, tiers: NewTierRepo(db)}
}

// CreateOrder persists a pending order for the draft in a single
// transaction: every tier is resolved by name on the draft's event, each
// (tier, quantity) line is found or created, the order row is inserted
// under a freshly generated code and the lines are attached.  Any failure
// rolls back every write.  Quantities must already be validated positive;
// a quantity above the tier purchase limit yields a *model.ValidationError.
func (r *OrderRepo) CreateOrder(ctx context.Context, d model.OrderDraft, now time.Time) (*model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Every tier is resolved and checked before the first write.
	lines := make([]model.OrderLine, 0, len(d.Lines))
	for i, req := range d.Lines {
		tier, err := r.tiers.GetByNameForEventTx(ctx, tx, d.EventID, req.TierName)
		if err != nil {
			return nil, fmt.Errorf("resolve ticket %q: %w", req.TierName, err)
		}
		if tier.PurchaseLimit > 0 && req.Quantity > tier.PurchaseLimit {
			return nil, model.NewValidationError(
				fmt.Sprintf("selected_ticket[%d].quantity", i),
				fmt.Sprintf("at most %d %s tickets may be bought per order", tier.PurchaseLimit, tier.Name))
		}
		lines = append(lines, model.OrderLine{
			TierID: tier.ID, TierName: tier.Name, Price: tier.Price, Quantity: req.Quantity,
		})
	}
	for i := range lines {
		lineID, err := r.findOrCreateLineTx(ctx, tx, lines[i].TierID, lines[i].Quantity)
		if err != nil {
			return nil, err
		}
		lines[i].ID = lineID
	}

	const ins = `INSERT INTO orders (order_code, user_id, event_id, email, status) VALUES (?, ?, ?, ?, 'pending')`
	var orderID int64
	code, err := ident.Retry(func() string { return ident.NewOrderCode(now) }, func(code string) error {
		res, err := tx.ExecContext(ctx, ins, code, d.UserID, d.EventID, d.Email)
		if err != nil {
			return err
		}
		orderID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, order_line_id) VALUES (?, ?)", orderID, l.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	return &model.Order{
		ID:        uint64(orderID),
		Code:      code,
		UserID:    d.UserID,
		EventID:   d.EventID,
		Email:     d.Email,
		Status:    model.OrderPending,
		Lines:     lines,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// findOrCreateLineTx returns the id of the shared (tier, quantity) line,
// inserting it when missing.  LAST_INSERT_ID(id) makes the duplicate
// branch report the existing row's id.
func (r *OrderRepo) findOrCreateLineTx(ctx context.Context, tx *sql.Tx, tierID uint64, qty int) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO order_lines (tier_id, quantity) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`, tierID, qty)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// SetPaymentReference stores the gateway reference on a pending order.
// The reference is write-once: ErrConflict is returned when the order
// already carries one or is no longer pending.
func (r *OrderRepo) SetPaymentReference(ctx context.Context, orderID uint64, ref string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET payment_ref = ? WHERE id = ? AND payment_ref IS NULL AND status = 'pending'",
		ref, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// TransitionStatus moves an order from one status to another only if it
// is currently in from.  The returned bool reports whether this call made
// the change; exactly one of any number of concurrent callers wins.
func (r *OrderRepo) TransitionStatus(ctx context.Context, orderID uint64, from, to model.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		string(to), orderID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const orderSelect = `SELECT o.id, o.order_code, o.user_id, o.event_id, e.name, e.slug, o.email, o.status,
	o.payment_ref, o.created_at, o.updated_at
	FROM orders o JOIN events e ON e.id = o.event_id`

func (r *OrderRepo) loadOne(ctx context.Context, where string, args ...any) (*model.Order, error) {
	var (
		o      model.Order
		userID sql.NullInt64
		ref    sql.NullString
		status string
	)
	err := r.db.QueryRowContext(ctx, orderSelect+" WHERE "+where, args...).Scan(
		&o.ID, &o.Code, &userID, &o.EventID, &o.EventName, &o.EventSlug, &o.Email, &status,
		&ref, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if userID.Valid {
		id := uint64(userID.Int64)
		o.UserID = &id
	}
	if ref.Valid {
		s := ref.String
		o.PaymentRef = &s
	}
	if o.Lines, err = r.linesFor(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) linesFor(ctx context.Context, orderID uint64) ([]model.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.tier_id, t.name, t.price, l.quantity
		 FROM order_items oi
		 JOIN order_lines l ON l.id = oi.order_line_id
		 JOIN ticket_tiers t ON t.id = l.tier_id
		 WHERE oi.order_id = ?
		 ORDER BY l.id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OrderLine
	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.ID, &l.TierID, &l.TierName, &l.Price, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetByCode loads an order and its lines by public order code.
func (r *OrderRepo) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	return r.loadOne(ctx, "o.order_code = ?", code)
}

// GetByCodeAndReference loads an order only when both the code and the
// stored payment reference match.
func (r *OrderRepo) GetByCodeAndReference(ctx context.Context, code, ref string) (*model.Order, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, ErrOrderNotFound
	}
	return r.loadOne(ctx, "o.order_code = ? AND o.payment_ref = ?", code, ref)
}

// ListAwaitingFulfillment returns successful orders that still lack a
// ticket for some unit or have a ticket whose email was never delivered.
func (r *OrderRepo) ListAwaitingFulfillment(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.order_code FROM orders o
		 WHERE o.status = 'success' AND (
		   (SELECT COALESCE(SUM(l.quantity), 0) FROM order_items oi
		      JOIN order_lines l ON l.id = oi.order_line_id WHERE oi.order_id = o.id)
		   > (SELECT COUNT(*) FROM purchased_tickets p WHERE p.order_id = o.id)
		   OR EXISTS (SELECT 1 FROM purchased_tickets p WHERE p.order_id = o.id AND p.delivered_at IS NULL))
		 ORDER BY o.id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return nil, err
		}
		codes = append(codes, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Order, 0, len(codes))
	for _, c := range codes {
		o, err := r.GetByCode(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}
