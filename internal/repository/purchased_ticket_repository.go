package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/ident"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// PurchasedTicketRepo manages redeemable ticket units.  A unit is keyed
// by (order_id, order_line_id, unit_index); the unique key on those
// columns is the fulfillment marker that keeps materialisation
// idempotent.
type PurchasedTicketRepo struct {
	db *sql.DB
}

// NewPurchasedTicketRepo constructs a PurchasedTicketRepo.
func NewPurchasedTicketRepo(db *sql.DB) *PurchasedTicketRepo {
	return &PurchasedTicketRepo{db: db}
}

const ticketSelect = `SELECT p.id, p.order_id, p.order_line_id, p.unit_index, p.tier_id, t.name, p.code,
	p.image_path, p.checkin_status, p.delivered_at, p.created_at, o.email
	FROM purchased_tickets p
	JOIN ticket_tiers t ON t.id = p.tier_id
	JOIN orders o ON o.id = p.order_id`

func scanTicket(s rowScanner, p *model.PurchasedTicket) error {
	var (
		img       sql.NullString
		delivered sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.OrderID, &p.OrderLineID, &p.UnitIndex, &p.TierID, &p.TierName, &p.Code,
		&img, &p.CheckinStatus, &delivered, &p.CreatedAt, &p.OrderEmail); err != nil {
		return err
	}
	if img.Valid {
		s := img.String
		p.ImagePath = &s
	}
	if delivered.Valid {
		t := delivered.Time
		p.DeliveredAt = &t
	}
	return nil
}

func (r *PurchasedTicketRepo) getOne(ctx context.Context, where string, args ...any) (*model.PurchasedTicket, error) {
	var p model.PurchasedTicket
	if err := scanTicket(r.db.QueryRowContext(ctx, ticketSelect+" WHERE "+where, args...), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchasedTicketNotFound
		}
		return nil, err
	}
	return &p, nil
}

// EnsureTicket returns the ticket for one unit of an order line, creating
// it with a fresh redemption code when it does not exist yet.  Concurrent
// callers for the same unit observe the same row.  The bool reports
// whether this call created it.
func (r *PurchasedTicketRepo) EnsureTicket(ctx context.Context, orderID, lineID uint64, unit int, tierID uint64) (*model.PurchasedTicket, bool, error) {
	const byUnit = "p.order_id = ? AND p.order_line_id = ? AND p.unit_index = ?"
	p, err := r.getOne(ctx, byUnit, orderID, lineID, unit)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrPurchasedTicketNotFound) {
		return nil, false, err
	}

	// INSERT IGNORE swallows both a lost race on the unit key and a code
	// collision; the follow-up read tells them apart.
	const ins = `INSERT IGNORE INTO purchased_tickets (order_id, order_line_id, unit_index, tier_id, code)
		VALUES (?, ?, ?, ?, ?)`
	for i := 0; i < ident.MaxAttempts; i++ {
		code := ident.NewTicketCode()
		res, err := r.db.ExecContext(ctx, ins, orderID, lineID, unit, tierID, code)
		if err != nil {
			return nil, false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, false, err
		}
		p, err := r.getOne(ctx, byUnit, orderID, lineID, unit)
		if err == nil {
			return p, n == 1, nil
		}
		if !errors.Is(err, ErrPurchasedTicketNotFound) {
			return nil, false, err
		}
	}
	return nil, false, ident.ErrExhausted
}

// SetImage records where the ticket's QR image was stored.
func (r *PurchasedTicketRepo) SetImage(ctx context.Context, id uint64, path string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE purchased_tickets SET image_path = ? WHERE id = ?", path, id)
	return err
}

// ClaimDelivery marks an undelivered ticket as being sent by the caller.
// It succeeds when no other claim exists or the existing one was taken
// before staleBefore.  Only the claim holder may email the ticket.
func (r *PurchasedTicketRepo) ClaimDelivery(ctx context.Context, id uint64, now, staleBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE purchased_tickets SET sending_at = ?
		 WHERE id = ? AND delivered_at IS NULL AND (sending_at IS NULL OR sending_at < ?)`,
		now.UTC(), id, staleBefore.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseDelivery drops the claim on a ticket whose delivery failed so
// the next pass can retry it at once.
func (r *PurchasedTicketRepo) ReleaseDelivery(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE purchased_tickets SET sending_at = NULL WHERE id = ? AND delivered_at IS NULL", id)
	return err
}

// MarkDelivered stamps the time the ticket email was sent and clears the
// claim.  Only the first delivery is recorded.
func (r *PurchasedTicketRepo) MarkDelivered(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE purchased_tickets SET delivered_at = ?, sending_at = NULL WHERE id = ? AND delivered_at IS NULL",
		at.UTC(), id)
	return err
}

// GetByCode returns a ticket by redemption code scoped to an event.
func (r *PurchasedTicketRepo) GetByCode(ctx context.Context, eventID uint64, code string) (*model.PurchasedTicket, error) {
	return r.getOne(ctx, "p.code = ? AND o.event_id = ?", code, eventID)
}

// UpdateCheckinStatus sets the check-in state of a ticket on an event.
// Only "in" and "out" are accepted.
func (r *PurchasedTicketRepo) UpdateCheckinStatus(ctx context.Context, eventID uint64, code, status string) (*model.PurchasedTicket, error) {
	if !model.ValidCheckinTarget(status) {
		return nil, model.NewValidationError("checkin_status", "checkin_status must be in or out")
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE purchased_tickets p JOIN orders o ON o.id = p.order_id
		 SET p.checkin_status = ? WHERE p.code = ? AND o.event_id = ?`, status, code, eventID); err != nil {
		return nil, err
	}
	// RowsAffected is zero when the status is unchanged, so existence is
	// decided by the read.
	return r.GetByCode(ctx, eventID, code)
}

func (r *PurchasedTicketRepo) list(ctx context.Context, where string, args ...any) ([]model.PurchasedTicket, error) {
	rows, err := r.db.QueryContext(ctx, ticketSelect+" WHERE "+where+" ORDER BY p.id ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PurchasedTicket
	for rows.Next() {
		var p model.PurchasedTicket
		if err := scanTicket(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListByEvent returns every ticket issued for an event.
func (r *PurchasedTicketRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.PurchasedTicket, error) {
	return r.list(ctx, "o.event_id = ?", eventID)
}

// ListByOrder returns the tickets issued for an order.
func (r *PurchasedTicketRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.PurchasedTicket, error) {
	return r.list(ctx, "p.order_id = ?", orderID)
}
