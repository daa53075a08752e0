package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gosimple/slug"
	"github.com/iliyamo/event-ticketing/internal/ident"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/shopspring/decimal"
)

// EventListing is an event together with the lowest active tier price,
// as shown on browse pages.  MinPrice is nil when no tier is on offer.
type EventListing struct {
	model.Event
	MinPrice *decimal.Decimal
}

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `e.id, e.owner_id, e.category_id, e.name, e.slug, e.description, e.venue, e.host,
	e.starts_at, e.ends_at, e.is_published, e.is_active, e.created_at, e.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner, e *model.Event, extra ...any) error {
	var cat sql.NullInt64
	dest := []any{&e.ID, &e.OwnerID, &cat, &e.Name, &e.Slug, &e.Description, &e.Venue, &e.Host,
		&e.StartsAt, &e.EndsAt, &e.IsPublished, &e.IsActive, &e.CreatedAt, &e.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if cat.Valid {
		id := uint64(cat.Int64)
		e.CategoryID = &id
	}
	return nil
}

// slugCandidates returns a generator yielding the bare slug first and
// then the slug with a random four digit suffix.
func slugCandidates(name string) func() string {
	base := slug.Make(name)
	first := true
	return func() string {
		if first {
			first = false
			return base
		}
		return fmt.Sprintf("%s-%d", base, 1000+rand.Intn(9000))
	}
}

// Create validates the event and inserts it.  The slug is derived from
// the name; on a slug collision a random suffix is appended and the insert
// retried.  ID, Slug and the timestamps are populated on success.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	const q = `INSERT INTO events (owner_id, category_id, name, slug, description, venue, host,
		starts_at, ends_at, is_published) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var id int64
	s, err := ident.Retry(slugCandidates(e.Name), func(candidate string) error {
		res, err := r.db.ExecContext(ctx, q, e.OwnerID, e.CategoryID, e.Name, candidate,
			e.Description, e.Venue, e.Host, e.StartsAt.UTC(), e.EndsAt.UTC(), e.IsPublished)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.Slug = s
	e.IsActive = true
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	return nil
}

// GetBySlug returns an active event by slug regardless of its window.
func (r *EventRepo) GetBySlug(ctx context.Context, slug string) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events e WHERE e.slug = ? AND e.is_active = 1`
	var e model.Event
	if err := scanEvent(r.db.QueryRowContext(ctx, q, slug), &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// GetOnSaleBySlug returns the event only when buyers may order it at now:
// published, active and not yet ended.
func (r *EventRepo) GetOnSaleBySlug(ctx context.Context, slug string, now time.Time) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events e
		WHERE e.slug = ? AND e.is_published = 1 AND e.is_active = 1 AND e.ends_at > ?`
	var e model.Event
	if err := scanEvent(r.db.QueryRowContext(ctx, q, slug, now.UTC()), &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListPublished returns published, active events that have not ended,
// soonest first, with the minimum active tier price.
func (r *EventRepo) ListPublished(ctx context.Context, now time.Time, limit, offset int) ([]EventListing, error) {
	q := `SELECT ` + eventColumns + `,
		(SELECT MIN(t.price) FROM ticket_tiers t WHERE t.event_id = e.id AND t.is_active = 1)
		FROM events e
		WHERE e.is_published = 1 AND e.is_active = 1 AND e.ends_at > ?
		ORDER BY e.starts_at ASC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventListing
	for rows.Next() {
		var l EventListing
		var min decimal.NullDecimal
		if err := scanEvent(rows, &l.Event, &min); err != nil {
			return nil, err
		}
		if min.Valid {
			p := min.Decimal
			l.MinPrice = &p
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
