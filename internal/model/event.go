package model

import "time"

// Event status values derived from the event's time window.
const (
	EventScheduled = "SCHEDULED"
	EventLive      = "LIVE"
	EventEnded     = "ENDED"
)

// Category groups events for browsing.  It corresponds to a row in the
// `categories` table.
type Category struct {
	ID       uint64 // categories.id
	Name     string // categories.name
	Slug     string // categories.slug
	IsActive bool   // categories.is_active
}

// Event is a ticketed happening created by a user.  The slug is unique and
// derived from the name; tiers of tickets are attached through TicketTier.
//
// Fields:
//  ID          – primary key identifier.
//  OwnerID     – user who created the event.
//  CategoryID  – optional category (nil if unassigned).
//  Name        – display name.
//  Slug        – unique URL key derived from Name.
//  Description – free text description.
//  Venue       – where the event takes place.
//  Host        – organiser name.
//  StartsAt    – start of the event window (UTC).
//  EndsAt      – end of the event window (UTC); must be after StartsAt.
//  IsPublished – whether the event is visible to buyers.
//  IsActive    – soft delete flag.
type Event struct {
	ID          uint64    // events.id
	OwnerID     uint64    // events.owner_id
	CategoryID  *uint64   // events.category_id (nullable)
	Name        string    // events.name
	Slug        string    // events.slug
	Description string    // events.description
	Venue       string    // events.venue
	Host        string    // events.host
	StartsAt    time.Time // events.starts_at
	EndsAt      time.Time // events.ends_at
	IsPublished bool      // events.is_published
	IsActive    bool      // events.is_active
	CreatedAt   time.Time // events.created_at
	UpdatedAt   time.Time // events.updated_at
}

// Validate checks the invariants that must hold before an event is written.
func (e *Event) Validate() error {
	verr := &ValidationError{}
	if e.Name == "" {
		verr.Add("name", "name is required")
	}
	if e.StartsAt.IsZero() {
		verr.Add("start_date", "start date is required")
	}
	if e.EndsAt.IsZero() {
		verr.Add("end_date", "end date is required")
	}
	if !e.StartsAt.IsZero() && !e.EndsAt.IsZero() && !e.StartsAt.Before(e.EndsAt) {
		verr.Add("start_date", "the start time for the event cannot be greater than the end time")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// Status reports whether the event is scheduled, live or ended at now.
func (e *Event) Status(now time.Time) string {
	switch {
	case now.Before(e.StartsAt):
		return EventScheduled
	case now.After(e.EndsAt):
		return EventEnded
	default:
		return EventLive
	}
}

// OnSale reports whether buyers may place orders for the event at now:
// it must be published, active and not yet ended.
func (e *Event) OnSale(now time.Time) bool {
	return e.IsPublished && e.IsActive && now.Before(e.EndsAt)
}
