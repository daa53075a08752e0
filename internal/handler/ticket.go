package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventLookup resolves an event regardless of its sale window.
type EventLookup interface {
	GetBySlug(ctx context.Context, slug string) (*model.Event, error)
}

// TicketStore reads purchased tickets and records check-ins.
type TicketStore interface {
	ListByEvent(ctx context.Context, eventID uint64) ([]model.PurchasedTicket, error)
	GetByCode(ctx context.Context, eventID uint64, code string) (*model.PurchasedTicket, error)
	UpdateCheckinStatus(ctx context.Context, eventID uint64, code, status string) (*model.PurchasedTicket, error)
}

// ImageReader reads stored ticket images.
type ImageReader interface {
	Open(rel string) ([]byte, error)
}

// TicketHandler serves purchased tickets and check-in.
type TicketHandler struct {
	Events  EventLookup
	Tickets TicketStore
	Images  ImageReader // optional
}

type ticketView struct {
	Code          string     `json:"code"`
	Ticket        string     `json:"ticket"`
	Email         string     `json:"email"`
	CheckinStatus string     `json:"checkin_status"`
	Delivered     bool       `json:"delivered"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func viewTicket(p *model.PurchasedTicket) ticketView {
	return ticketView{
		Code:          p.Code,
		Ticket:        p.TierName,
		Email:         p.OrderEmail,
		CheckinStatus: p.CheckinStatus,
		Delivered:     p.Delivered(),
		DeliveredAt:   p.DeliveredAt,
		CreatedAt:     p.CreatedAt,
	}
}

// ownedEvent loads the event in the path and checks the caller owns it.
func (h *TicketHandler) ownedEvent(ctx context.Context, c echo.Context) (*model.Event, error) {
	uid, err := getUserID(c)
	if err != nil {
		return nil, repository.ErrForbidden
	}
	ev, err := h.Events.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return nil, err
	}
	if ev.OwnerID != uid {
		return nil, repository.ErrForbidden
	}
	return ev, nil
}

// List handles GET /v1/events/:slug/tickets for the event owner.
func (h *TicketHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ev, err := h.ownedEvent(ctx, c)
	if err != nil {
		return writeError(c, err)
	}
	items, err := h.Tickets.ListByEvent(ctx, ev.ID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]ticketView, 0, len(items))
	for i := range items {
		out = append(out, viewTicket(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// Get handles GET /v1/events/:slug/tickets/:code, the lookup behind a
// redemption link.
func (h *TicketHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ev, err := h.Events.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.Tickets.GetByCode(ctx, ev.ID, c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev.Slug, "event_name": ev.Name, "ticket": viewTicket(p)})
}

type checkinReq struct {
	CheckinStatus string `json:"checkin_status"`
}

// Checkin handles PATCH /v1/events/:slug/tickets/:code for the event owner.
func (h *TicketHandler) Checkin(c echo.Context) error {
	var req checkinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ev, err := h.ownedEvent(ctx, c)
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.Tickets.UpdateCheckinStatus(ctx, ev.ID, c.Param("code"), req.CheckinStatus)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewTicket(p))
}

// Image handles GET /v1/events/:slug/tickets/:code/qr.
func (h *TicketHandler) Image(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ev, err := h.Events.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.Tickets.GetByCode(ctx, ev.ID, c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	if h.Images == nil || p.ImagePath == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket image not generated yet"})
	}
	data, err := h.Images.Open(*p.ImagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket image not generated yet"})
		}
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", data)
}
