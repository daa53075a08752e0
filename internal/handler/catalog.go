package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/pricing"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventCatalog is the event persistence used by the catalog endpoints.
type EventCatalog interface {
	Create(ctx context.Context, e *model.Event) error
	GetBySlug(ctx context.Context, slug string) (*model.Event, error)
	ListPublished(ctx context.Context, now time.Time, limit, offset int) ([]repository.EventListing, error)
}

// TierCatalog is the tier persistence used by the catalog endpoints.
type TierCatalog interface {
	Create(ctx context.Context, t *model.TicketTier) error
	ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error)
}

// CategoryLister lists browseable categories.
type CategoryLister interface {
	ListActive(ctx context.Context) ([]model.Category, error)
}

// CatalogHandler serves events, their ticket tiers and categories.
type CatalogHandler struct {
	Events     EventCatalog
	Tiers      TierCatalog
	Categories CategoryLister
	Now        func() time.Time
}

func (h *CatalogHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

type eventView struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	Host        string    `json:"host"`
	CategoryID  *uint64   `json:"category_id,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Status      string    `json:"status"`
	MinPrice    *string   `json:"min_price"`
}

func (h *CatalogHandler) viewEvent(e *model.Event, min *decimal.Decimal) eventView {
	v := eventView{
		Slug: e.Slug, Name: e.Name, Description: e.Description, Venue: e.Venue, Host: e.Host,
		CategoryID: e.CategoryID, StartDate: e.StartsAt, EndDate: e.EndsAt, Status: e.Status(h.now()),
	}
	if min != nil {
		s := money(*min)
		v.MinPrice = &s
	}
	return v
}

type tierView struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         string    `json:"price"`
	StockType     string    `json:"stock_type"`
	Quantity      *int      `json:"quantity,omitempty"`
	Limit         int       `json:"limit"`
	SaleStartDate time.Time `json:"sale_start_date"`
	SaleEndDate   time.Time `json:"sale_end_date"`
}

func viewTier(t *model.TicketTier) tierView {
	return tierView{
		Name: t.Name, Description: t.Description, Price: money(t.Price), StockType: t.StockType,
		Quantity: t.Quantity, Limit: t.PurchaseLimit, SaleStartDate: t.SaleStartsAt, SaleEndDate: t.SaleEndsAt,
	}
}

// ListEvents handles GET /v1/events?page=&page_size=.
func (h *CatalogHandler) ListEvents(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	if size < 1 || size > 100 {
		size = 20
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Events.ListPublished(ctx, h.now(), size, (page-1)*size)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]eventView, 0, len(items))
	for i := range items {
		out = append(out, h.viewEvent(&items[i].Event, items[i].MinPrice))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "page": page, "page_size": size})
}

// GetEvent handles GET /v1/events/:slug, including the active tiers.
func (h *CatalogHandler) GetEvent(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	if !e.IsPublished || !e.IsActive {
		return writeError(c, repository.ErrEventNotFound)
	}
	tiers, err := h.Tiers.ListByEvent(ctx, e.ID)
	if err != nil {
		return writeError(c, err)
	}
	tv := make([]tierView, 0, len(tiers))
	for i := range tiers {
		tv = append(tv, viewTier(&tiers[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event":   h.viewEvent(e, pricing.MinTierPrice(tiers)),
		"tickets": tv,
	})
}

type createEventReq struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Venue       string  `json:"venue"`
	Host        string  `json:"host"`
	CategoryID  *uint64 `json:"category_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Publish     *bool   `json:"publish"`
}

// parseTime reads an RFC3339 value into dst, recording a field error on
// verr when it is malformed.  Empty input leaves dst zero.
func parseTime(verr *model.ValidationError, field, raw string, dst *time.Time) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		verr.Add(field, "must be an RFC3339 timestamp")
		return
	}
	*dst = t.UTC()
}

// CreateEvent handles POST /v1/events for organisers.
func (h *CatalogHandler) CreateEvent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	e := &model.Event{
		OwnerID:     uid,
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Venue:       req.Venue,
		Host:        req.Host,
		IsPublished: req.Publish == nil || *req.Publish,
		IsActive:    true,
	}
	verr := &model.ValidationError{}
	parseTime(verr, "start_date", req.StartDate, &e.StartsAt)
	parseTime(verr, "end_date", req.EndDate, &e.EndsAt)
	if !verr.Empty() {
		return writeError(c, verr)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Events.Create(ctx, e); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, h.viewEvent(e, nil))
}

type createTierReq struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockType     string          `json:"stock_type"`
	Quantity      *int            `json:"quantity"`
	Limit         int             `json:"limit"`
	SaleStartDate string          `json:"sale_start_date"`
	SaleEndDate   string          `json:"sale_end_date"`
}

// CreateTier handles POST /v1/events/:slug/tiers for the event owner.
func (h *CatalogHandler) CreateTier(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createTierReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	if e.OwnerID != uid {
		return writeError(c, repository.ErrForbidden)
	}

	t := &model.TicketTier{
		EventID:       e.ID,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Price:         req.Price,
		StockType:     strings.ToLower(strings.TrimSpace(req.StockType)),
		Quantity:      req.Quantity,
		PurchaseLimit: req.Limit,
		SaleStartsAt:  h.now(),
		IsActive:      true,
	}
	verr := &model.ValidationError{}
	parseTime(verr, "sale_start_date", req.SaleStartDate, &t.SaleStartsAt)
	parseTime(verr, "sale_end_date", req.SaleEndDate, &t.SaleEndsAt)
	if !verr.Empty() {
		return writeError(c, verr)
	}
	if err := h.Tiers.Create(ctx, t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, viewTier(t))
}

// ListCategories handles GET /v1/categories.
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	cats, err := h.Categories.ListActive(ctx)
	if err != nil {
		return writeError(c, err)
	}
	type item struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	out := make([]item, 0, len(cats))
	for _, ct := range cats {
		out = append(out, item{ID: ct.ID, Name: ct.Name, Slug: ct.Slug})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
