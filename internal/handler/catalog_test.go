package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type memTiers struct {
	byEvent map[uint64][]model.TicketTier
}

func (m *memTiers) Create(_ context.Context, t *model.TicketTier) error {
	if t.PurchaseLimit == 0 {
		t.PurchaseLimit = model.DefaultPurchaseLimit
	}
	if err := t.Validate(); err != nil {
		return err
	}
	for _, x := range m.byEvent[t.EventID] {
		if x.Name == t.Name {
			return repository.ErrDuplicateTicket
		}
	}
	m.byEvent[t.EventID] = append(m.byEvent[t.EventID], *t)
	return nil
}

func (m *memTiers) ListByEvent(_ context.Context, eventID uint64) ([]model.TicketTier, error) {
	return m.byEvent[eventID], nil
}

type stubCategories []model.Category

func (s stubCategories) ListActive(context.Context) ([]model.Category, error) { return s, nil }

func newCatalogServer(h *CatalogHandler) *echo.Echo {
	e := echo.New()
	organiser := []echo.MiddlewareFunc{middleware.JWTAuth(testSecret), middleware.RequireRole(model.RoleOrganiser)}
	e.GET("/v1/events", h.ListEvents)
	e.GET("/v1/events/:slug", h.GetEvent)
	e.GET("/v1/categories", h.ListCategories)
	e.POST("/v1/events", h.CreateEvent, organiser...)
	e.POST("/v1/events/:slug/tiers", h.CreateTier, organiser...)
	return e
}

func catalogFixture() *CatalogHandler {
	return &CatalogHandler{
		Events: newFakeEvents(concert()),
		Tiers: &memTiers{byEvent: map[uint64][]model.TicketTier{7: {
			{EventID: 7, Name: "Regular", Price: decimal.RequireFromString("1500"), StockType: model.StockUnlimited, PurchaseLimit: 5, IsActive: true},
			{EventID: 7, Name: "VIP", Price: decimal.RequireFromString("5000"), StockType: model.StockUnlimited, PurchaseLimit: 2, IsActive: true},
		}}},
		Categories: stubCategories{{ID: 1, Name: "Music", Slug: "music", IsActive: true}},
		Now:        fixedNow,
	}
}

func TestGetEvent_IncludesTiersStatusAndMinPrice(t *testing.T) {
	e := newCatalogServer(catalogFixture())

	rec := do(e, http.MethodGet, "/v1/events/lagos-jazz-night", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Event   eventView  `json:"event"`
		Tickets []tierView `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.EventScheduled, body.Event.Status)
	require.NotNil(t, body.Event.MinPrice)
	assert.Equal(t, "1500.00", *body.Event.MinPrice)
	assert.Len(t, body.Tickets, 2)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/events/missing", "", "").Code)
}

func TestListEventsAndCategories(t *testing.T) {
	e := newCatalogServer(catalogFixture())

	rec := do(e, http.MethodGet, "/v1/events?page=1&page_size=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"lagos-jazz-night"`)
	assert.Contains(t, rec.Body.String(), `"min_price":"1500.00"`)

	rec = do(e, http.MethodGet, "/v1/categories", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"id":1,"name":"Music","slug":"music"}]}`, rec.Body.String())
}

func TestCreateEvent(t *testing.T) {
	h := catalogFixture()
	e := newCatalogServer(h)
	tok := tokenFor(t, 42, model.RoleOrganiser)

	start := testNow.Add(24 * time.Hour).Format(time.RFC3339)
	end := testNow.Add(26 * time.Hour).Format(time.RFC3339)
	rec := do(e, http.MethodPost, "/v1/events",
		`{"name":"Tech Meetup","venue":"Yaba","start_date":"`+start+`","end_date":"`+end+`"}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"slug":"tech-meetup"`)

	rec = do(e, http.MethodPost, "/v1/events", `{"name":"Bad","start_date":"yesterday","end_date":"`+end+`"}`, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "start_date")

	rec = do(e, http.MethodPost, "/v1/events",
		`{"name":"Backwards","start_date":"`+end+`","end_date":"`+start+`"}`, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot be greater than the end time")

	rec = do(e, http.MethodPost, "/v1/events", `{"name":"x"}`, tokenFor(t, 42, model.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateTier(t *testing.T) {
	e := newCatalogServer(catalogFixture())
	owner := tokenFor(t, 42, model.RoleOrganiser)
	saleEnd := testNow.Add(40 * time.Hour).Format(time.RFC3339)

	rec := do(e, http.MethodPost, "/v1/events/lagos-jazz-night/tiers",
		`{"name":"Early Bird","price":"1000","stock_type":"limited","quantity":50,"sale_end_date":"`+saleEnd+`"}`, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"price":"1000.00"`)
	assert.Contains(t, rec.Body.String(), `"limit":5`)

	rec = do(e, http.MethodPost, "/v1/events/lagos-jazz-night/tiers",
		`{"name":"VIP","price":"1000","stock_type":"unlimited","sale_end_date":"`+saleEnd+`"}`, owner)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodPost, "/v1/events/lagos-jazz-night/tiers",
		`{"name":"Gold","price":"-1","stock_type":"limited","sale_end_date":"`+saleEnd+`"}`, owner)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price"`)
	assert.Contains(t, rec.Body.String(), `"quantity"`)

	rec = do(e, http.MethodPost, "/v1/events/lagos-jazz-night/tiers",
		`{"name":"Other","price":"1","stock_type":"unlimited","sale_end_date":"`+saleEnd+`"}`, tokenFor(t, 43, model.RoleOrganiser))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
