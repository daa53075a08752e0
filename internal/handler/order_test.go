package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/checkout"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type mockPlacer struct{ mock.Mock }

func (m *mockPlacer) PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*checkout.PlaceOrderResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*checkout.PlaceOrderResult)
	return res, args.Error(1)
}

type mockConfirmer struct{ mock.Mock }

func (m *mockConfirmer) ConfirmPayment(ctx context.Context, req checkout.ConfirmRequest) (*checkout.ConfirmResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*checkout.ConfirmResult)
	return res, args.Error(1)
}

type stubOrders map[string]*model.Order

func (s stubOrders) GetByCode(_ context.Context, code string) (*model.Order, error) {
	if o, ok := s[code]; ok {
		return o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func newOrderServer(h *OrderHandler) *echo.Echo {
	e := echo.New()
	e.POST("/v1/events/:slug/orders", h.Create, middleware.OptionalJWT(testSecret))
	e.GET("/v1/orders/:order_id/summary", h.Summary)
	e.GET("/v1/orders/:order_id/verify", h.Verify)
	e.GET("/v1/orders/:order_id/verify/:reference", h.Verify)
	return e
}

const cartBody = `{"email":"ada@example.com","selected_ticket":[{"ticket":"VIP","quantity":2}]}`

func TestCreateOrder_PaidReturnsAuthorization(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r checkout.PlaceOrderRequest) bool {
		return r.Event.Slug == "lagos-jazz-night" && r.UserID == nil && r.Email == "ada@example.com" &&
			len(r.Items) == 1 && r.Items[0] == checkout.CartItem{Ticket: "VIP", Quantity: 2} &&
			r.CallbackURL == "https://shop.example/cb"
	})).Return(&checkout.PlaceOrderResult{
		Order:            &model.Order{Code: "a1b220260301120000"},
		Amount:           decimal.RequireFromString("10000"),
		Reference:        "ref-1",
		AuthorizationURL: "https://pay.example/ref-1",
	}, nil)

	h := &OrderHandler{Events: newFakeEvents(concert()), Checkout: placer, CallbackURL: "https://shop.example/cb", Now: fixedNow}
	rec := do(newOrderServer(h), http.MethodPost, "/v1/events/lagos-jazz-night/orders", cartBody, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"order_id":"a1b220260301120000","amount":"10000.00","reference":"ref-1",
		"authorization_url":"https://pay.example/ref-1"}`, rec.Body.String())
	placer.AssertExpectations(t)
}

func TestCreateOrder_FreeOmitsPaymentFields(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.Anything).Return(&checkout.PlaceOrderResult{
		Order:  &model.Order{Code: "free1"},
		Amount: decimal.Zero,
	}, nil)

	h := &OrderHandler{Events: newFakeEvents(concert()), Checkout: placer, Now: fixedNow}
	rec := do(newOrderServer(h), http.MethodPost, "/v1/events/lagos-jazz-night/orders", cartBody, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order_id":"free1","amount":"0.00"}`, rec.Body.String())
}

func TestCreateOrder_UnavailableEvent(t *testing.T) {
	ended := concert()
	ended.EndsAt = testNow.Add(-time.Hour)
	h := &OrderHandler{Events: newFakeEvents(ended), Checkout: &mockPlacer{}, Now: fixedNow}
	e := newOrderServer(h)

	rec := do(e, http.MethodPost, "/v1/events/lagos-jazz-night/orders", cartBody, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPost, "/v1/events/nope/orders", cartBody, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrder_ValidationErrorListsFields(t *testing.T) {
	verr := model.NewValidationError("selected_ticket[0].quantity", "VIP allows at most 5 per order")
	verr.Add("email", "a valid email is required")
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, verr)

	h := &OrderHandler{Events: newFakeEvents(concert()), Checkout: placer, Now: fixedNow}
	rec := do(newOrderServer(h), http.MethodPost, "/v1/events/lagos-jazz-night/orders", cartBody, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Contains(t, body.Fields, "selected_ticket[0].quantity")
	assert.Contains(t, body.Fields, "email")
}

func TestCreateOrder_UnknownTierIsNotFound(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(nil, errors.Join(errors.New("resolve ticket \"Gold\""), repository.ErrTicketNotFound))

	h := &OrderHandler{Events: newFakeEvents(concert()), Checkout: placer, Now: fixedNow}
	rec := do(newOrderServer(h), http.MethodPost, "/v1/events/lagos-jazz-night/orders", cartBody, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrder_GatewayFailureKeepsOrderID(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.Anything).Return(&checkout.PlaceOrderResult{
		Order:  &model.Order{Code: "pending1"},
		Amount: decimal.RequireFromString("500"),
	}, &payment.GatewayError{Op: "initialize", StatusCode: 503, Message: "unavailable"})

	h := &OrderHandler{Events: newFakeEvents(concert()), Checkout: placer, Now: fixedNow}
	rec := do(newOrderServer(h), http.MethodPost, "/v1/events/lagos-jazz-night/orders", cartBody, "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_id":"pending1"`)
}

func TestCreateOrder_SignedInBuyerUsesAccountEmail(t *testing.T) {
	users := newFakeUsers(&model.User{ID: 5, Email: "account@example.com", Role: model.RoleCustomer, IsActive: true})
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r checkout.PlaceOrderRequest) bool {
		return r.UserID != nil && *r.UserID == 5 && r.Email == "account@example.com"
	})).Return(&checkout.PlaceOrderResult{Order: &model.Order{Code: "c1"}, Amount: decimal.Zero}, nil)

	h := &OrderHandler{Events: newFakeEvents(concert()), Checkout: placer, Users: users, Now: fixedNow}
	rec := do(newOrderServer(h), http.MethodPost, "/v1/events/lagos-jazz-night/orders", cartBody,
		tokenFor(t, 5, model.RoleCustomer))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	placer.AssertExpectations(t)
}

func TestOrderSummary(t *testing.T) {
	ref := "ref-9"
	orders := stubOrders{"o9": {
		Code: "o9", EventName: "Lagos Jazz Night", EventSlug: "lagos-jazz-night", Email: "ada@example.com",
		Status: model.OrderPending, PaymentRef: &ref,
		Lines: []model.OrderLine{
			{ID: 1, TierName: "VIP", Price: decimal.RequireFromString("5000"), Quantity: 2},
			{ID: 2, TierName: "Regular", Price: decimal.RequireFromString("1500.5"), Quantity: 1},
		},
	}}
	h := &OrderHandler{Orders: orders}
	e := newOrderServer(h)

	rec := do(e, http.MethodGet, "/v1/orders/o9/summary", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"order_id":"o9","event":"lagos-jazz-night","event_name":"Lagos Jazz Night","email":"ada@example.com",
		"status":"pending","reference":"ref-9","total_amount":"11500.50",
		"tickets":[
			{"ticket":"VIP","price":"5000.00","quantity":2,"total":"10000.00"},
			{"ticket":"Regular","price":"1500.50","quantity":1,"total":"1500.50"}
		]}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/orders/missing/summary", "", "").Code)
}

type stubIssued map[uint64][]model.PurchasedTicket

func (s stubIssued) ListByOrder(_ context.Context, orderID uint64) ([]model.PurchasedTicket, error) {
	return s[orderID], nil
}

func TestOrderSummary_ListsIssuedTicketsOnceSuccessful(t *testing.T) {
	ref := "ref-3"
	delivered := testNow
	orders := stubOrders{
		"paid": {ID: 3, Code: "paid", Status: model.OrderSuccess, PaymentRef: &ref,
			Lines: []model.OrderLine{{ID: 1, TierName: "VIP", Price: decimal.RequireFromString("5000"), Quantity: 1}}},
		"open": {ID: 4, Code: "open", Status: model.OrderPending,
			Lines: []model.OrderLine{{ID: 1, TierName: "VIP", Price: decimal.RequireFromString("5000"), Quantity: 1}}},
	}
	issued := stubIssued{3: {{Code: "tabc123def456", TierName: "VIP", CheckinStatus: "new", DeliveredAt: &delivered}}}
	e := newOrderServer(&OrderHandler{Orders: orders, Issued: issued})

	rec := do(e, http.MethodGet, "/v1/orders/paid/summary", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Issued []issuedUnit `json:"issued"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []issuedUnit{{Code: "tabc123def456", Ticket: "VIP", CheckinStatus: "new", Delivered: true}}, body.Issued)

	rec = do(e, http.MethodGet, "/v1/orders/open/summary", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"issued"`)
}

func TestVerify_ReturnsGatewayPayload(t *testing.T) {
	raw := json.RawMessage(`{"status":"success","reference":"ref-1","amount":1000000}`)
	engine := &mockConfirmer{}
	engine.On("ConfirmPayment", mock.Anything, checkout.ConfirmRequest{
		OrderCode: "o1", Reference: "ref-1", SiteURL: "https://shop.example",
	}).Return(&checkout.ConfirmResult{
		Status:       model.OrderSuccess,
		Verification: &payment.Verification{Status: payment.StatusSuccess, Raw: raw},
	}, nil)

	h := &OrderHandler{Engine: engine, SiteURL: "https://shop.example"}
	rec := do(newOrderServer(h), http.MethodGet, "/v1/orders/o1/verify/ref-1", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
	engine.AssertExpectations(t)
}

func TestVerify_AlreadyVerified(t *testing.T) {
	engine := &mockConfirmer{}
	engine.On("ConfirmPayment", mock.Anything, mock.Anything).
		Return(&checkout.ConfirmResult{Status: model.OrderSuccess, AlreadyVerified: true}, nil)

	h := &OrderHandler{Engine: engine}
	rec := do(newOrderServer(h), http.MethodGet, "/v1/orders/o1/verify/ref-1", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":"Your transaction has already been verified"}`, rec.Body.String())
}

func TestVerify_FreeOrderHasNoReference(t *testing.T) {
	engine := &mockConfirmer{}
	engine.On("ConfirmPayment", mock.Anything, mock.MatchedBy(func(r checkout.ConfirmRequest) bool {
		return r.OrderCode == "free1" && r.Reference == ""
	})).Return(&checkout.ConfirmResult{
		Status:       model.OrderSuccess,
		Verification: &payment.Verification{Status: payment.StatusSuccess, Raw: json.RawMessage(`{"status":"success"}`)},
	}, nil)

	h := &OrderHandler{Engine: engine}
	rec := do(newOrderServer(h), http.MethodGet, "/v1/orders/free1/verify", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	engine.AssertExpectations(t)
}

func TestVerify_DeclinedReturnsProcessorPayload(t *testing.T) {
	raw := json.RawMessage(`{"status":"failed","reference":"ref-x","amount":500000,"gateway_response":"Declined"}`)
	engine := &mockConfirmer{}
	engine.On("ConfirmPayment", mock.Anything, mock.Anything).Return(&checkout.ConfirmResult{
		Status:       model.OrderFailed,
		Verification: &payment.Verification{Status: "failed", Raw: raw},
	}, nil)

	rec := do(newOrderServer(&OrderHandler{Engine: engine}), http.MethodGet, "/v1/orders/o1/verify/ref-x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestVerify_Failures(t *testing.T) {
	cases := []struct {
		name   string
		res    *checkout.ConfirmResult
		err    error
		status int
	}{
		{"payment declined", &checkout.ConfirmResult{Status: model.OrderFailed}, nil, http.StatusBadRequest},
		{"unknown order or reference", nil, repository.ErrOrderNotFound, http.StatusBadRequest},
		{"gateway down", nil, &payment.GatewayError{Op: "verify", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"storage failure", nil, errors.New("db gone"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &mockConfirmer{}
			engine.On("ConfirmPayment", mock.Anything, mock.Anything).Return(tc.res, tc.err)
			h := &OrderHandler{Engine: engine}
			rec := do(newOrderServer(h), http.MethodGet, "/v1/orders/o1/verify/ref-x", "", "")
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
