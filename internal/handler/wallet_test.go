package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Initialize(ctx context.Context, req payment.InitializeRequest) (*payment.Initialization, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.Initialization)
	return res, args.Error(1)
}

func (m *mockGateway) Verify(ctx context.Context, ref string) (*payment.Verification, error) {
	args := m.Called(ctx, ref)
	res, _ := args.Get(0).(*payment.Verification)
	return res, args.Error(1)
}

type memWallet struct {
	w  model.Wallet
	tx map[string]*model.WalletTransaction
}

func (m *memWallet) GetByUser(_ context.Context, userID uint64) (*model.Wallet, error) {
	if userID != m.w.UserID {
		return nil, repository.ErrWalletNotFound
	}
	w := m.w
	w.Balance = decimal.Zero
	for _, t := range m.tx {
		if t.Status == model.TxSuccess {
			w.Balance = w.Balance.Add(t.Amount)
		}
	}
	return &w, nil
}

func (m *memWallet) CreateDeposit(_ context.Context, walletID uint64, amount decimal.Decimal, ref string) (uint64, error) {
	id := uint64(len(m.tx) + 1)
	m.tx[ref] = &model.WalletTransaction{ID: id, WalletID: walletID, Type: model.TxDeposit, Amount: amount, Status: model.TxPending, PaymentRef: ref}
	return id, nil
}

func (m *memWallet) GetDeposit(_ context.Context, _ uint64, ref string) (*model.WalletTransaction, error) {
	if t, ok := m.tx[ref]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, repository.ErrTransactionNotFound
}

func (m *memWallet) SettleDeposit(_ context.Context, txID uint64, status string, amount decimal.Decimal) (bool, error) {
	for _, t := range m.tx {
		if t.ID == txID && t.Status == model.TxPending {
			t.Status, t.Amount = status, amount
			return true, nil
		}
	}
	return false, nil
}

func newWalletServer(h *WalletHandler) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1/wallet", middleware.JWTAuth(testSecret))
	g.GET("", h.Balance)
	g.POST("/deposit", h.Deposit)
	g.GET("/deposit/verify/:reference", h.VerifyDeposit)
	return e
}

func TestWalletDepositLifecycle(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Initialize", mock.Anything, mock.MatchedBy(func(r payment.InitializeRequest) bool {
		return r.Email == "ada@example.com" && r.Amount.Equal(decimal.RequireFromString("2500"))
	})).Return(&payment.Initialization{Reference: "dep-1", AuthorizationURL: "https://pay.example/dep-1"}, nil)
	gw.On("Verify", mock.Anything, "dep-1").Return(&payment.Verification{
		Status: payment.StatusSuccess, Reference: "dep-1", Amount: decimal.RequireFromString("2500"),
	}, nil).Once()

	wallets := &memWallet{w: model.Wallet{ID: 3, UserID: 5, Code: "wabc"}, tx: map[string]*model.WalletTransaction{}}
	h := &WalletHandler{
		Wallets: wallets,
		Users:   newFakeUsers(&model.User{ID: 5, Email: "ada@example.com", IsActive: true}),
		Gateway: gw,
	}
	e := newWalletServer(h)
	tok := tokenFor(t, 5, model.RoleCustomer)

	rec := do(e, http.MethodPost, "/v1/wallet/deposit", `{"amount":"0"}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/v1/wallet/deposit", `{"amount":"2500"}`, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"reference":"dep-1"`)

	rec = do(e, http.MethodGet, "/v1/wallet/deposit/verify/dep-1", "", tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"success"`)

	rec = do(e, http.MethodGet, "/v1/wallet/deposit/verify/dep-1", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already been verified")

	rec = do(e, http.MethodGet, "/v1/wallet", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, "2500.00", bal["balance"])
	assert.Equal(t, "wabc", bal["wallet_code"])

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/wallet/deposit/verify/unknown", "", tok).Code)
	gw.AssertExpectations(t)
}

func TestWalletDeposit_GatewayFailure(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Initialize", mock.Anything, mock.Anything).Return(nil, &payment.GatewayError{Op: "initialize", StatusCode: 500})
	wallets := &memWallet{w: model.Wallet{ID: 3, UserID: 5}, tx: map[string]*model.WalletTransaction{}}
	h := &WalletHandler{Wallets: wallets, Users: newFakeUsers(&model.User{ID: 5, Email: "a@b.c"}), Gateway: gw}

	rec := do(newWalletServer(h), http.MethodPost, "/v1/wallet/deposit", `{"amount":"10"}`, tokenFor(t, 5, model.RoleCustomer))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, wallets.tx)
}
