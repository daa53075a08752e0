package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/checkout"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payment"
)

// WalletStore is the wallet persistence used by the wallet endpoints.
type WalletStore interface {
	GetByUser(ctx context.Context, userID uint64) (*model.Wallet, error)
	CreateDeposit(ctx context.Context, walletID uint64, amount decimal.Decimal, ref string) (uint64, error)
	GetDeposit(ctx context.Context, walletID uint64, ref string) (*model.WalletTransaction, error)
	SettleDeposit(ctx context.Context, txID uint64, status string, amount decimal.Decimal) (bool, error)
}

// WalletHandler serves balances and gateway-funded deposits.
type WalletHandler struct {
	Wallets     WalletStore
	Users       UserLookup
	Gateway     checkout.Gateway
	CallbackURL string
}

// Balance handles GET /v1/wallet.
func (h *WalletHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	w, err := h.Wallets.GetByUser(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"wallet_code": w.Code, "balance": money(w.Balance)})
}

type depositReq struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit handles POST /v1/wallet/deposit.  The deposit stays pending
// until it is verified.
func (h *WalletHandler) Deposit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req depositReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !req.Amount.IsPositive() {
		return writeError(c, model.NewValidationError("amount", "amount must be greater than zero"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	w, err := h.Wallets.GetByUser(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	init, err := h.Gateway.Initialize(ctx, payment.InitializeRequest{
		Email:       u.Email,
		Amount:      req.Amount,
		CallbackURL: h.CallbackURL,
		Metadata:    map[string]any{"wallet": w.Code},
	})
	if err != nil {
		return writeError(c, err)
	}
	if _, err := h.Wallets.CreateDeposit(ctx, w.ID, req.Amount, init.Reference); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"amount":            money(req.Amount),
		"reference":         init.Reference,
		"authorization_url": init.AuthorizationURL,
	})
}

// VerifyDeposit handles GET /v1/wallet/deposit/verify/:reference.  The
// credited amount is the one the gateway reports.
func (h *WalletHandler) VerifyDeposit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ref := c.Param("reference")
	ctx, cancel := reqCtx(c)
	defer cancel()

	w, err := h.Wallets.GetByUser(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	tx, err := h.Wallets.GetDeposit(ctx, w.ID, ref)
	if err != nil {
		return writeError(c, err)
	}
	if tx.Status != model.TxPending {
		return c.JSON(http.StatusOK, echo.Map{"success": "Your transaction has already been verified", "status": tx.Status})
	}

	ver, err := h.Gateway.Verify(ctx, ref)
	if err != nil {
		return writeError(c, err)
	}
	status, amount := model.TxFailed, tx.Amount
	if ver.Succeeded() {
		status, amount = model.TxSuccess, ver.Amount
	}
	won, err := h.Wallets.SettleDeposit(ctx, tx.ID, status, amount)
	if err != nil {
		return writeError(c, err)
	}
	if !won {
		return c.JSON(http.StatusOK, echo.Map{"success": "Your transaction has already been verified"})
	}
	if status != model.TxSuccess {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment was not successful", "status": status})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status, "amount": money(amount)})
}
