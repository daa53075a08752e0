package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet transaction types and states.
const (
	TxDeposit  = "deposit"
	TxWithdraw = "withdraw"
	TxTransfer = "transfer"

	TxPending = "pending"
	TxSuccess = "success"
	TxFailed  = "failed"
)

// Wallet holds a user's balance.  Every user has exactly one wallet,
// created in the same transaction as the user.
type Wallet struct {
	ID        uint64          // wallets.id
	UserID    uint64          // wallets.user_id
	Code      string          // wallets.wallet_code
	Balance   decimal.Decimal // sum of successful transactions
	CreatedAt time.Time       // wallets.created_at
}

// WalletTransaction records a deposit, withdrawal or transfer.
type WalletTransaction struct {
	ID         uint64          // wallet_transactions.id
	WalletID   uint64          // wallet_transactions.wallet_id
	Type       string          // wallet_transactions.type
	Amount     decimal.Decimal // wallet_transactions.amount
	Status     string          // wallet_transactions.status
	PaymentRef string          // wallet_transactions.payment_ref
	CreatedAt  time.Time       // wallet_transactions.created_at
}
