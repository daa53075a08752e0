package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/shopspring/decimal"
)

// WalletRepo reads wallets and records deposit transactions.
type WalletRepo struct{ db *sql.DB }

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// GetByUser returns the user's wallet with its balance, the sum of
// successful deposits minus successful withdrawals and transfers.
func (r *WalletRepo) GetByUser(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	err := r.db.QueryRowContext(ctx,
		`SELECT w.id, w.user_id, w.wallet_code, w.created_at,
		   COALESCE(SUM(CASE WHEN t.status = 'success' AND t.type = 'deposit' THEN t.amount
		                     WHEN t.status = 'success' THEN -t.amount ELSE 0 END), 0)
		 FROM wallets w LEFT JOIN wallet_transactions t ON t.wallet_id = w.id
		 WHERE w.user_id = ?
		 GROUP BY w.id, w.user_id, w.wallet_code, w.created_at`, userID).
		Scan(&w.ID, &w.UserID, &w.Code, &w.CreatedAt, &w.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// CreateDeposit records a pending deposit awaiting gateway verification.
func (r *WalletRepo) CreateDeposit(ctx context.Context, walletID uint64, amount decimal.Decimal, ref string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wallet_transactions (wallet_id, type, amount, status, payment_ref)
		 VALUES (?, 'deposit', ?, 'pending', ?)`, walletID, amount, ref)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetDeposit returns the wallet's deposit carrying the given reference.
func (r *WalletRepo) GetDeposit(ctx context.Context, walletID uint64, ref string) (*model.WalletTransaction, error) {
	var t model.WalletTransaction
	err := r.db.QueryRowContext(ctx,
		`SELECT id, wallet_id, type, amount, status, payment_ref, created_at
		 FROM wallet_transactions WHERE wallet_id = ? AND payment_ref = ? AND type = 'deposit'`,
		walletID, ref).Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Status, &t.PaymentRef, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// SettleDeposit moves a pending deposit to status and, on success, to the
// verified amount.  It reports whether this call performed the change.
func (r *WalletRepo) SettleDeposit(ctx context.Context, txID uint64, status string, amount decimal.Decimal) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE wallet_transactions SET status = ?, amount = ? WHERE id = ? AND status = 'pending'",
		status, amount, txID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
