package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements_CoverEveryTable(t *testing.T) {
	stmts := Statements()
	require.NotEmpty(t, stmts)
	joined := strings.Join(stmts, "\n")
	for _, table := range []string{
		"users", "refresh_tokens", "wallets", "wallet_transactions", "categories", "events",
		"ticket_tiers", "order_lines", "orders", "order_items", "purchased_tickets",
	} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	for _, s := range stmts {
		assert.NotContains(t, s, ";")
	}
}

func TestStatements_UniqueKeysBackIdempotency(t *testing.T) {
	joined := strings.Join(Statements(), "\n")
	assert.Contains(t, joined, "UNIQUE KEY uq_purchased_unit (order_id, order_line_id, unit_index)")
	assert.Contains(t, joined, "UNIQUE KEY uq_orders_code (order_code)")
	assert.Contains(t, joined, "UNIQUE KEY uq_tiers_event_name (event_id, name)")
	assert.Contains(t, joined, "UNIQUE KEY uq_order_lines_tier_qty (tier_id, quantity)")
}

func TestMigrate_ExecutesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, s := range Statements() {
		mock.ExpectExec(regexp.QuoteMeta(s)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stmts := Statements()
	mock.ExpectExec(regexp.QuoteMeta(stmts[0])).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(stmts[1])).WillReturnError(errors.New("boom"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate statement 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
