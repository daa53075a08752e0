package ident

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormats(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 4, 5, 0, time.UTC)
	code := NewOrderCode(now)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{4}20260501180405$`), code)

	assert.Regexp(t, `^t[0-9a-f]{12}$`, NewTicketCode())
	assert.Regexp(t, `^w[0-9a-f]{12}$`, NewWalletCode())
	assert.NotEqual(t, NewTicketCode(), NewTicketCode())
}

func TestRetryRegeneratesOnDuplicate(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	ids := []string{"a", "b", "c"}
	n := 0
	gen := func() string { id := ids[n]; n++; return id }

	calls := 0
	got, err := Retry(gen, func(id string) error {
		calls++
		if id != "c" {
			return dup
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "c", got)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausts(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062}
	calls := 0
	_, err := Retry(NewTicketCode, func(string) error { calls++; return dup })
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, MaxAttempts, calls)
}

func TestRetryStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Retry(NewTicketCode, func(string) error { calls++; return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.False(t, IsDuplicateKey(boom))
}
