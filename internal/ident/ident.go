// Package ident generates the public identifiers used for orders, tickets
// and wallets.  Identifiers are random; uniqueness is enforced by unique
// keys in the database and callers regenerate on a duplicate-key error
// using Retry.
package ident

import (
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MaxAttempts bounds how many identifiers Retry will try.
const MaxAttempts = 5

// ErrExhausted is returned when every attempt collided.
var ErrExhausted = errors.New("identifier space exhausted after retries")

// NewOrderCode returns the 4th group of a v4 UUID followed by the UTC
// timestamp formatted as YYYYMMDDhhmmss, e.g. "9c1f20260501180000".
func NewOrderCode(now time.Time) string {
	parts := strings.Split(uuid.NewString(), "-")
	return parts[3] + now.UTC().Format("20060102150405")
}

// NewTicketCode returns "t" followed by the last 12 hex digits of a v4 UUID.
func NewTicketCode() string {
	parts := strings.Split(uuid.NewString(), "-")
	return "t" + parts[4]
}

// NewWalletCode returns "w" followed by the last 12 hex digits of a v4 UUID.
func NewWalletCode() string {
	parts := strings.Split(uuid.NewString(), "-")
	return "w" + parts[4]
}

// IsDuplicateKey reports whether err is a MySQL unique-key violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// Retry calls fn with a freshly generated identifier until fn succeeds or
// returns an error other than a duplicate-key violation.  After
// MaxAttempts collisions it returns ErrExhausted.
func Retry(gen func() string, fn func(id string) error) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		id := gen()
		err := fn(id)
		if err == nil {
			return id, nil
		}
		if !IsDuplicateKey(err) {
			return "", err
		}
	}
	return "", ErrExhausted
}
