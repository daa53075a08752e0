// Package repository holds the MySQL data access layer.  This file defines
// sentinel errors reused across repositories so higher layers such as
// handlers can distinguish failure scenarios with errors.Is.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot proceed because of the
// current state of the row, e.g. setting a payment reference twice.
var ErrConflict = errors.New("conflict")

// Not-found errors.  Handlers map them to 404 except on the payment
// verification path, where a missing or mismatched order is a 400.
var (
	ErrEventNotFound           = errors.New("event not found")
	ErrTicketNotFound          = errors.New("ticket not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrPurchasedTicketNotFound = errors.New("purchased ticket not found")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrTransactionNotFound     = errors.New("wallet transaction not found")
)

// ErrDuplicateTicket signals a ticket tier name collision within an event.
var ErrDuplicateTicket = errors.New("a ticket with this name already exists for the event")

// ErrEmailExists is returned on registration with a taken email.
var ErrEmailExists = errors.New("email already exists")
