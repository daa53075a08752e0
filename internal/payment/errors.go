package payment

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrGateway matches every *GatewayError with errors.Is.
var ErrGateway = errors.New("payment gateway error")

// GatewayError reports a failed round trip to the payment processor:
// transport failures, timeouts, non-2xx responses, a false status
// envelope or an open circuit breaker.  The order involved is left
// untouched so the caller may retry.
type GatewayError struct {
	Op         string // "initialize" or "verify"
	StatusCode int    // HTTP status, 0 when no response was received
	Message    string // processor message when one was returned
	Err        error  // underlying cause, may be nil
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment %s failed (%d): %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("payment %s failed: %s", e.Op, msg)
}

// Transient reports whether the failure says nothing about the request
// itself: no response, an unreadable one, throttling or a 5xx.  A 4xx or
// a false status envelope is the processor answering and is not transient.
func (e *GatewayError) Transient() bool {
	return e.Err != nil || e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
