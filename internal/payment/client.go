// Package payment talks to a Paystack-style payment processor.  The
// processor is the source of truth for payment state; this package never
// mutates local state.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// StatusSuccess is the verified status of a completed payment.
const StatusSuccess = "success"

// InitializeRequest starts a payment for Amount (major units).
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	CallbackURL string
	Metadata    map[string]any
}

// Initialization is the processor's answer to an initialize call.  The
// buyer is redirected to AuthorizationURL to pay.
type Initialization struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// Verification is the authoritative payment state for a reference.
type Verification struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"-"`
	// Raw is the processor's data object, returned verbatim to callers.
	Raw json.RawMessage `json:"-"`
}

// Succeeded reports whether the processor confirmed the payment.
func (v *Verification) Succeeded() bool { return v != nil && v.Status == StatusSuccess }

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the processor's REST API with a bearer secret.  Every call
// runs through a circuit breaker so a failing processor is not hammered.
type Client struct {
	baseURL string
	secret  string
	timeout time.Duration
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

// NewClient builds a Client from cfg.  A zero timeout defaults to 10s.
func NewClient(cfg config.PaymentConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("payment: breaker %s %s -> %s", name, from, to)
		},
	})
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.SecretKey,
		timeout: timeout,
		http:    &http.Client{},
		cb:      cb,
	}
}

// Initialize registers a payment of req.Amount and returns the reference
// and redirect URL.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*Initialization, error) {
	body := map[string]any{
		"email":  req.Email,
		"amount": pricing.ToMinorUnits(req.Amount),
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	data, err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	var init Initialization
	if err := json.Unmarshal(data, &init); err != nil || init.Reference == "" {
		return nil, &GatewayError{Op: "initialize", Message: "malformed initialize response", Err: err}
	}
	return &init, nil
}

// Verify fetches the payment state for reference.  It is safe to call any
// number of times.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	data, err := c.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &GatewayError{Op: "verify", Message: "malformed verify response", Err: err}
	}
	return &Verification{
		Status:    payload.Status,
		Reference: payload.Reference,
		Amount:    pricing.FromMinorUnits(payload.Amount),
		Raw:       data,
	}, nil
}

// breakerSuccess decides which outcomes count against the processor's
// health.  Rejections the processor answered and caller cancellations
// do not.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return !gerr.Transient()
	}
	return false
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, op, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &GatewayError{Op: op, Message: "payment processor unavailable", Err: err}
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if !env.Status {
		msg := env.Message
		if msg == "" {
			msg = "processor reported failure"
		}
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return env.Data, nil
}
