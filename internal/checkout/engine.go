package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/event-ticketing/internal/fulfillment"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/pricing"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// ConfirmRequest identifies the order whose payment is being confirmed.
// Reference is empty for free orders.
type ConfirmRequest struct {
	OrderCode string
	Reference string
	SiteURL   string
}

// ConfirmResult is the outcome of a confirmation.  Report is set only
// when the call that moved the order to success also fulfilled it;
// Queued means fulfillment was handed to the order.paid consumer instead.
type ConfirmResult struct {
	Order           *model.Order
	Status          model.OrderStatus
	AlreadyVerified bool
	Queued          bool
	Verification    *payment.Verification
	Report          *fulfillment.Report
}

// Engine confirms payments and drives fulfillment.
type Engine struct {
	Orders    OrderStore
	Gateway   Gateway
	Fulfiller Fulfiller
	Publisher Publisher // optional
	SiteURL   string    // used by Reconcile
	Now       func() time.Time
}

// ConfirmPayment verifies the order's payment with the gateway and
// records the verified status.  Only the caller whose pending to success
// transition takes effect starts fulfillment, so concurrent or repeated
// confirmations never issue tickets twice.  With a Publisher the order is
// handed to the order.paid consumer; otherwise it is fulfilled inline.  Fulfillment failures are
// reported in the result, never as an error.  A gateway failure leaves
// the order untouched.
func (e *Engine) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	order, ver, err := e.loadAndVerify(ctx, req)
	if err != nil {
		if !errors.Is(err, payment.ErrGateway) {
			monitoring.TrackConfirmation("error")
		}
		return nil, err
	}
	res := &ConfirmResult{Order: order, Verification: ver}

	verified := model.OrderFailed
	if ver.Succeeded() {
		verified = model.OrderSuccess
		if total, err := pricing.OrderTotal(order); err == nil && ver.Amount.LessThan(total) {
			log.Printf("checkout: order %s paid %s of %s; treating as failed", order.Code, ver.Amount, total)
			verified = model.OrderFailed
		}
	}

	if order.Status == verified && verified == model.OrderSuccess {
		res.Status = model.OrderSuccess
		res.AlreadyVerified = true
		monitoring.TrackConfirmation("already_verified")
		return res, nil
	}

	won, err := e.Orders.TransitionStatus(ctx, order.ID, model.OrderPending, verified)
	if err != nil {
		return nil, fmt.Errorf("record %s status for order %s: %w", verified, order.Code, err)
	}
	if !won {
		cur, err := e.Orders.GetByCode(ctx, order.Code)
		if err != nil {
			return nil, err
		}
		res.Order = cur
		res.Status = cur.Status
		res.AlreadyVerified = cur.Status == model.OrderSuccess && verified == model.OrderSuccess
		monitoring.TrackConfirmation("already_verified")
		return res, nil
	}

	order.Status = verified
	res.Status = verified
	if verified != model.OrderSuccess {
		monitoring.TrackConfirmation("failed")
		return res, nil
	}

	if e.publishPaid(ctx, order, req.SiteURL) {
		res.Queued = true
		monitoring.TrackConfirmation("queued")
		return res, nil
	}
	rep, err := e.Fulfiller.FulfillOrder(ctx, order, req.SiteURL)
	if err != nil {
		log.Printf("checkout: fulfill order %s: %v", order.Code, err)
	}
	res.Report = rep
	monitoring.TrackConfirmation("fulfilled")
	return res, nil
}

// loadAndVerify resolves the order and its authoritative payment state.
// Free orders have no reference and are confirmed without a gateway call.
func (e *Engine) loadAndVerify(ctx context.Context, req ConfirmRequest) (*model.Order, *payment.Verification, error) {
	if req.Reference == "" {
		order, err := e.Orders.GetByCode(ctx, req.OrderCode)
		if err != nil {
			return nil, nil, err
		}
		total, err := pricing.OrderTotal(order)
		if err != nil {
			return nil, nil, err
		}
		if order.PaymentRef != nil || !total.IsZero() {
			return nil, nil, repository.ErrOrderNotFound
		}
		raw, _ := json.Marshal(map[string]any{"status": payment.StatusSuccess, "reference": "", "amount": 0})
		return order, &payment.Verification{Status: payment.StatusSuccess, Amount: total, Raw: raw}, nil
	}

	order, err := e.Orders.GetByCodeAndReference(ctx, req.OrderCode, req.Reference)
	if err != nil {
		return nil, nil, err
	}
	started := time.Now()
	ver, err := e.Gateway.Verify(ctx, req.Reference)
	monitoring.TrackGatewayCall("verify", err, time.Since(started))
	if err != nil {
		return nil, nil, err
	}
	return order, ver, nil
}

// publishPaid hands a freshly paid order to the order.paid consumer.  It
// reports false when there is no publisher or publishing failed, in which
// case the caller fulfills inline.
func (e *Engine) publishPaid(ctx context.Context, order *model.Order, siteURL string) bool {
	if e.Publisher == nil {
		return false
	}
	total, _ := pricing.OrderTotal(order)
	ev := queue.OrderPaidEvent{
		OrderID:     order.ID,
		OrderCode:   order.Code,
		EventID:     order.EventID,
		EventSlug:   order.EventSlug,
		Email:       order.Email,
		Units:       order.Units(),
		TotalAmount: total.StringFixed(2),
		SiteURL:     siteURL,
		PaidAt:      e.now().Format(time.RFC3339),
	}
	if err := e.Publisher.PublishOrderPaid(ctx, ev); err != nil {
		log.Printf("checkout: publish order.paid for %s: %v; fulfilling inline", order.Code, err)
		return false
	}
	return true
}

// ReconcileSummary counts the outcome of one reconciliation pass.
type ReconcileSummary struct {
	Orders     int
	Complete   int
	Incomplete int
}

// Reconcile re-drives fulfillment for up to limit successful orders that
// still miss tickets or deliveries.
func (e *Engine) Reconcile(ctx context.Context, limit int) (ReconcileSummary, error) {
	var sum ReconcileSummary
	orders, err := e.Orders.ListAwaitingFulfillment(ctx, limit)
	if err != nil {
		return sum, err
	}
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Orders++
		rep, err := e.Fulfiller.FulfillOrder(ctx, &orders[i], e.SiteURL)
		if err != nil || !rep.Complete() {
			if err != nil {
				log.Printf("checkout: reconcile order %s: %v", orders[i].Code, err)
			}
			sum.Incomplete++
			continue
		}
		sum.Complete++
	}
	return sum, nil
}

// HandleOrderPaid fulfills the order named by an order.paid message.  It
// is the queue consumer's handler; orders that are not successful are
// ignored.
func (e *Engine) HandleOrderPaid(ctx context.Context, ev queue.OrderPaidEvent) error {
	order, err := e.Orders.GetByCode(ctx, ev.OrderCode)
	if err != nil {
		return err
	}
	if order.Status != model.OrderSuccess {
		return nil
	}
	site := ev.SiteURL
	if site == "" {
		site = e.SiteURL
	}
	rep, err := e.Fulfiller.FulfillOrder(ctx, order, site)
	if errors.Is(err, fulfillment.ErrLocked) {
		return nil
	}
	if err != nil {
		return err
	}
	if !rep.Complete() {
		log.Printf("checkout: order %s still has %d undelivered units", order.Code, len(rep.Failures))
	}
	return nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
