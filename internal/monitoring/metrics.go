// Package monitoring exposes Prometheus metrics for the checkout and
// fulfillment pipeline.  Collectors register with the default registry
// and are served on /metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders placed, by outcome",
		},
		[]string{"outcome"},
	)

	gatewayCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Latency of payment processor calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)

	confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Payment confirmation attempts, by result",
		},
		[]string{"result"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Purchased tickets delivered to buyers",
		},
	)

	fulfillmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_unit_failures_total",
			Help: "Per-unit fulfillment failures, by stage",
		},
		[]string{"stage"},
	)

	fulfillmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fulfillment_duration_seconds",
			Help:    "Time spent fulfilling one order",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

// TrackOrderCreated counts a placed order.  outcome is
// "awaiting_payment", "free" or "gateway_error".
func TrackOrderCreated(outcome string) { ordersCreated.WithLabelValues(outcome).Inc() }

// TrackGatewayCall records one processor round trip.
func TrackGatewayCall(op string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayCalls.WithLabelValues(op, outcome).Observe(took.Seconds())
}

// TrackConfirmation counts a confirm attempt: "fulfilled", "queued",
// "already_verified", "failed" or "error".
func TrackConfirmation(result string) { confirmations.WithLabelValues(result).Inc() }

func TrackTicketIssued() { ticketsIssued.Inc() }

// TrackFulfillmentFailure counts a unit that failed at stage ("ticket",
// "qr", "store", "email").
func TrackFulfillmentFailure(stage string) { fulfillmentFailures.WithLabelValues(stage).Inc() }

func ObserveFulfillment(took time.Duration) { fulfillmentDuration.Observe(took.Seconds()) }
