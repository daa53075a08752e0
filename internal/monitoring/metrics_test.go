package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(fulfillmentFailures.WithLabelValues("email"))
	TrackFulfillmentFailure("email")
	assert.Equal(t, before+1, testutil.ToFloat64(fulfillmentFailures.WithLabelValues("email")))

	before = testutil.ToFloat64(ticketsIssued)
	TrackTicketIssued()
	assert.Equal(t, before+1, testutil.ToFloat64(ticketsIssued))

	before = testutil.ToFloat64(confirmations.WithLabelValues("fulfilled"))
	TrackConfirmation("fulfilled")
	assert.Equal(t, before+1, testutil.ToFloat64(confirmations.WithLabelValues("fulfilled")))
}

func TestGatewayHistogramLabels(t *testing.T) {
	TrackGatewayCall("verify", errors.New("x"), 10*time.Millisecond)
	TrackGatewayCall("verify", nil, 10*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(gatewayCalls), 2)
}
