// Package fulfillment issues purchased tickets for paid orders.  Each unit
// of each order line is fulfilled independently: its ticket row is
// ensured, a QR image of its redemption URL is rendered and stored, and
// the image is emailed to the order's contact address.  A unit whose
// email was delivered is never processed again, so FulfillOrder may be
// re-run any number of times to finish a partially fulfilled order.
//
// Before a unit is emailed it is claimed in the database.  Only the pass
// holding the claim sends, so overlapping passes (verification, the
// order.paid consumer, reconcile) deliver each unit once even without the
// Redis lock.  A claim older than ClaimTTL is treated as abandoned.
package fulfillment

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/notify"
)

// TicketStore persists purchased ticket units.
type TicketStore interface {
	EnsureTicket(ctx context.Context, orderID, lineID uint64, unit int, tierID uint64) (*model.PurchasedTicket, bool, error)
	SetImage(ctx context.Context, id uint64, path string) error
	MarkDelivered(ctx context.Context, id uint64, at time.Time) error
	ClaimDelivery(ctx context.Context, id uint64, now, staleBefore time.Time) (bool, error)
	ReleaseDelivery(ctx context.Context, id uint64) error
}

// UnitFailure describes one unit that could not be fulfilled.
type UnitFailure struct {
	LineID uint64 `json:"line_id"`
	Unit   int    `json:"unit"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// Report summarises one fulfillment pass over an order.
type Report struct {
	OrderCode        string        `json:"order_code"`
	Units            int           `json:"units"`
	Created          int           `json:"created"`
	Delivered        int           `json:"delivered"`
	AlreadyDelivered int           `json:"already_delivered"`
	InFlight         int           `json:"in_flight"` // claimed by another pass
	Failures         []UnitFailure `json:"failures,omitempty"`
}

// Complete reports whether every unit has a delivered ticket.
func (r *Report) Complete() bool {
	return len(r.Failures) == 0 && r.InFlight == 0 && r.Delivered+r.AlreadyDelivered == r.Units
}

// Fulfiller materialises and delivers tickets.
type Fulfiller struct {
	Tickets TicketStore
	QR      Renderer
	Media   MediaStore
	Mail    notify.Mailer
	Locker  Locker
	LockTTL time.Duration
	// ClaimTTL bounds how long a unit claimed by a crashed pass stays
	// blocked.  It must exceed the time one email takes to send.
	ClaimTTL time.Duration
	Now     func() time.Time
}

// RedemptionURL is the link encoded into a ticket's QR code.
func RedemptionURL(siteURL, eventSlug, code string) string {
	return strings.TrimRight(siteURL, "/") + "/v1/events/" + url.PathEscape(eventSlug) + "/tickets/" + url.PathEscape(code)
}

// FulfillOrder runs one fulfillment pass over order.  Per-unit failures
// are logged and collected in the Report; the returned error is non-nil
// only when the pass could not run at all (e.g. ErrLocked).
func (f *Fulfiller) FulfillOrder(ctx context.Context, order *model.Order, siteURL string) (*Report, error) {
	started := f.now()
	rep := &Report{OrderCode: order.Code, Units: order.Units()}

	ttl := f.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	locker := f.Locker
	if locker == nil {
		locker = NoopLocker{}
	}
	release, err := locker.Acquire(ctx, "fulfill:"+order.Code, ttl)
	if err != nil {
		return rep, err
	}
	defer release()
	defer func() { monitoring.ObserveFulfillment(f.now().Sub(started)) }()

	for _, line := range order.Lines {
		for unit := 0; unit < line.Quantity; unit++ {
			stage, err := f.fulfillUnit(ctx, order, line, unit, siteURL, rep)
			if err != nil {
				log.Printf("fulfillment: order %s line %d unit %d: %s: %v", order.Code, line.ID, unit, stage, err)
				monitoring.TrackFulfillmentFailure(stage)
				rep.Failures = append(rep.Failures, UnitFailure{
					LineID: line.ID, Unit: unit, Stage: stage, Error: err.Error(),
				})
			}
		}
	}
	return rep, nil
}

func (f *Fulfiller) fulfillUnit(ctx context.Context, order *model.Order, line model.OrderLine, unit int, siteURL string, rep *Report) (string, error) {
	t, created, err := f.Tickets.EnsureTicket(ctx, order.ID, line.ID, unit, line.TierID)
	if err != nil {
		return "ticket", err
	}
	if created {
		rep.Created++
	}
	if t.Delivered() {
		rep.AlreadyDelivered++
		return "", nil
	}

	claimTTL := f.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = 10 * time.Minute
	}
	now := f.now()
	claimed, err := f.Tickets.ClaimDelivery(ctx, t.ID, now, now.Add(-claimTTL))
	if err != nil {
		return "ticket", fmt.Errorf("claim delivery: %w", err)
	}
	if !claimed {
		rep.InFlight++
		return "", nil
	}

	if stage, err := f.deliver(ctx, order, line, t, siteURL); err != nil {
		if rerr := f.Tickets.ReleaseDelivery(context.WithoutCancel(ctx), t.ID); rerr != nil {
			log.Printf("fulfillment: release claim on ticket %s: %v", t.Code, rerr)
		}
		return stage, err
	}

	if err := f.Tickets.MarkDelivered(ctx, t.ID, f.now()); err != nil {
		return "ticket", fmt.Errorf("mark delivered: %w", err)
	}
	rep.Delivered++
	monitoring.TrackTicketIssued()
	return "", nil
}

// deliver renders, stores and emails one claimed unit.
func (f *Fulfiller) deliver(ctx context.Context, order *model.Order, line model.OrderLine, t *model.PurchasedTicket, siteURL string) (string, error) {
	link := RedemptionURL(siteURL, order.EventSlug, t.Code)
	png, err := f.QR.Render(link)
	if err != nil {
		return "qr", err
	}
	rel, err := f.Media.Save(t.Code+".png", png)
	if err != nil {
		return "store", err
	}
	if err := f.Tickets.SetImage(ctx, t.ID, rel); err != nil {
		return "store", err
	}

	body, err := renderTicketEmail(order, line, t.Code, link)
	if err != nil {
		return "email", err
	}
	err = f.Mail.Send(ctx, notify.Message{
		To:      order.Email,
		Subject: "Ticket for " + order.EventName,
		HTML:    body,
		Attachments: []notify.Attachment{
			{Filename: t.Code + ".png", ContentType: "image/png", Data: png},
		},
	})
	if err != nil {
		return "email", err
	}
	return "", nil
}

func (f *Fulfiller) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}

var ticketEmail = template.Must(template.New("ticket").Parse(`<p>Hello,</p>
<p>Here is your <strong>{{.Tier}}</strong> ticket for <strong>{{.Event}}</strong>.</p>
<p>Ticket code: <code>{{.Code}}</code></p>
<p>Present the attached QR code at the entrance, or open <a href="{{.Link}}">{{.Link}}</a>.</p>
<p>Order {{.Order}}</p>`))

func renderTicketEmail(order *model.Order, line model.OrderLine, code, link string) (string, error) {
	var buf bytes.Buffer
	err := ticketEmail.Execute(&buf, map[string]string{
		"Tier":  line.TierName,
		"Event": order.EventName,
		"Code":  code,
		"Link":  link,
		"Order": order.Code,
	})
	return buf.String(), err
}
