package checkout

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// CartItem is one requested line: a tier name and how many tickets of it.
type CartItem struct {
	Ticket   string `json:"ticket"`
	Quantity int    `json:"quantity"`
}

// Assembler turns a cart into a persisted pending order.
type Assembler struct {
	Orders OrderStore
	Now    func() time.Time
}

// Assemble validates the input and persists the order.  event must
// already be resolved as on sale.  Every cart line is checked before
// anything is written; a *model.ValidationError lists all offending
// fields.  Items naming the same tier are merged.  An empty cart yields a
// valid order with no lines.  The payment reference is never set here.
func (a *Assembler) Assemble(ctx context.Context, event *model.Event, userID *uint64, email string, items []CartItem) (*model.Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	verr := &model.ValidationError{}
	if email == "" {
		verr.Add("email", "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("email", "enter a valid email address")
	}

	var lines []model.LineRequest
	index := map[string]int{}
	for i, it := range items {
		name := strings.TrimSpace(it.Ticket)
		if name == "" {
			verr.Add(fmt.Sprintf("selected_ticket[%d].ticket", i), "ticket is required")
		}
		if it.Quantity <= 0 {
			verr.Add(fmt.Sprintf("selected_ticket[%d].quantity", i), "quantity must be greater than zero")
		}
		if name == "" || it.Quantity <= 0 {
			continue
		}
		if j, ok := index[name]; ok {
			lines[j].Quantity += it.Quantity
			continue
		}
		index[name] = len(lines)
		lines = append(lines, model.LineRequest{TierName: name, Quantity: it.Quantity})
	}
	if !verr.Empty() {
		return nil, verr
	}

	order, err := a.Orders.CreateOrder(ctx, model.OrderDraft{
		EventID: event.ID,
		UserID:  userID,
		Email:   email,
		Lines:   lines,
	}, a.now())
	if err != nil {
		return nil, err
	}
	order.EventName = event.Name
	order.EventSlug = event.Slug
	return order, nil
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}
