// Package pricing computes line and order totals.  Amounts are decimals
// with two fractional digits; the payment gateway works in minor units.
package pricing

import (
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when a line quantity is not positive.
var ErrInvalidQuantity = errors.New("quantity must be greater than zero")

// LineTotal returns price × quantity.
func LineTotal(price decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	return price.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// OrderTotal sums the line totals of every line attached to the order.
// An order without lines totals zero.
func OrderTotal(order *model.Order) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range order.Lines {
		lt, err := LineTotal(l.Price, l.Quantity)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(lt)
	}
	return total, nil
}

// MinTierPrice returns the lowest price among active tiers, or nil when
// there are none.
func MinTierPrice(tiers []model.TicketTier) *decimal.Decimal {
	var min *decimal.Decimal
	for i := range tiers {
		if !tiers[i].IsActive {
			continue
		}
		p := tiers[i].Price
		if min == nil || p.LessThan(*min) {
			min = &p
		}
	}
	return min
}

// ToMinorUnits converts an amount to the gateway's minor currency unit
// (kobo, cents), rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
