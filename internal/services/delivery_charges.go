package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DeliveryCharges resolves the delivery charge per shipping city, case-insensitively, with a
// default for cities that have no entry.
type DeliveryCharges struct {
	fallback decimal.Decimal
	byCity   map[string]decimal.Decimal
}

var _ DeliveryChargeResolver = (*DeliveryCharges)(nil)

// NewDeliveryCharges builds a resolver. Negative amounts are treated as zero.
func NewDeliveryCharges(fallback decimal.Decimal, byCity map[string]decimal.Decimal) *DeliveryCharges {
	charges := &DeliveryCharges{
		fallback: clampZero(fallback),
		byCity:   make(map[string]decimal.Decimal, len(byCity)),
	}
	for city, amount := range byCity {
		key := normaliseCity(city)
		if key == "" {
			continue
		}
		charges.byCity[key] = clampZero(amount)
	}
	return charges
}

// ChargeFor returns the charge for city.
func (d *DeliveryCharges) ChargeFor(city string) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	if amount, ok := d.byCity[normaliseCity(city)]; ok {
		return amount
	}
	return d.fallback
}

func normaliseCity(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}

func clampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
