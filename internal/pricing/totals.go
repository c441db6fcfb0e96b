// Package pricing computes derived cart totals. Amounts are integer cents;
// discounts are percentages. Intermediate math runs on decimals so each
// component is rounded once, and the final total always equals
// subtotal - total discount + service charge.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"rasapos/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

func ComputeTotals(items []domain.CartItem, overallDiscount float64, serviceChargeCents int64) domain.Totals {
	subtotal := decimal.Zero
	lineDiscount := decimal.Zero
	itemCount := 0

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		gross := LineGross(item)
		subtotal = subtotal.Add(gross)
		lineDiscount = lineDiscount.Add(percentOf(gross, item.Discount))
		itemCount += item.Quantity
	}

	overall := percentOf(subtotal, overallDiscount)

	subtotalCents := subtotal.IntPart()
	lineCents := lineDiscount.Round(0).IntPart()
	overallCents := overall.Round(0).IntPart()
	totalDiscount := lineCents + overallCents

	return domain.Totals{
		SubtotalCents:        subtotalCents,
		LineDiscountCents:    lineCents,
		OverallDiscountCents: overallCents,
		TotalDiscountCents:   totalDiscount,
		ServiceChargeCents:   serviceChargeCents,
		FinalTotalCents:      subtotalCents - totalDiscount + serviceChargeCents,
		ItemCount:            itemCount,
	}
}

func LineGross(item domain.CartItem) decimal.Decimal {
	return decimal.NewFromInt(item.PriceCents).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// ClampPercent bounds a percentage to [0, 100]. NaN becomes 0.
func ClampPercent(pct float64) float64 {
	switch {
	case math.IsNaN(pct) || pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

func percentOf(amount decimal.Decimal, pct float64) decimal.Decimal {
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct == 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromFloat(pct)).Div(hundred)
}
