// Package balance holds the integer-cent arithmetic behind budget allocation checks.
// Currency conversion to display strings happens only at the presentation boundary.
package balance

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatPrice renders a USD amount as "$1,234.50". Negative amounts render as "-$10.00".
func FormatPrice(amount decimal.Decimal) string {
	rounded := amount.Round(2)

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}

	whole := rounded.IntPart()
	cents := rounded.Sub(decimal.NewFromInt(whole)).Mul(hundred).IntPart()

	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(whole), cents)
}

// FormatCents renders an amount expressed in cents.
func FormatCents(cents int64) string {
	return FormatPrice(USDFromCents(cents))
}

// USDFromCents converts cents to an exact decimal dollar amount.
func USDFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// CentsFromUSD converts a dollar amount to cents, rounding half away from zero.
func CentsFromUSD(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// TotalAssignmentCost is the cost of assigning content to learnerCount learners. A cost
// that does not fit in int64 saturates at math.MaxInt64, which no balance can cover.
func TotalAssignmentCost(contentPriceCents int64, learnerCount int) int64 {
	if learnerCount <= 0 || contentPriceCents <= 0 {
		return 0
	}
	count := int64(learnerCount)
	if contentPriceCents > math.MaxInt64/count {
		return math.MaxInt64
	}
	return contentPriceCents * count
}

// RemainingBalance is what would be left after spending totalCost. A negative result
// means the allocation cannot be funded. The result saturates instead of wrapping.
func RemainingBalance(available, totalCost int64) int64 {
	switch {
	case totalCost > 0 && available < math.MinInt64+totalCost:
		return math.MinInt64
	case totalCost < 0 && available > math.MaxInt64+totalCost:
		return math.MaxInt64
	}
	return available - totalCost
}

// HasEnoughBalance reports whether available funds cover totalCost.
func HasEnoughBalance(available, totalCost int64) bool {
	return RemainingBalance(available, totalCost) >= 0
}
