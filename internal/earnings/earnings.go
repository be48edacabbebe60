// Package earnings converts view growth into money under an offer budget.
package earnings

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places money is kept at.
const Scale = 4

var viewsPerRate = decimal.NewFromInt(1000)

// Accrual is the outcome of one computation.
type Accrual struct {
	Payable decimal.Decimal
	// CappedAtBudget is set when the offer has no budget left after this
	// payment, so the caller must deactivate it in the same transaction.
	CappedAtBudget bool
}

// Compute returns what a clip earns for growing from previousViews to
// newViews. Regressions and flat counts pay nothing.
func Compute(previousViews, newViews int64, cpmRate, paidOut, totalBudget decimal.Decimal) Accrual {
	remaining := totalBudget.Sub(paidOut)
	if newViews <= previousViews {
		return Accrual{Payable: decimal.Zero, CappedAtBudget: !remaining.IsPositive()}
	}
	if !remaining.IsPositive() {
		return Accrual{Payable: decimal.Zero, CappedAtBudget: true}
	}

	potential := Potential(newViews-previousViews, cpmRate)
	if potential.GreaterThanOrEqual(remaining) {
		return Accrual{Payable: remaining, CappedAtBudget: true}
	}
	return Accrual{Payable: potential, CappedAtBudget: false}
}

// Potential is the uncapped amount for a number of views. Rounding is
// toward zero so rounding can never push spend past the budget.
func Potential(views int64, cpmRate decimal.Decimal) decimal.Decimal {
	if views <= 0 || !cpmRate.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(views).Mul(cpmRate).Div(viewsPerRate).RoundFloor(Scale)
}
