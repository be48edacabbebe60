package earnings

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCompute(t *testing.T) {
	cases := []struct {
		name       string
		prev, next int64
		cpm        string
		paidOut    string
		total      string
		payable    string
		capped     bool
	}{
		{name: "first thousand views", prev: 0, next: 1000, cpm: "500", paidOut: "0", total: "1000", payable: "500", capped: false},
		{name: "growth hits the budget", prev: 1000, next: 3000, cpm: "500", paidOut: "500", total: "1000", payable: "500", capped: true},
		{name: "exact budget", prev: 0, next: 2000, cpm: "500", paidOut: "0", total: "1000", payable: "1000", capped: true},
		{name: "exhausted budget", prev: 3000, next: 5000, cpm: "500", paidOut: "1000", total: "1000", payable: "0", capped: true},
		{name: "overspent budget", prev: 0, next: 10, cpm: "1", paidOut: "12", total: "10", payable: "0", capped: true},
		{name: "flat views", prev: 1000, next: 1000, cpm: "500", paidOut: "0", total: "1000", payable: "0", capped: false},
		{name: "regression", prev: 1000, next: 900, cpm: "500", paidOut: "0", total: "1000", payable: "0", capped: false},
		{name: "flat views on exhausted offer", prev: 10, next: 10, cpm: "1", paidOut: "5", total: "5", payable: "0", capped: true},
		{name: "fractional", prev: 0, next: 1, cpm: "2.5", paidOut: "0", total: "100", payable: "0.0025", capped: false},
		{name: "rounded down", prev: 0, next: 1, cpm: "0.33333", paidOut: "0", total: "100", payable: "0.0003", capped: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.prev, tc.next, dec(tc.cpm), dec(tc.paidOut), dec(tc.total))
			if !got.Payable.Equal(dec(tc.payable)) {
				t.Fatalf("expected payable %s, got %s", tc.payable, got.Payable)
			}
			if got.CappedAtBudget != tc.capped {
				t.Fatalf("expected capped %v, got %v", tc.capped, got.CappedAtBudget)
			}
		})
	}
}

func TestComputeNeverExceedsRemaining(t *testing.T) {
	total := dec("1234.5678")
	paid := decimal.Zero
	views := int64(0)
	for step := int64(1); step < 400; step++ {
		next := views + step*step
		got := Compute(views, next, dec("7.77"), paid, total)
		paid = paid.Add(got.Payable)
		views = next
		if paid.GreaterThan(total) {
			t.Fatalf("paid %s exceeded budget %s at step %d", paid, total, step)
		}
		if got.CappedAtBudget && !paid.Equal(total) {
			t.Fatalf("capped at step %d but paid %s != %s", step, paid, total)
		}
	}
	if !paid.Equal(total) {
		t.Fatalf("expected budget to be exhausted, paid %s", paid)
	}
}

func TestPotential(t *testing.T) {
	if got := Potential(3000, dec("500")); !got.Equal(dec("1500")) {
		t.Fatalf("expected 1500, got %s", got)
	}
	if got := Potential(0, dec("500")); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
	if got := Potential(100, decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero for zero rate, got %s", got)
	}
}
