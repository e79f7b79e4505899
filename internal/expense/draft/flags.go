package draft

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/split"
)

// Flags are advisory checks shown while editing. They never block an edit;
// Reconcile enforces the same rules at submission.
type Flags struct {
	PayerMismatch   bool            `json:"payer_mismatch"`
	ShareMismatch   bool            `json:"share_mismatch"`
	PercentMismatch bool            `json:"percent_mismatch"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	TotalShares     decimal.Decimal `json:"total_shares"`
	TotalPercent    decimal.Decimal `json:"total_percent"`
}

// Check computes the flags for d.
func Check(d Draft) Flags {
	f := Flags{
		TotalPaid:    d.TotalPaid(),
		TotalShares:  includedShares(d),
		TotalPercent: includedPercent(d),
	}
	f.PayerMismatch = !split.WithinTolerance(f.TotalPaid, d.Amount)

	switch d.SplitMethod {
	case split.SplitTypeExact:
		f.ShareMismatch = !split.WithinTolerance(f.TotalShares, d.Amount)
	case split.SplitTypePercentage:
		f.PercentMismatch = !split.WithinTolerance(f.TotalPercent, hundred)
	}
	return f
}
