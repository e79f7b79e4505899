package draft

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/split"
)

var hundred = decimal.NewFromInt(100)

// setMethod switches the split method and recomputes shares for it. Exact
// splits keep whatever shares are already there.
func setMethod(d *Draft, method split.SplitType) {
	if !method.Valid() {
		return
	}
	d.SplitMethod = method
	recomputeShares(d)
}

// recomputeShares derives shares from the amount and the included set only,
// so running it twice gives the same result.
func recomputeShares(d *Draft) {
	zeroExcluded(d)
	switch d.SplitMethod {
	case split.SplitTypeEqual:
		applyEqualShares(d)
	case split.SplitTypePercentage:
		applyEqualPercentages(d)
	}
}

// refreshShares follows an amount change without discarding entered percentages.
func refreshShares(d *Draft) {
	switch d.SplitMethod {
	case split.SplitTypeEqual:
		applyEqualShares(d)
	case split.SplitTypePercentage:
		derivePercentShares(d)
	}
}

// toggleParticipant flips inclusion. Equal and percentage splits are
// renormalized; exact amounts are left for the user to fix.
func toggleParticipant(d *Draft, userID int64) {
	i := d.indexOf(userID)
	if i < 0 {
		return
	}
	p := &d.Participants[i]
	p.IsIncluded = !p.IsIncluded
	if !p.IsIncluded {
		p.Share = decimal.Zero
		p.PercentShare = decimal.Zero
	}

	switch d.SplitMethod {
	case split.SplitTypeEqual:
		applyEqualShares(d)
	case split.SplitTypePercentage:
		if split.WithinTolerance(includedPercent(*d), hundred) {
			derivePercentShares(d)
		} else {
			applyEqualPercentages(d)
		}
	}
}

// setShare records an exact amount or a percentage for an included participant.
// Input that does not parse counts as zero.
func setShare(d *Draft, userID int64, raw string) {
	i := d.indexOf(userID)
	if i < 0 || !d.Participants[i].IsIncluded {
		return
	}
	value := parseInput(raw)
	if value.IsNegative() {
		value = decimal.Zero
	}

	p := &d.Participants[i]
	switch d.SplitMethod {
	case split.SplitTypeExact:
		p.Share = value
	case split.SplitTypePercentage:
		if value.GreaterThan(hundred) {
			value = hundred
		}
		p.PercentShare = value
		p.Share = split.RoundCents(split.PercentOf(d.Amount, value))
	}
}

func applyEqualShares(d *Draft) {
	idx := includedIndices(d)
	if len(idx) == 0 {
		return
	}
	each := d.Amount.DivRound(decimal.NewFromInt(int64(len(idx))), 2)
	for _, i := range idx {
		d.Participants[i].Share = each
	}
}

func applyEqualPercentages(d *Draft) {
	idx := includedIndices(d)
	percents := split.EqualPercentages(len(idx))
	for n, i := range idx {
		d.Participants[i].PercentShare = percents[n]
	}
	derivePercentShares(d)
}

func derivePercentShares(d *Draft) {
	for _, i := range includedIndices(d) {
		p := &d.Participants[i]
		p.Share = split.RoundCents(split.PercentOf(d.Amount, p.PercentShare))
	}
}

func zeroExcluded(d *Draft) {
	for i := range d.Participants {
		if !d.Participants[i].IsIncluded {
			d.Participants[i].Share = decimal.Zero
			d.Participants[i].PercentShare = decimal.Zero
		}
	}
}

func includedIndices(d *Draft) []int {
	var idx []int
	for i, p := range d.Participants {
		if p.IsIncluded {
			idx = append(idx, i)
		}
	}
	return idx
}

func includedPercent(d Draft) decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Participants {
		if p.IsIncluded {
			total = total.Add(p.PercentShare)
		}
	}
	return total
}

func includedShares(d Draft) decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Participants {
		if p.IsIncluded {
			total = total.Add(p.Share)
		}
	}
	return total
}
