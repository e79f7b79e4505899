package split

import "github.com/shopspring/decimal"

// =============================================================================
// PERCENTAGE SPLIT STRATEGY
// Divides the expense based on specified percentages for each participant
// =============================================================================

// PercentageStrategy implements the Strategy interface for percentage-based splits
type PercentageStrategy struct{}

// Type returns the split type identifier
func (s *PercentageStrategy) Type() SplitType {
	return SplitTypePercentage
}

// Validate checks if the inputs are valid for a percentage split
func (s *PercentageStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount.IsNegative() {
		return ErrNegativeAmount
	}

	totalPercentage := decimal.Zero
	for _, p := range participants {
		if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
			return ErrPercentageOutOfRange
		}
		totalPercentage = totalPercentage.Add(p.Percentage)
	}

	// Allow for small rounding errors (99.99 to 100.01)
	if !WithinTolerance(totalPercentage, hundred) {
		return &MismatchError{
			Err:      ErrInvalidPercentages,
			Expected: hundred,
			Actual:   totalPercentage,
		}
	}

	return nil
}

// Calculate gives each participant round(total * percent / 100, 2), except the
// last one who absorbs the rounding residue.
func (s *PercentageStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	return assignRemainder(totalAmount, participants, func(p SplitInput) decimal.Decimal {
		return PercentOf(totalAmount, p.Percentage)
	}), nil
}
