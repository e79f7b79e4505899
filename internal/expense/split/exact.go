package split

import "github.com/shopspring/decimal"

// =============================================================================
// EXACT SPLIT STRATEGY
// Each participant owes a specific exact amount (must sum to total)
// =============================================================================

// ExactStrategy implements the Strategy interface for exact amount splits
type ExactStrategy struct{}

// Type returns the split type identifier
func (s *ExactStrategy) Type() SplitType {
	return SplitTypeExact
}

// Validate checks if the inputs are valid for an exact split
func (s *ExactStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount.IsNegative() {
		return ErrNegativeAmount
	}

	totalExact := decimal.Zero
	for _, p := range participants {
		if p.Amount.IsNegative() {
			return ErrNegativeAmount
		}
		totalExact = totalExact.Add(p.Amount)
	}

	if !WithinTolerance(totalExact, totalAmount) {
		return &MismatchError{
			Err:      ErrInvalidExactAmounts,
			Expected: totalAmount,
			Actual:   totalExact,
		}
	}

	return nil
}

// Calculate returns the exact amounts entered for each participant, unchanged
func (s *ExactStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	outputs := make([]SplitOutput, len(participants))
	for i, p := range participants {
		outputs[i] = SplitOutput{
			UserID:     p.UserID,
			AmountOwed: p.Amount,
		}
	}

	return outputs, nil
}
