package split

import "github.com/shopspring/decimal"

// =============================================================================
// EQUAL SPLIT STRATEGY
// Divides the expense equally among all included participants
// =============================================================================

// EqualStrategy implements the Strategy interface for equal splits
type EqualStrategy struct{}

// Type returns the split type identifier
func (s *EqualStrategy) Type() SplitType {
	return SplitTypeEqual
}

// Validate checks if the inputs are valid for an equal split
func (s *EqualStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if totalAmount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Calculate gives every participant round(total/n, 2) except the last one,
// who receives whatever is left so the outputs sum exactly to the total.
func (s *EqualStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	sharePerPerson := totalAmount.Div(decimal.NewFromInt(int64(len(participants))))

	return assignRemainder(totalAmount, participants, func(SplitInput) decimal.Decimal {
		return sharePerPerson
	}), nil
}
