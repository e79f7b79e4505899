package split

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SplitType defines the type of split strategy
type SplitType string

const (
	SplitTypeEqual      SplitType = "EQUAL"
	SplitTypePercentage SplitType = "PERCENTAGE"
	SplitTypeExact      SplitType = "EXACT"
)

// Tolerance is the largest difference accepted between two sums that must match.
var Tolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// SplitInput represents an included participant and the values entered for them.
// Percentage is only read by PERCENTAGE splits and Amount only by EXACT splits.
type SplitInput struct {
	UserID     int64           `json:"user_id"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// SplitOutput represents the calculated owed amount for a single participant
type SplitOutput struct {
	UserID     int64           `json:"user_id"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
}

// Strategy is the interface that all split strategies must implement
type Strategy interface {
	// Calculate computes the owed amount of every participant, in input order.
	// The outputs always sum to totalAmount.
	Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error)

	// Type returns the type identifier for this strategy
	Type() SplitType

	// Validate checks if the inputs are valid for this strategy
	Validate(totalAmount decimal.Decimal, participants []SplitInput) error
}

// Factory creates split strategies based on the requested type
type Factory struct{}

// NewSplitStrategyFactory creates a new factory instance
func NewSplitStrategyFactory() *Factory {
	return &Factory{}
}

// Create returns the appropriate strategy implementation based on the type
func (f *Factory) Create(splitType SplitType) (Strategy, error) {
	switch splitType {
	case SplitTypeEqual:
		return &EqualStrategy{}, nil
	case SplitTypePercentage:
		return &PercentageStrategy{}, nil
	case SplitTypeExact:
		return &ExactStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSplitType, splitType)
	}
}

// CreateFromString creates a strategy from a string type (useful for API requests)
func (f *Factory) CreateFromString(splitType string) (Strategy, error) {
	return f.Create(ParseSplitType(splitType))
}

// ParseSplitType accepts the lower case names used by clients ("equal") as well
// as the stored upper case form.
func ParseSplitType(s string) SplitType {
	return SplitType(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether t is one of the known split types.
func (t SplitType) Valid() bool {
	switch t {
	case SplitTypeEqual, SplitTypePercentage, SplitTypeExact:
		return true
	}
	return false
}

var (
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrInvalidPercentages   = errors.New("percentages must sum to 100")
	ErrInvalidExactAmounts  = errors.New("exact amounts must sum to total amount")
	ErrNegativeAmount       = errors.New("amounts cannot be negative")
	ErrPercentageOutOfRange = errors.New("percentage must be between 0 and 100")
	ErrUnknownSplitType     = errors.New("unknown split type")
)

// MismatchError reports a sum that is off from what it must equal.
type MismatchError struct {
	Err      error
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: got %s, expected %s", e.Err, e.Actual.StringFixed(2), e.Expected.StringFixed(2))
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

// RoundCents rounds a value to 2 decimal places, half away from zero.
func RoundCents(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// WithinTolerance reports whether a and b differ by at most Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Sum adds up the given values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// assignRemainder builds outputs from per-participant amounts where every
// participant but the last keeps its rounded amount and the last one receives
// total minus everything before it. The order of participants decides who
// absorbs the rounding residue.
func assignRemainder(total decimal.Decimal, participants []SplitInput, amountFor func(SplitInput) decimal.Decimal) []SplitOutput {
	outputs := make([]SplitOutput, len(participants))
	distributed := decimal.Zero
	last := len(participants) - 1
	for i, p := range participants {
		amount := total.Sub(distributed)
		if i < last {
			amount = RoundCents(amountFor(p))
			distributed = distributed.Add(amount)
		}
		outputs[i] = SplitOutput{
			UserID:     p.UserID,
			AmountOwed: amount,
		}
	}
	return outputs
}

// EqualPercentages splits 100 percent across n participants in cents, with the
// remainder on the last one (3 participants -> 33.33, 33.33, 33.34).
func EqualPercentages(n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	inputs := make([]SplitInput, n)
	each := hundred.Div(decimal.NewFromInt(int64(n)))
	outputs := assignRemainder(hundred, inputs, func(SplitInput) decimal.Decimal { return each })
	percents := make([]decimal.Decimal, n)
	for i, o := range outputs {
		percents[i] = o.AmountOwed
	}
	return percents
}

// PercentOf returns percent/100 * amount.
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}
