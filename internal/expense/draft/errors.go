package draft

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies a ValidationError.
type Kind string

const (
	KindMissingPayer        Kind = "MISSING_PAYER"
	KindPayerAmountMismatch Kind = "PAYER_AMOUNT_MISMATCH"
	KindExactShareMismatch  Kind = "EXACT_SHARE_MISMATCH"
	KindPercentageMismatch  Kind = "PERCENTAGE_MISMATCH"
	KindNoParticipants      Kind = "NO_PARTICIPANTS"
	KindInvalidAmount       Kind = "INVALID_AMOUNT"
	KindUnknownSplitMethod  Kind = "UNKNOWN_SPLIT_METHOD"
)

// ValidationError is a problem with the user's input found at reconciliation.
// Message is meant to be shown to the user as is.
type ValidationError struct {
	Kind     Kind             `json:"code"`
	Message  string           `json:"message"`
	Expected *decimal.Decimal `json:"expected,omitempty"`
	Actual   *decimal.Decimal `json:"actual,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches any ValidationError of the same kind, so callers can write
// errors.Is(err, draft.ErrMissingPayer).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrMissingPayer        = &ValidationError{Kind: KindMissingPayer, Message: "select who paid for this expense"}
	ErrPayerAmountMismatch = &ValidationError{Kind: KindPayerAmountMismatch, Message: "payer amounts do not match the total"}
	ErrExactShareMismatch  = &ValidationError{Kind: KindExactShareMismatch, Message: "exact shares do not match the total"}
	ErrPercentageMismatch  = &ValidationError{Kind: KindPercentageMismatch, Message: "percentages do not add up to 100"}
	ErrNoParticipants      = &ValidationError{Kind: KindNoParticipants, Message: "select at least one person to split with"}
	ErrInvalidAmount       = &ValidationError{Kind: KindInvalidAmount, Message: "amount must be greater than zero"}
	ErrUnknownSplitMethod  = &ValidationError{Kind: KindUnknownSplitMethod, Message: "unknown split method"}
)

func mismatch(kind Kind, format string, expected, actual decimal.Decimal) *ValidationError {
	return &ValidationError{
		Kind:     kind,
		Message:  fmt.Sprintf(format, actual.StringFixed(2), expected.StringFixed(2)),
		Expected: &expected,
		Actual:   &actual,
	}
}
