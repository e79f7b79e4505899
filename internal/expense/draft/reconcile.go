package draft

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/split"
)

// Result is the final paid/owed pair of a submitted expense. Both arrays sum
// to the expense amount.
type Result struct {
	PaidBy []Allocation `json:"paid_by"`
	OwedBy []Allocation `json:"owed_by"`
}

var strategies = split.NewSplitStrategyFactory()

// Reconcile derives the paid and owed arrays from the participant flags of d.
// It reads nothing but d and changes nothing, so a rejected draft can be fixed
// and reconciled again.
func Reconcile(d Draft) (*Result, error) {
	if !d.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	paidBy := resolvePayers(d)
	if len(paidBy) == 0 {
		return nil, ErrMissingPayer
	}

	totalPaid := decimal.Zero
	for _, a := range paidBy {
		totalPaid = totalPaid.Add(a.Amount)
	}
	if !split.WithinTolerance(totalPaid, d.Amount) {
		return nil, mismatch(KindPayerAmountMismatch,
			"payers contributed %s but the expense total is %s", d.Amount, totalPaid)
	}

	included := d.Included()
	if len(included) == 0 {
		return nil, ErrNoParticipants
	}

	owedBy, err := resolveOwed(d, included)
	if err != nil {
		return nil, err
	}

	// Outside a group, a single payer settles the expense with themselves.
	if d.GroupID == 0 && len(paidBy) == 1 {
		owedBy = []Allocation{{UserID: paidBy[0].UserID, Amount: d.Amount}}
	}

	return &Result{PaidBy: paidBy, OwedBy: owedBy}, nil
}

// resolvePayers collects payers with a positive contribution. In single mode
// the selected payer stands in for the full amount when nobody has one.
func resolvePayers(d Draft) []Allocation {
	var paidBy []Allocation
	for _, p := range d.Participants {
		if p.IsPayer && p.PaidAmount.IsPositive() {
			paidBy = append(paidBy, Allocation{UserID: p.User.ID, Amount: p.PaidAmount})
		}
	}
	if len(paidBy) > 0 {
		return paidBy
	}

	if d.PayerMode != PayerModeMultiple && d.SinglePayerID != 0 {
		if p, ok := d.Participant(d.SinglePayerID); ok && p.IsPayer {
			return []Allocation{{UserID: d.SinglePayerID, Amount: d.Amount}}
		}
	}
	return nil
}

func resolveOwed(d Draft, included []Participant) ([]Allocation, error) {
	strategy, err := strategies.Create(d.SplitMethod)
	if err != nil {
		return nil, ErrUnknownSplitMethod
	}

	inputs := make([]split.SplitInput, len(included))
	for i, p := range included {
		inputs[i] = split.SplitInput{
			UserID:     p.User.ID,
			Percentage: p.PercentShare,
			Amount:     p.Share,
		}
	}

	outputs, err := strategy.Calculate(d.Amount, inputs)
	if err != nil {
		return nil, toValidationError(err)
	}

	owedBy := make([]Allocation, len(outputs))
	for i, o := range outputs {
		owedBy[i] = Allocation{UserID: o.UserID, Amount: o.AmountOwed}
	}
	return owedBy, nil
}

func toValidationError(err error) error {
	var m *split.MismatchError
	switch {
	case errors.As(err, &m) && errors.Is(err, split.ErrInvalidExactAmounts):
		return mismatch(KindExactShareMismatch,
			"shares add up to %s but the expense total is %s", m.Expected, m.Actual)
	case errors.As(err, &m) && errors.Is(err, split.ErrInvalidPercentages):
		return mismatch(KindPercentageMismatch,
			"percentages add up to %s%% but must add up to %s%%", m.Expected, m.Actual)
	case errors.Is(err, split.ErrPercentageOutOfRange):
		return &ValidationError{Kind: KindPercentageMismatch, Message: err.Error()}
	case errors.Is(err, split.ErrNegativeAmount):
		return &ValidationError{Kind: KindExactShareMismatch, Message: err.Error()}
	case errors.Is(err, split.ErrNoParticipants):
		return ErrNoParticipants
	}
	return err
}
