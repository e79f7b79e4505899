package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/draft"
	"github.com/fkhayef/splitwise/internal/expense/split"
)

// DefaultCategory is stored when a submission names no category.
const DefaultCategory = "general"

// Expense represents a submitted expense
type Expense struct {
	ID          int64           `json:"id"`
	GroupID     *int64          `json:"group_id,omitempty"`
	FriendID    *int64          `json:"friend_id,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
	Notes       *string         `json:"notes,omitempty"`
	SplitType   split.SplitType `json:"split_type"`
	CreatedAt   time.Time       `json:"created_at"`

	// Populated via JOIN
	CreatedByUsername string `json:"created_by_username,omitempty"`
}

// Allocation is one row of the paid or owed array of an expense
type Allocation struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`

	// Populated via JOIN
	Username string `json:"username,omitempty"`
}

// ExpenseWithAllocations combines an expense with who paid and who owes
type ExpenseWithAllocations struct {
	Expense *Expense
	PaidBy  []*Allocation
	OwedBy  []*Allocation
}

// IsPayer reports whether userID contributed to the expense.
func (e *ExpenseWithAllocations) IsPayer(userID int64) bool {
	for _, a := range e.PaidBy {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// NewExpense is a reconciled draft ready to be stored. It is written in one
// transaction, never partially.
type NewExpense struct {
	GroupID     *int64
	FriendID    *int64
	CreatedBy   int64
	Description string
	Amount      decimal.Decimal
	Category    string
	Date        time.Time
	Notes       *string
	SplitType   split.SplitType
	PaidBy      []draft.Allocation
	OwedBy      []draft.Allocation
}

// withID returns e as it was stored under id, without usernames.
func (e *NewExpense) withID(id int64, createdAt time.Time) *ExpenseWithAllocations {
	return &ExpenseWithAllocations{
		Expense: &Expense{
			ID:          id,
			GroupID:     e.GroupID,
			FriendID:    e.FriendID,
			CreatedBy:   e.CreatedBy,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    e.Category,
			Date:        e.Date,
			Notes:       e.Notes,
			SplitType:   e.SplitType,
			CreatedAt:   createdAt,
		},
		PaidBy: allocationRows(e.PaidBy),
		OwedBy: allocationRows(e.OwedBy),
	}
}

func allocationRows(as []draft.Allocation) []*Allocation {
	out := make([]*Allocation, len(as))
	for i, a := range as {
		out[i] = &Allocation{UserID: a.UserID, Amount: a.Amount}
	}
	return out
}

// Session is a draft being edited by its owner.
type Session struct {
	ID        string
	OwnerID   int64
	Draft     draft.Draft
	UpdatedAt time.Time

	// Submitting is set while a submission of this draft is in flight.
	Submitting bool
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
