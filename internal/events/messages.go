package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Share is one entry of the paid or owed array of a submitted expense.
type Share struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ExpenseSubmitted announces a persisted expense to the balance service.
// It carries everything needed to update pairwise balances, so consumers do
// not have to read the expense back.
type ExpenseSubmitted struct {
	ExpenseID int64           `json:"expense_id"`
	GroupID   *int64          `json:"group_id,omitempty"`
	FriendID  *int64          `json:"friend_id,omitempty"`
	CreatedBy int64           `json:"created_by"`
	Amount    decimal.Decimal `json:"amount"`
	SplitType string          `json:"split_type"`
	Date      string          `json:"date"`
	PaidBy    []Share         `json:"paid_by"`
	OwedBy    []Share         `json:"owed_by"`
	Timestamp time.Time       `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseSubmitted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseSubmittedFromJSON decodes a message published by Publisher.
func ExpenseSubmittedFromJSON(data []byte) (*ExpenseSubmitted, error) {
	var msg ExpenseSubmitted
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
