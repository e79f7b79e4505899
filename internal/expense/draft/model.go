// Package draft holds the in-progress state of an expense while the user edits
// it, and turns that state into the paid/owed arrays stored at submission.
//
// Every edit is an Event applied by Apply, which returns a new Draft and never
// mutates its input. Reconcile derives the final arrays from the participant
// flags alone, so it can be called any number of times on the same Draft.
package draft

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/split"
)

// PayerMode tells whether one or several participants paid. It only drives
// editing and is never persisted.
type PayerMode string

const (
	PayerModeSingle   PayerMode = "SINGLE"
	PayerModeMultiple PayerMode = "MULTIPLE"
)

// UserRef identifies a person. It is a reference to a directory record, not owned by the draft.
type UserRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Participant is one person's relationship to the expense.
//
// A participant that is not a payer has a zero PaidAmount, and a participant
// that is not included has a zero Share and PercentShare.
type Participant struct {
	User         UserRef         `json:"user"`
	IsIncluded   bool            `json:"is_included"`
	IsPayer      bool            `json:"is_payer"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Share        decimal.Decimal `json:"share"`
	PercentShare decimal.Decimal `json:"percent_share"`
}

// Draft is an expense before submission.
type Draft struct {
	Amount       decimal.Decimal `json:"amount"`
	SplitMethod  split.SplitType `json:"split_method"`
	Participants []Participant   `json:"participants"`
	PayerMode    PayerMode       `json:"payer_mode"`

	// GroupID and FriendID record the context the draft was opened in; both are
	// zero for a personal expense.
	GroupID  int64 `json:"group_id,omitempty"`
	FriendID int64 `json:"friend_id,omitempty"`

	// SinglePayerID remembers the last payer picked in single mode, so a payer
	// chosen before the amount was known still resolves at submission.
	SinglePayerID int64 `json:"single_payer_id,omitempty"`
}

// Allocation is one {user, amount} entry of a paidBy or owedBy array.
type Allocation struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// IsPersonal reports whether the draft belongs to neither a group nor a friend.
func (d Draft) IsPersonal() bool {
	return d.GroupID == 0 && d.FriendID == 0
}

// Included returns the included participants in list order.
func (d Draft) Included() []Participant {
	var out []Participant
	for _, p := range d.Participants {
		if p.IsIncluded {
			out = append(out, p)
		}
	}
	return out
}

// Payers returns the participants flagged as payers in list order.
func (d Draft) Payers() []Participant {
	var out []Participant
	for _, p := range d.Participants {
		if p.IsPayer {
			out = append(out, p)
		}
	}
	return out
}

// TotalPaid is the sum of PaidAmount over payers.
func (d Draft) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Participants {
		if p.IsPayer {
			total = total.Add(p.PaidAmount)
		}
	}
	return total
}

// Participant returns the participant with the given user id.
func (d Draft) Participant(userID int64) (Participant, bool) {
	if i := d.indexOf(userID); i >= 0 {
		return d.Participants[i], true
	}
	return Participant{}, false
}

func (d Draft) indexOf(userID int64) int {
	for i, p := range d.Participants {
		if p.User.ID == userID {
			return i
		}
	}
	return -1
}

func (d Draft) clone() Draft {
	next := d
	next.Participants = make([]Participant, len(d.Participants))
	copy(next.Participants, d.Participants)
	return next
}
