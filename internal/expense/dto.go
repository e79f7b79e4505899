package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/draft"
	"github.com/fkhayef/splitwise/internal/expense/split"
)

// Event types accepted by POST /drafts/{id}/events
const (
	EventSetAmount         = "set_amount"
	EventSetParticipants   = "set_participants"
	EventSetSplitMethod    = "set_split_method"
	EventSetPayerMode      = "set_payer_mode"
	EventSelectPayer       = "select_payer"
	EventSetPayerAmount    = "set_payer_amount"
	EventToggleParticipant = "toggle_participant"
	EventSetShare          = "set_share"
)

const dateLayout = "2006-01-02"

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("invalid event")
)

// OpenDraftRequest represents the request to start editing a new expense.
// Set GroupID for a group expense, FriendID for a friend expense, or neither
// for a personal expense.
type OpenDraftRequest struct {
	GroupID  *int64 `json:"group_id,omitempty"`
	FriendID *int64 `json:"friend_id,omitempty"`
}

// DraftEventRequest represents one edit of a draft. Which fields are read
// depends on Type.
type DraftEventRequest struct {
	Type    string           `json:"type" example:"set_amount"`
	Amount  *decimal.Decimal `json:"amount,omitempty" swaggertype:"string" example:"100.00"`
	UserID  int64            `json:"user_id,omitempty"`
	UserIDs []int64          `json:"user_ids,omitempty"`
	Method  string           `json:"method,omitempty" example:"EQUAL"`
	Mode    string           `json:"mode,omitempty" example:"SINGLE"`
	Value   string           `json:"value,omitempty" example:"33,5"`
}

// ToEvent converts the request to a draft event. participants is only used
// by set_participants and holds the already resolved new list.
func (r *DraftEventRequest) ToEvent(participants []draft.Participant) (draft.Event, error) {
	switch r.Type {
	case EventSetAmount:
		if r.Amount == nil {
			return nil, fmt.Errorf("%w: amount is required", ErrInvalidEvent)
		}
		if r.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: amount cannot be negative", ErrInvalidEvent)
		}
		if !r.Amount.Equal(r.Amount.Round(2)) {
			return nil, fmt.Errorf("%w: amount cannot have more than 2 decimal places", ErrInvalidEvent)
		}
		return draft.SetAmount{Amount: *r.Amount}, nil
	case EventSetParticipants:
		return draft.SetParticipants{Participants: participants}, nil
	case EventSetSplitMethod:
		method := split.ParseSplitType(r.Method)
		if !method.Valid() {
			return nil, fmt.Errorf("%w: method must be EQUAL, EXACT or PERCENTAGE", ErrInvalidEvent)
		}
		return draft.SetSplitMethod{Method: method}, nil
	case EventSetPayerMode:
		mode := draft.PayerMode(strings.ToUpper(strings.TrimSpace(r.Mode)))
		if mode != draft.PayerModeSingle && mode != draft.PayerModeMultiple {
			return nil, fmt.Errorf("%w: mode must be SINGLE or MULTIPLE", ErrInvalidEvent)
		}
		return draft.SetPayerMode{Mode: mode}, nil
	case EventSelectPayer:
		if r.UserID == 0 {
			return nil, fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
		}
		return draft.SelectPayer{UserID: r.UserID}, nil
	case EventSetPayerAmount:
		if r.UserID == 0 {
			return nil, fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
		}
		return draft.SetPayerAmount{UserID: r.UserID, Value: r.Value}, nil
	case EventToggleParticipant:
		if r.UserID == 0 {
			return nil, fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
		}
		return draft.ToggleParticipant{UserID: r.UserID}, nil
	case EventSetShare:
		if r.UserID == 0 {
			return nil, fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
		}
		return draft.SetShare{UserID: r.UserID, Value: r.Value}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, r.Type)
}

// DraftResponse represents a draft with its live validation flags
type DraftResponse struct {
	ID        string      `json:"id"`
	Draft     draft.Draft `json:"draft"`
	Flags     draft.Flags `json:"flags"`
	UpdatedAt string      `json:"updated_at"`
}

// ToResponse converts a Session to a DraftResponse DTO
func (s *Session) ToResponse() *DraftResponse {
	return &DraftResponse{
		ID:        s.ID,
		Draft:     s.Draft,
		Flags:     draft.Check(s.Draft),
		UpdatedAt: s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// SubmitRequest represents the request to store a draft as an expense
type SubmitRequest struct {
	Description string  `json:"description" validate:"required,min=1,max=255"`
	Category    string  `json:"category,omitempty" example:"general"`
	Date        string  `json:"date,omitempty" example:"2024-05-01"`
	Notes       *string `json:"notes,omitempty"`
}

// normalize trims the request, fills defaults and checks the fields.
func (r *SubmitRequest) normalize(today time.Time) (time.Time, error) {
	r.Description = strings.TrimSpace(r.Description)
	if r.Description == "" {
		return time.Time{}, ErrDescriptionRequired
	}
	if len([]rune(r.Description)) > 255 {
		return time.Time{}, ErrDescriptionTooLong
	}

	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	if r.Category == "" {
		r.Category = DefaultCategory
	}

	if r.Notes != nil {
		notes := strings.TrimSpace(*r.Notes)
		if notes == "" {
			r.Notes = nil
		} else {
			r.Notes = &notes
		}
	}

	if strings.TrimSpace(r.Date) == "" {
		y, m, d := today.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

// ExpenseResponse represents the response for an expense
type ExpenseResponse struct {
	ID                int64                 `json:"id"`
	GroupID           *int64                `json:"group_id,omitempty"`
	FriendID          *int64                `json:"friend_id,omitempty"`
	CreatedBy         int64                 `json:"created_by"`
	CreatedByUsername string                `json:"created_by_username,omitempty"`
	Description       string                `json:"description"`
	Amount            decimal.Decimal       `json:"amount" swaggertype:"string" example:"100.00"`
	Category          string                `json:"category"`
	Date              string                `json:"date"`
	Notes             *string               `json:"notes,omitempty"`
	SplitType         split.SplitType       `json:"split_type"`
	CreatedAt         string                `json:"created_at"`
	PaidBy            []*AllocationResponse `json:"paid_by,omitempty"`
	OwedBy            []*AllocationResponse `json:"owed_by,omitempty"`
}

// AllocationResponse represents one paid or owed entry
type AllocationResponse struct {
	UserID   int64           `json:"user_id"`
	Username string          `json:"username,omitempty"`
	Amount   decimal.Decimal `json:"amount" swaggertype:"string" example:"33.33"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	return &ExpenseResponse{
		ID:                e.ID,
		GroupID:           e.GroupID,
		FriendID:          e.FriendID,
		CreatedBy:         e.CreatedBy,
		CreatedByUsername: e.CreatedByUsername,
		Description:       e.Description,
		Amount:            e.Amount,
		Category:          e.Category,
		Date:              e.Date.Format(dateLayout),
		Notes:             e.Notes,
		SplitType:         e.SplitType,
		CreatedAt:         e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts an expense with its allocations to an ExpenseResponse DTO
func (e *ExpenseWithAllocations) ToResponse() *ExpenseResponse {
	resp := e.Expense.ToResponse()
	resp.PaidBy = allocationResponses(e.PaidBy)
	resp.OwedBy = allocationResponses(e.OwedBy)
	return resp
}

func allocationResponses(as []*Allocation) []*AllocationResponse {
	out := make([]*AllocationResponse, len(as))
	for i, a := range as {
		out[i] = &AllocationResponse{UserID: a.UserID, Username: a.Username, Amount: a.Amount}
	}
	return out
}
