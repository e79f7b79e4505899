package draft

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/split"
)

// Event is one user edit of a draft.
type Event interface {
	// Name identifies the event kind, e.g. "select_payer".
	Name() string
	apply(d *Draft)
}

// Apply returns the draft that results from applying ev to d. d itself is not modified.
func Apply(d Draft, ev Event) Draft {
	next := d.clone()
	ev.apply(&next)
	return next
}

// ApplyAll applies events in order.
func ApplyAll(d Draft, events ...Event) Draft {
	for _, ev := range events {
		d = Apply(d, ev)
	}
	return d
}

// SetAmount changes the expense total.
type SetAmount struct {
	Amount decimal.Decimal
}

// SetParticipants replaces the participant list.
type SetParticipants struct {
	Participants []Participant
}

// SetSplitMethod switches between equal, exact and percentage splits.
type SetSplitMethod struct {
	Method split.SplitType
}

// SetPayerMode switches between a single payer and multiple payers.
type SetPayerMode struct {
	Mode PayerMode
}

// SelectPayer picks (single mode) or toggles (multiple mode) a payer.
type SelectPayer struct {
	UserID int64
}

// SetPayerAmount sets what one payer contributed. Value is the raw user input.
type SetPayerAmount struct {
	UserID int64
	Value  string
}

// ToggleParticipant includes or excludes a participant from the split.
type ToggleParticipant struct {
	UserID int64
}

// SetShare sets an exact amount or a percentage for one participant,
// depending on the split method. Value is the raw user input.
type SetShare struct {
	UserID int64
	Value  string
}

func (SetAmount) Name() string         { return "set_amount" }
func (SetParticipants) Name() string   { return "set_participants" }
func (SetSplitMethod) Name() string    { return "set_split_method" }
func (SetPayerMode) Name() string      { return "set_payer_mode" }
func (SelectPayer) Name() string       { return "select_payer" }
func (SetPayerAmount) Name() string    { return "set_payer_amount" }
func (ToggleParticipant) Name() string { return "toggle_participant" }
func (SetShare) Name() string          { return "set_share" }

func (e SetAmount) apply(d *Draft)         { changeAmount(d, e.Amount) }
func (e SetParticipants) apply(d *Draft)   { replaceParticipants(d, e.Participants) }
func (e SetSplitMethod) apply(d *Draft)    { setMethod(d, e.Method) }
func (e SetPayerMode) apply(d *Draft)      { switchMode(d, e.Mode) }
func (e SelectPayer) apply(d *Draft)       { selectPayer(d, e.UserID) }
func (e SetPayerAmount) apply(d *Draft)    { setPayerAmount(d, e.UserID, e.Value) }
func (e ToggleParticipant) apply(d *Draft) { toggleParticipant(d, e.UserID) }
func (e SetShare) apply(d *Draft)          { setShare(d, e.UserID, e.Value) }

// changeAmount updates the total and everything derived from it.
func changeAmount(d *Draft, amount decimal.Decimal) {
	d.Amount = amount
	syncPayersToAmount(d)
	refreshShares(d)
}

func replaceParticipants(d *Draft, participants []Participant) {
	seen := make(map[int64]bool, len(participants))
	next := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if seen[p.User.ID] {
			continue
		}
		seen[p.User.ID] = true
		p.User = NormalizeUser(p.User)
		if !p.IsPayer {
			p.PaidAmount = decimal.Zero
		}
		next = append(next, p)
	}
	d.Participants = next

	if d.indexOf(d.SinglePayerID) < 0 {
		d.SinglePayerID = 0
	}
	recomputeShares(d)
}

// parseInput turns raw user input into a number. Anything that does not parse is zero.
func parseInput(raw string) decimal.Decimal {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
