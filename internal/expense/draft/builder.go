package draft

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/expense/split"
)

// DefaultAvatarURL is used for people without an avatar.
const DefaultAvatarURL = "/static/avatars/default.png"

// Context is the roster a draft is opened from. Set Group for a group expense,
// Friend for a friend-to-friend expense, or neither for a personal expense.
type Context struct {
	CurrentUser UserRef
	Friend      *UserRef
	Group       *GroupRoster
}

// GroupRoster is a group id and its members in display order.
type GroupRoster struct {
	ID      int64
	Members []UserRef
}

// NormalizeUser fills the fields a directory record may leave empty.
func NormalizeUser(u UserRef) UserRef {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		u.Name = fmt.Sprintf("User %d", u.ID)
	}
	if strings.TrimSpace(u.AvatarURL) == "" {
		u.AvatarURL = DefaultAvatarURL
	}
	return u
}

// Build returns the initial participant list for a context. Everyone starts
// included and nobody starts as payer: the user has to pick who paid.
func Build(c Context) []Participant {
	var roster []UserRef
	switch {
	case c.Group != nil:
		roster = c.Group.Members
	case c.Friend != nil:
		roster = []UserRef{c.CurrentUser, *c.Friend}
	default:
		roster = []UserRef{c.CurrentUser}
	}

	seen := make(map[int64]bool, len(roster))
	participants := make([]Participant, 0, len(roster))
	for _, u := range roster {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		participants = append(participants, newParticipant(u))
	}
	return participants
}

// New opens a draft for the context with a zero amount, an equal split and a single payer mode.
func New(c Context) Draft {
	d := Draft{
		Amount:       decimal.Zero,
		SplitMethod:  split.SplitTypeEqual,
		Participants: Build(c),
		PayerMode:    PayerModeSingle,
	}
	switch {
	case c.Group != nil:
		d.GroupID = c.Group.ID
	case c.Friend != nil:
		d.FriendID = c.Friend.ID
	}
	return d
}

func newParticipant(u UserRef) Participant {
	return Participant{
		User:         NormalizeUser(u),
		IsIncluded:   true,
		PaidAmount:   decimal.Zero,
		Share:        decimal.Zero,
		PercentShare: decimal.Zero,
	}
}
