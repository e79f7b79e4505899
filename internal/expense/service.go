package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fkhayef/splitwise/internal/events"
	"github.com/fkhayef/splitwise/internal/expense/draft"
	"github.com/fkhayef/splitwise/internal/group"
	"github.com/fkhayef/splitwise/internal/metrics"
	"github.com/fkhayef/splitwise/internal/user"
)

// Common errors
var (
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrNotPayer            = errors.New("only a payer can delete this expense")
	ErrDraftNotFound       = errors.New("draft not found or expired")
	ErrNotDraftOwner       = errors.New("draft belongs to another user")
	ErrDraftSubmitting     = errors.New("draft is already being submitted")
	ErrNotGroupMember      = errors.New("user is not a member of this group")
	ErrInvalidContext      = errors.New("set either group_id or friend_id, not both")
	ErrInvalidFriend       = errors.New("cannot split an expense with yourself")
	ErrUnknownParticipant  = errors.New("participant is not part of this expense's group")
	ErrDescriptionRequired = errors.New("description is required")
	ErrDescriptionTooLong  = errors.New("description must be at most 255 characters")
	ErrInvalidDate         = errors.New("date must be formatted as YYYY-MM-DD")
)

// Repository stores submitted expenses
type Repository interface {
	CreateExpense(ctx context.Context, e *NewExpense) (int64, error)
	GetExpenseByID(ctx context.Context, id int64) (*Expense, error)
	GetAllocations(ctx context.Context, expenseID int64) (paidBy, owedBy []*Allocation, err error)
	ListExpensesByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error)
	DeleteExpense(ctx context.Context, id int64) error
}

// UserDirectory looks up people
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*user.User, error)
}

// GroupDirectory looks up group rosters
type GroupDirectory interface {
	GetByIDWithMembers(ctx context.Context, id int64) (*group.Group, []*group.GroupMember, error)
}

// Publisher announces submitted expenses
type Publisher interface {
	PublishExpenseSubmitted(ctx context.Context, msg *events.ExpenseSubmitted) error
}

// Recorder receives draft and reconciliation metrics
type Recorder interface {
	DraftEvent(eventType string)
	Reconciliation(result string)
	OpenDrafts(n int)
}

// Service handles draft editing and expense submission
type Service struct {
	repo      Repository
	users     UserDirectory
	groups    GroupDirectory
	drafts    *DraftStore
	publisher Publisher
	metrics   Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new expense service with dependencies injected.
// publisher and recorder may be nil.
func NewService(repo Repository, users UserDirectory, groups GroupDirectory, drafts *DraftStore,
	publisher Publisher, recorder Recorder, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		users:     users,
		groups:    groups,
		drafts:    drafts,
		publisher: publisher,
		metrics:   recorder,
		logger:    logger.With("component", "expense"),
		now:       time.Now,
	}
}

// OpenDraft starts a draft for the current user in a group, with a friend,
// or alone.
func (s *Service) OpenDraft(ctx context.Context, userID int64, req *OpenDraftRequest) (*Session, error) {
	if req.GroupID != nil && req.FriendID != nil {
		return nil, ErrInvalidContext
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dc := draft.Context{CurrentUser: userRef(current)}

	switch {
	case req.GroupID != nil:
		g, members, err := s.groups.GetByIDWithMembers(ctx, *req.GroupID)
		if err != nil {
			return nil, err
		}
		if !group.HasMember(members, userID) {
			return nil, ErrNotGroupMember
		}
		roster := &draft.GroupRoster{ID: g.ID, Members: make([]draft.UserRef, len(members))}
		for i, m := range members {
			roster.Members[i] = memberRef(m)
		}
		dc.Group = roster
	case req.FriendID != nil:
		if *req.FriendID == userID {
			return nil, ErrInvalidFriend
		}
		friend, err := s.users.GetByID(ctx, *req.FriendID)
		if err != nil {
			return nil, err
		}
		ref := userRef(friend)
		dc.Friend = &ref
	}

	session := s.drafts.Create(userID, draft.New(dc))
	s.metrics.OpenDrafts(s.drafts.Len())
	s.logger.DebugContext(ctx, "Draft opened",
		"draft_id", session.ID,
		"user_id", userID,
		"group_id", session.Draft.GroupID,
		"friend_id", session.Draft.FriendID,
		"participants", len(session.Draft.Participants))

	return &session, nil
}

// GetDraft returns the current state of a draft
func (s *Service) GetDraft(ctx context.Context, userID int64, draftID string) (*Session, error) {
	session, ok := s.drafts.Get(draftID)
	if !ok {
		return nil, ErrDraftNotFound
	}
	if session.OwnerID != userID {
		return nil, ErrNotDraftOwner
	}
	return &session, nil
}

// ApplyEvent applies one edit to a draft and returns the new state
func (s *Service) ApplyEvent(ctx context.Context, userID int64, draftID string, req *DraftEventRequest) (*Session, error) {
	var resolved map[int64]draft.UserRef
	if req.Type == EventSetParticipants {
		current, err := s.GetDraft(ctx, userID, draftID)
		if err != nil {
			return nil, err
		}
		resolved, err = s.resolveParticipants(ctx, current.Draft, req.UserIDs)
		if err != nil {
			return nil, err
		}
	}

	session, err := s.drafts.Update(draftID, func(sess Session) (Session, error) {
		if sess.OwnerID != userID {
			return sess, ErrNotDraftOwner
		}
		if sess.Submitting {
			return sess, ErrDraftSubmitting
		}

		var participants []draft.Participant
		if req.Type == EventSetParticipants {
			var err error
			participants, err = mergeParticipants(sess.Draft, req.UserIDs, resolved)
			if err != nil {
				return sess, err
			}
		}
		ev, err := req.ToEvent(participants)
		if err != nil {
			return sess, err
		}

		sess.Draft = draft.Apply(sess.Draft, ev)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DraftEvent(req.Type)
	s.logger.DebugContext(ctx, "Draft event applied",
		"draft_id", draftID,
		"user_id", userID,
		"type", req.Type)

	return &session, nil
}

// DiscardDraft drops a draft without storing anything
func (s *Service) DiscardDraft(ctx context.Context, userID int64, draftID string) error {
	if _, err := s.GetDraft(ctx, userID, draftID); err != nil {
		return err
	}
	s.drafts.Delete(draftID)
	s.metrics.OpenDrafts(s.drafts.Len())
	return nil
}

// PreviewDraft reconciles a draft without storing it
func (s *Service) PreviewDraft(ctx context.Context, userID int64, draftID string) (*draft.Result, error) {
	session, err := s.GetDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, session)
}

// Submit reconciles a draft, stores the expense and announces it. A draft
// rejected by reconciliation is kept so the user can fix it and retry.
func (s *Service) Submit(ctx context.Context, userID int64, draftID string, req *SubmitRequest) (*ExpenseWithAllocations, error) {
	date, err := req.normalize(s.now())
	if err != nil {
		return nil, err
	}

	session, err := s.drafts.Update(draftID, func(sess Session) (Session, error) {
		if sess.OwnerID != userID {
			return sess, ErrNotDraftOwner
		}
		if sess.Submitting {
			return sess, ErrDraftSubmitting
		}
		sess.Submitting = true
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	release := func() {
		s.drafts.Update(draftID, func(sess Session) (Session, error) {
			sess.Submitting = false
			return sess, nil
		})
	}

	result, err := s.reconcile(ctx, &session)
	if err != nil {
		release()
		return nil, err
	}

	d := session.Draft
	expense := &NewExpense{
		GroupID:     optionalID(d.GroupID),
		FriendID:    optionalID(d.FriendID),
		CreatedBy:   userID,
		Description: req.Description,
		Amount:      d.Amount,
		Category:    req.Category,
		Date:        date,
		Notes:       req.Notes,
		SplitType:   d.SplitMethod,
		PaidBy:      result.PaidBy,
		OwedBy:      result.OwedBy,
	}
	id, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		release()
		return nil, err
	}

	s.drafts.Delete(draftID)
	s.metrics.OpenDrafts(s.drafts.Len())
	s.logger.InfoContext(ctx, "Expense submitted",
		"expense_id", id,
		"draft_id", draftID,
		"user_id", userID,
		"group_id", d.GroupID,
		"method", d.SplitMethod,
		"amount", d.Amount.StringFixed(2))

	msg := &events.ExpenseSubmitted{
		ExpenseID: id,
		GroupID:   optionalID(d.GroupID),
		FriendID:  optionalID(d.FriendID),
		CreatedBy: userID,
		Amount:    d.Amount,
		SplitType: string(d.SplitMethod),
		Date:      date.Format(dateLayout),
		PaidBy:    eventShares(result.PaidBy),
		OwedBy:    eventShares(result.OwedBy),
		Timestamp: s.now().UTC(),
	}
	if err := s.publisher.PublishExpenseSubmitted(ctx, msg); err != nil {
		// The expense is stored; balances catch up on the next message.
		s.logger.ErrorContext(ctx, "Failed to publish submitted expense",
			"expense_id", id,
			"error", err)
	}

	stored, err := s.GetExpenseByID(ctx, id)
	if err != nil {
		// The draft is gone, so the caller must still learn the new id.
		s.logger.WarnContext(ctx, "Failed to read back submitted expense",
			"expense_id", id,
			"error", err)
		return expense.withID(id, s.now().UTC()), nil
	}
	return stored, nil
}

// GetExpenseByID retrieves an expense with its paid and owed rows
func (s *Service) GetExpenseByID(ctx context.Context, id int64) (*ExpenseWithAllocations, error) {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	paidBy, owedBy, err := s.repo.GetAllocations(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExpenseWithAllocations{
		Expense: expense,
		PaidBy:  paidBy,
		OwedBy:  owedBy,
	}, nil
}

// ListExpensesByGroupID retrieves expenses for a group
func (s *Service) ListExpensesByGroupID(ctx context.Context, groupID int64, page, perPage int) ([]*Expense, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListExpensesByGroupID(ctx, groupID, perPage, offset)
}

// DeleteExpense deletes an expense. Only someone who paid towards it may.
func (s *Service) DeleteExpense(ctx context.Context, id, userID int64) error {
	expense, err := s.GetExpenseByID(ctx, id)
	if err != nil {
		return err
	}

	if !expense.IsPayer(userID) {
		return ErrNotPayer
	}

	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Expense deleted", "expense_id", id, "user_id", userID)
	return nil
}

func (s *Service) reconcile(ctx context.Context, session *Session) (*draft.Result, error) {
	result, err := draft.Reconcile(session.Draft)
	if err != nil {
		var verr *draft.ValidationError
		if errors.As(err, &verr) {
			s.metrics.Reconciliation(string(verr.Kind))
			s.logger.InfoContext(ctx, "Draft rejected",
				"draft_id", session.ID,
				"user_id", session.OwnerID,
				"code", verr.Kind,
				"error", verr.Message)
			return nil, err
		}
		return nil, fmt.Errorf("failed to reconcile draft: %w", err)
	}

	s.metrics.Reconciliation(metrics.ResultOK)
	return result, nil
}

// resolveParticipants looks up the users of a set_participants event that
// are not yet in the draft. A group draft only accepts group members.
func (s *Service) resolveParticipants(ctx context.Context, d draft.Draft, ids []int64) (map[int64]draft.UserRef, error) {
	resolved := make(map[int64]draft.UserRef, len(ids))
	var missing []int64
	for _, id := range ids {
		if p, ok := d.Participant(id); ok {
			resolved[id] = p.User
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	if d.GroupID != 0 {
		_, members, err := s.groups.GetByIDWithMembers(ctx, d.GroupID)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]*group.GroupMember, len(members))
		for _, m := range members {
			byID[m.UserID] = m
		}
		for _, id := range missing {
			m, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: user %d", ErrUnknownParticipant, id)
			}
			resolved[id] = memberRef(m)
		}
		return resolved, nil
	}

	users, err := s.users.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		u, ok := users[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", user.ErrUserNotFound, id)
		}
		resolved[id] = userRef(u)
	}
	return resolved, nil
}

// mergeParticipants builds the new participant list in the requested order,
// keeping the state of people already in the draft.
func mergeParticipants(d draft.Draft, ids []int64, resolved map[int64]draft.UserRef) ([]draft.Participant, error) {
	participants := make([]draft.Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := d.Participant(id); ok {
			participants = append(participants, p)
			continue
		}
		ref, ok := resolved[id]
		if !ok {
			return nil, fmt.Errorf("%w: user %d", ErrUnknownParticipant, id)
		}
		participants = append(participants, draft.Participant{
			User:       ref,
			IsIncluded: true,
		})
	}
	return participants, nil
}

func userRef(u *user.User) draft.UserRef {
	ref := draft.UserRef{ID: u.ID, Name: u.Username}
	if u.AvatarURL != nil {
		ref.AvatarURL = *u.AvatarURL
	}
	return ref
}

func memberRef(m *group.GroupMember) draft.UserRef {
	ref := draft.UserRef{ID: m.UserID, Name: m.Username}
	if m.AvatarURL != nil {
		ref.AvatarURL = *m.AvatarURL
	}
	return ref
}

func eventShares(as []draft.Allocation) []events.Share {
	out := make([]events.Share, len(as))
	for i, a := range as {
		out[i] = events.Share{UserID: a.UserID, Amount: a.Amount}
	}
	return out
}
