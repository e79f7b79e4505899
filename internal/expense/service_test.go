package expense

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/splitwise/internal/expense/draft"
	"github.com/fkhayef/splitwise/internal/expense/split"
	"github.com/fkhayef/splitwise/internal/group"
	"github.com/fkhayef/splitwise/internal/user"
)

func userIDs(d draft.Draft) []int64 {
	ids := make([]int64, len(d.Participants))
	for i, p := range d.Participants {
		ids[i] = p.User.ID
	}
	return ids
}

func TestService_OpenDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("group", func(t *testing.T) {
		session, err := env.svc.OpenDraft(ctx, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})
		require.NoError(t, err)

		d := session.Draft
		assert.Equal(t, tripGroup, d.GroupID)
		assert.Equal(t, []int64{alice, bob, carol}, userIDs(d))
		assert.Equal(t, "/a.png", d.Participants[0].User.AvatarURL)
		assert.Equal(t, draft.DefaultAvatarURL, d.Participants[1].User.AvatarURL)
		assert.Equal(t, "User 3", d.Participants[2].User.Name)
		assert.Equal(t, split.SplitTypeEqual, d.SplitMethod)
		assert.Equal(t, draft.PayerModeSingle, d.PayerMode)
		assert.Empty(t, d.Payers())
	})

	t.Run("friend", func(t *testing.T) {
		session, err := env.svc.OpenDraft(ctx, alice, &OpenDraftRequest{FriendID: idPtr(bob)})
		require.NoError(t, err)
		assert.Equal(t, []int64{alice, bob}, userIDs(session.Draft))
		assert.Equal(t, bob, session.Draft.FriendID)
	})

	t.Run("personal", func(t *testing.T) {
		session, err := env.svc.OpenDraft(ctx, alice, &OpenDraftRequest{})
		require.NoError(t, err)
		assert.Equal(t, []int64{alice}, userIDs(session.Draft))
		assert.True(t, session.Draft.IsPersonal())
	})

	assert.Equal(t, 3, env.metrics.open)

	tests := []struct {
		name   string
		userID int64
		req    *OpenDraftRequest
		want   error
	}{
		{name: "not a member", userID: dave, req: &OpenDraftRequest{GroupID: idPtr(tripGroup)}, want: ErrNotGroupMember},
		{name: "unknown group", userID: alice, req: &OpenDraftRequest{GroupID: idPtr(99)}, want: group.ErrGroupNotFound},
		{name: "self as friend", userID: alice, req: &OpenDraftRequest{FriendID: idPtr(alice)}, want: ErrInvalidFriend},
		{name: "unknown friend", userID: alice, req: &OpenDraftRequest{FriendID: idPtr(77)}, want: user.ErrUserNotFound},
		{name: "both contexts", userID: alice, req: &OpenDraftRequest{GroupID: idPtr(tripGroup), FriendID: idPtr(bob)}, want: ErrInvalidContext},
		{name: "unknown current user", userID: 55, req: &OpenDraftRequest{}, want: user.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.OpenDraft(ctx, tt.userID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_ApplyEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.open(t, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})

	session := env.apply(t, alice, id,
		DraftEventRequest{Type: EventSetAmount, Amount: amount("100")},
		DraftEventRequest{Type: EventSelectPayer, UserID: bob},
	)

	d := session.Draft
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(100)))
	payer, ok := d.Participant(bob)
	require.True(t, ok)
	assert.True(t, payer.IsPayer)
	assert.Equal(t, "100.00", payer.PaidAmount.StringFixed(2))
	assert.False(t, draft.Check(d).PayerMismatch)
	assert.Equal(t, 1, env.metrics.events[EventSetAmount])
	assert.Equal(t, 1, env.metrics.events[EventSelectPayer])

	stored, err := env.svc.GetDraft(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, d, stored.Draft)

	t.Run("other user", func(t *testing.T) {
		_, err := env.svc.ApplyEvent(ctx, bob, id, &DraftEventRequest{Type: EventSelectPayer, UserID: bob})
		assert.ErrorIs(t, err, ErrNotDraftOwner)
		_, err = env.svc.GetDraft(ctx, bob, id)
		assert.ErrorIs(t, err, ErrNotDraftOwner)
	})

	t.Run("bad events leave the draft alone", func(t *testing.T) {
		bad := []DraftEventRequest{
			{Type: "explode"},
			{Type: EventSetAmount},
			{Type: EventSetAmount, Amount: amount("-5")},
			{Type: EventSetAmount, Amount: amount("10.005")},
			{Type: EventSetSplitMethod, Method: "thirds"},
			{Type: EventSetPayerMode, Mode: "everyone"},
			{Type: EventSelectPayer},
		}
		for _, req := range bad {
			req := req
			_, err := env.svc.ApplyEvent(ctx, alice, id, &req)
			require.Error(t, err, req.Type)
			assert.True(t, errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrUnknownEventType), req.Type)
		}

		stored, err := env.svc.GetDraft(ctx, alice, id)
		require.NoError(t, err)
		assert.Equal(t, d, stored.Draft)
	})

	t.Run("missing draft", func(t *testing.T) {
		_, err := env.svc.ApplyEvent(ctx, alice, "nope", &DraftEventRequest{Type: EventSetAmount, Amount: amount("1")})
		assert.ErrorIs(t, err, ErrDraftNotFound)
	})
}

func TestService_SetParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("group keeps existing state", func(t *testing.T) {
		id := env.open(t, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})
		env.apply(t, alice, id,
			DraftEventRequest{Type: EventSetAmount, Amount: amount("90")},
			DraftEventRequest{Type: EventSelectPayer, UserID: carol},
			DraftEventRequest{Type: EventToggleParticipant, UserID: bob},
		)

		session := env.apply(t, alice, id, DraftEventRequest{Type: EventSetParticipants, UserIDs: []int64{carol, alice}})
		d := session.Draft
		assert.Equal(t, []int64{carol, alice}, userIDs(d))
		assert.True(t, d.Participants[0].IsPayer)
		assert.Equal(t, "45.00", d.Participants[0].Share.StringFixed(2))

		session = env.apply(t, alice, id, DraftEventRequest{Type: EventSetParticipants, UserIDs: []int64{carol, alice, bob}})
		p, _ := session.Draft.Participant(bob)
		assert.True(t, p.IsIncluded, "re-added members start included")
		assert.Equal(t, "bob", p.User.Name)

		_, err := env.svc.ApplyEvent(ctx, alice, id, &DraftEventRequest{Type: EventSetParticipants, UserIDs: []int64{alice, dave}})
		assert.ErrorIs(t, err, ErrUnknownParticipant)
	})

	t.Run("friend draft looks users up", func(t *testing.T) {
		id := env.open(t, alice, &OpenDraftRequest{FriendID: idPtr(bob)})

		session := env.apply(t, alice, id, DraftEventRequest{Type: EventSetParticipants, UserIDs: []int64{alice, bob, dave}})
		assert.Equal(t, []int64{alice, bob, dave}, userIDs(session.Draft))

		_, err := env.svc.ApplyEvent(ctx, alice, id, &DraftEventRequest{Type: EventSetParticipants, UserIDs: []int64{alice, 404}})
		assert.ErrorIs(t, err, user.ErrUserNotFound)
	})
}

func TestService_SubmitEqualSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.open(t, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})
	env.apply(t, alice, id,
		DraftEventRequest{Type: EventSetAmount, Amount: amount("100.00")},
		DraftEventRequest{Type: EventSelectPayer, UserID: alice},
	)

	preview, err := env.svc.PreviewDraft(ctx, alice, id)
	require.NoError(t, err)

	result, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "  Dinner  ", Category: "Food", Notes: strPtr(" ")})
	require.NoError(t, err)

	e := result.Expense
	assert.Equal(t, "Dinner", e.Description)
	assert.Equal(t, "food", e.Category)
	assert.Nil(t, e.Notes)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), e.Date)
	assert.Equal(t, tripGroup, *e.GroupID)
	assert.Nil(t, e.FriendID)
	assert.Equal(t, split.SplitTypeEqual, e.SplitType)

	require.Len(t, result.OwedBy, 3)
	owed := []string{}
	for i, a := range result.OwedBy {
		owed = append(owed, a.Amount.StringFixed(2))
		assert.True(t, a.Amount.Equal(preview.OwedBy[i].Amount))
	}
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, owed)
	require.Len(t, result.PaidBy, 1)
	assert.Equal(t, "alice", result.PaidBy[0].Username)

	require.Len(t, env.publisher.sent, 1)
	msg := env.publisher.sent[0]
	assert.Equal(t, e.ID, msg.ExpenseID)
	assert.Equal(t, "2024-05-01", msg.Date)
	assert.Equal(t, "EQUAL", msg.SplitType)
	assert.Len(t, msg.OwedBy, 3)

	_, err = env.svc.GetDraft(ctx, alice, id)
	assert.ErrorIs(t, err, ErrDraftNotFound, "submitted drafts are dropped")
	assert.Equal(t, 2, env.metrics.reconciliations["ok"])
	assert.Equal(t, 0, env.metrics.open)
}

func TestService_SubmitRejectedThenFixed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.open(t, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})
	env.apply(t, alice, id,
		DraftEventRequest{Type: EventSetAmount, Amount: amount("100")},
		DraftEventRequest{Type: EventSetPayerMode, Mode: "multiple"},
		DraftEventRequest{Type: EventSelectPayer, UserID: alice},
		DraftEventRequest{Type: EventSelectPayer, UserID: bob},
		DraftEventRequest{Type: EventSetPayerAmount, UserID: alice, Value: "30"},
		DraftEventRequest{Type: EventSetPayerAmount, UserID: bob, Value: "30"},
	)

	_, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Hotel"})
	require.Error(t, err)
	assert.ErrorIs(t, err, draft.ErrPayerAmountMismatch)
	var verr *draft.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "60.00", verr.Actual.StringFixed(2))
	assert.Equal(t, 1, env.metrics.reconciliations[string(draft.KindPayerAmountMismatch)])
	assert.Empty(t, env.publisher.sent)

	// The draft survives and can be fixed.
	env.apply(t, alice, id, DraftEventRequest{Type: EventSetPayerAmount, UserID: bob, Value: "70"})
	result, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Hotel"})
	require.NoError(t, err)
	assert.Len(t, result.PaidBy, 2)
	assert.Len(t, env.publisher.sent, 1)
}

func TestService_SubmitPersonalExpense(t *testing.T) {
	env := newTestEnv(t)
	id := env.open(t, alice, &OpenDraftRequest{})
	env.apply(t, alice, id,
		DraftEventRequest{Type: EventSetAmount, Amount: amount("40.00")},
		DraftEventRequest{Type: EventSelectPayer, UserID: alice},
	)

	result, err := env.svc.Submit(context.Background(), alice, id, &SubmitRequest{Description: "Books", Date: "2024-04-20"})
	require.NoError(t, err)

	require.Len(t, result.OwedBy, 1)
	assert.Equal(t, alice, result.OwedBy[0].UserID)
	assert.Equal(t, "40.00", result.OwedBy[0].Amount.StringFixed(2))
	assert.Nil(t, result.Expense.GroupID)
	assert.Equal(t, "2024-04-20", result.Expense.Date.Format("2006-01-02"))
}

func TestService_SubmitRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	id := env.open(t, alice, &OpenDraftRequest{})
	env.apply(t, alice, id,
		DraftEventRequest{Type: EventSetAmount, Amount: amount("10")},
		DraftEventRequest{Type: EventSelectPayer, UserID: alice},
	)

	long := make([]rune, 256)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{name: "empty description", req: SubmitRequest{Description: "   "}, want: ErrDescriptionRequired},
		{name: "long description", req: SubmitRequest{Description: string(long)}, want: ErrDescriptionTooLong},
		{name: "bad date", req: SubmitRequest{Description: "Lunch", Date: "01/05/2024"}, want: ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.svc.Submit(context.Background(), alice, id, &req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := env.svc.GetDraft(context.Background(), alice, id)
	assert.NoError(t, err)
}

func TestService_SubmitFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("storage failure keeps the draft", func(t *testing.T) {
		env := newTestEnv(t)
		env.repo.createErr = errBoom
		id := env.open(t, alice, &OpenDraftRequest{})
		env.apply(t, alice, id,
			DraftEventRequest{Type: EventSetAmount, Amount: amount("10")},
			DraftEventRequest{Type: EventSelectPayer, UserID: alice},
		)

		_, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Taxi"})
		assert.ErrorIs(t, err, errBoom)

		session, err := env.svc.GetDraft(ctx, alice, id)
		require.NoError(t, err)
		assert.False(t, session.Submitting)

		env.repo.createErr = nil
		_, err = env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Taxi"})
		assert.NoError(t, err)
	})

	t.Run("publish failure does not fail the submission", func(t *testing.T) {
		env := newTestEnv(t)
		env.publisher.err = errBoom
		id := env.open(t, alice, &OpenDraftRequest{FriendID: idPtr(bob)})
		env.apply(t, alice, id,
			DraftEventRequest{Type: EventSetAmount, Amount: amount("10")},
			DraftEventRequest{Type: EventSelectPayer, UserID: bob},
		)

		result, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Coffee"})
		require.NoError(t, err)
		assert.Equal(t, bob, *result.Expense.FriendID)
		require.Len(t, result.OwedBy, 1, "a lone payer outside a group settles with themselves")
		assert.Equal(t, bob, result.OwedBy[0].UserID)
	})

	t.Run("read-back failure still reports the stored expense", func(t *testing.T) {
		env := newTestEnv(t)
		env.repo.getErr = errBoom
		id := env.open(t, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})
		env.apply(t, alice, id,
			DraftEventRequest{Type: EventSetAmount, Amount: amount("100")},
			DraftEventRequest{Type: EventSelectPayer, UserID: alice},
		)

		result, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Dinner"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Expense.ID)
		assert.Equal(t, "Dinner", result.Expense.Description)
		assert.Equal(t, tripGroup, *result.Expense.GroupID)
		require.Len(t, result.PaidBy, 1)
		assert.Equal(t, alice, result.PaidBy[0].UserID)
		require.Len(t, result.OwedBy, 3)
		assert.Equal(t, "33.34", result.OwedBy[2].Amount.StringFixed(2))

		assert.Len(t, env.publisher.sent, 1)
		_, err = env.svc.GetDraft(ctx, alice, id)
		assert.ErrorIs(t, err, ErrDraftNotFound)
	})

	t.Run("submission in flight", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.open(t, alice, &OpenDraftRequest{})
		_, err := env.drafts.Update(id, func(s Session) (Session, error) {
			s.Submitting = true
			return s, nil
		})
		require.NoError(t, err)

		_, err = env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Taxi"})
		assert.ErrorIs(t, err, ErrDraftSubmitting)
		_, err = env.svc.ApplyEvent(ctx, alice, id, &DraftEventRequest{Type: EventSetAmount, Amount: amount("1")})
		assert.ErrorIs(t, err, ErrDraftSubmitting)
	})

	t.Run("other user", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.open(t, alice, &OpenDraftRequest{})
		_, err := env.svc.Submit(ctx, bob, id, &SubmitRequest{Description: "Taxi"})
		assert.ErrorIs(t, err, ErrNotDraftOwner)
	})
}

func TestService_DiscardDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.open(t, alice, &OpenDraftRequest{})

	assert.ErrorIs(t, env.svc.DiscardDraft(ctx, bob, id), ErrNotDraftOwner)
	require.NoError(t, env.svc.DiscardDraft(ctx, alice, id))
	assert.ErrorIs(t, env.svc.DiscardDraft(ctx, alice, id), ErrDraftNotFound)
}

func TestService_DeleteExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.open(t, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})
	env.apply(t, alice, id,
		DraftEventRequest{Type: EventSetAmount, Amount: amount("30")},
		DraftEventRequest{Type: EventSelectPayer, UserID: bob},
	)
	result, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: "Museum"})
	require.NoError(t, err)
	expenseID := result.Expense.ID

	assert.ErrorIs(t, env.svc.DeleteExpense(ctx, expenseID, alice), ErrNotPayer)
	require.NoError(t, env.svc.DeleteExpense(ctx, expenseID, bob))
	assert.ErrorIs(t, env.svc.DeleteExpense(ctx, expenseID, bob), ErrExpenseNotFound)
}

func TestService_ListExpensesByGroupID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, desc := range []string{"one", "two", "three"} {
		id := env.open(t, alice, &OpenDraftRequest{GroupID: idPtr(tripGroup)})
		env.apply(t, alice, id,
			DraftEventRequest{Type: EventSetAmount, Amount: amount("9")},
			DraftEventRequest{Type: EventSelectPayer, UserID: alice},
		)
		_, err := env.svc.Submit(ctx, alice, id, &SubmitRequest{Description: desc})
		require.NoError(t, err)
	}

	expenses, total, err := env.svc.ListExpensesByGroupID(ctx, tripGroup, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, expenses, 2)
	assert.Equal(t, "three", expenses[0].Description)

	expenses, _, err = env.svc.ListExpensesByGroupID(ctx, tripGroup, 0, 0)
	require.NoError(t, err)
	assert.Len(t, expenses, 3)
}
