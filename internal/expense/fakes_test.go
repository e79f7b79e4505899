package expense

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitwise/internal/events"
	"github.com/fkhayef/splitwise/internal/expense/draft"
	"github.com/fkhayef/splitwise/internal/group"
	"github.com/fkhayef/splitwise/internal/user"
)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
	dave  int64 = 4

	tripGroup int64 = 10
)

func strPtr(s string) *string { return &s }

type fakeUsers struct {
	users map[int64]*user.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]*user.User{
		alice: {ID: alice, Username: "alice", AvatarURL: strPtr("/a.png")},
		bob:   {ID: bob, Username: "bob"},
		carol: {ID: carol, Username: "carol"},
		dave:  {ID: dave, Username: "dave"},
	}}
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByIDs(ctx context.Context, ids []int64) (map[int64]*user.User, error) {
	out := make(map[int64]*user.User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeGroups struct {
	members map[int64][]*group.GroupMember
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{members: map[int64][]*group.GroupMember{
		tripGroup: {
			{GroupID: tripGroup, UserID: alice, Username: "alice", AvatarURL: strPtr("/a.png")},
			{GroupID: tripGroup, UserID: bob, Username: "bob"},
			{GroupID: tripGroup, UserID: carol, Username: ""},
		},
	}}
}

func (f *fakeGroups) GetByIDWithMembers(ctx context.Context, id int64) (*group.Group, []*group.GroupMember, error) {
	members, ok := f.members[id]
	if !ok {
		return nil, nil, group.ErrGroupNotFound
	}
	return &group.Group{ID: id, Name: "Trip"}, members, nil
}

type fakeRepo struct {
	mu        sync.Mutex
	users     *fakeUsers
	nextID    int64
	expenses  map[int64]*Expense
	paid      map[int64][]*Allocation
	owed      map[int64][]*Allocation
	createErr error
	getErr    error
}

func newFakeRepo(users *fakeUsers) *fakeRepo {
	return &fakeRepo{
		users:    users,
		expenses: make(map[int64]*Expense),
		paid:     make(map[int64][]*Allocation),
		owed:     make(map[int64][]*Allocation),
	}
}

func (r *fakeRepo) CreateExpense(ctx context.Context, e *NewExpense) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return 0, r.createErr
	}
	r.nextID++
	id := r.nextID
	r.expenses[id] = &Expense{
		ID:                id,
		GroupID:           e.GroupID,
		FriendID:          e.FriendID,
		CreatedBy:         e.CreatedBy,
		Description:       e.Description,
		Amount:            e.Amount,
		Category:          e.Category,
		Date:              e.Date,
		Notes:             e.Notes,
		SplitType:         e.SplitType,
		CreatedAt:         time.Now(),
		CreatedByUsername: r.users.users[e.CreatedBy].Username,
	}
	r.paid[id] = r.rows(e.PaidBy)
	r.owed[id] = r.rows(e.OwedBy)
	return id, nil
}

func (r *fakeRepo) rows(as []draft.Allocation) []*Allocation {
	out := make([]*Allocation, len(as))
	for i, a := range as {
		out[i] = &Allocation{UserID: a.UserID, Amount: a.Amount, Username: r.users.users[a.UserID].Username}
	}
	return out
}

func (r *fakeRepo) GetExpenseByID(ctx context.Context, id int64) (*Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.expenses[id], nil
}

func (r *fakeRepo) GetAllocations(ctx context.Context, expenseID int64) ([]*Allocation, []*Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paid[expenseID], r.owed[expenseID], nil
}

func (r *fakeRepo) ListExpensesByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*Expense
	for _, e := range r.expenses {
		if e.GroupID != nil && *e.GroupID == groupID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *fakeRepo) DeleteExpense(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.expenses[id]; !ok {
		return ErrExpenseNotFound
	}
	delete(r.expenses, id)
	delete(r.paid, id)
	delete(r.owed, id)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []*events.ExpenseSubmitted
	err  error
}

func (p *fakePublisher) PublishExpenseSubmitted(ctx context.Context, msg *events.ExpenseSubmitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type fakeRecorder struct {
	mu              sync.Mutex
	events          map[string]int
	reconciliations map[string]int
	open            int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{events: map[string]int{}, reconciliations: map[string]int{}}
}

func (r *fakeRecorder) DraftEvent(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[t]++
}

func (r *fakeRecorder) Reconciliation(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciliations[result]++
}

func (r *fakeRecorder) OpenDrafts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = n
}

var today = time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)

type testEnv struct {
	svc       *Service
	repo      *fakeRepo
	drafts    *DraftStore
	publisher *fakePublisher
	metrics   *fakeRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUsers()
	env := &testEnv{
		repo:      newFakeRepo(users),
		drafts:    NewDraftStore(100, time.Hour),
		publisher: &fakePublisher{},
		metrics:   newFakeRecorder(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = NewService(env.repo, users, newFakeGroups(), env.drafts, env.publisher, env.metrics, logger)
	env.svc.now = func() time.Time { return today }
	return env
}

func (e *testEnv) open(t *testing.T, userID int64, req *OpenDraftRequest) string {
	t.Helper()
	session, err := e.svc.OpenDraft(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("open draft: %v", err)
	}
	return session.ID
}

func (e *testEnv) apply(t *testing.T, userID int64, id string, reqs ...DraftEventRequest) *Session {
	t.Helper()
	var session *Session
	for _, req := range reqs {
		req := req
		var err error
		session, err = e.svc.ApplyEvent(context.Background(), userID, id, &req)
		if err != nil {
			t.Fatalf("apply %s: %v", req.Type, err)
		}
	}
	return session
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func idPtr(id int64) *int64 { return &id }

var errBoom = errors.New("boom")
