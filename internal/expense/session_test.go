package expense

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/splitwise/internal/expense/draft"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(size int, ttl time.Duration) (*DraftStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewDraftStore(size, ttl)
	s.now = clock.now
	return s, clock
}

func personalDraft() draft.Draft {
	return draft.New(draft.Context{CurrentUser: draft.UserRef{ID: 1, Name: "Alice"}})
}

func TestDraftStore_CreateAndGet(t *testing.T) {
	s, _ := newTestStore(10, time.Minute)

	created := s.Create(1, personalDraft())
	_, err := uuid.Parse(created.ID)
	require.NoError(t, err)

	got, ok := s.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.OwnerID)
	assert.Equal(t, created.Draft, got.Draft)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestDraftStore_Expiry(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	created := s.Create(1, personalDraft())

	clock.advance(59 * time.Second)
	_, err := s.Update(created.ID, func(sess Session) (Session, error) { return sess, nil })
	require.NoError(t, err, "update refreshes the TTL")

	clock.advance(59 * time.Second)
	_, ok := s.Get(created.ID)
	assert.True(t, ok)

	clock.advance(2 * time.Second)
	_, ok = s.Get(created.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestDraftStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestStore(2, time.Hour)

	a := s.Create(1, personalDraft())
	b := s.Create(1, personalDraft())
	s.Get(a.ID)
	c := s.Create(1, personalDraft())

	_, ok := s.Get(b.ID)
	assert.False(t, ok)
	_, ok = s.Get(a.ID)
	assert.True(t, ok)
	_, ok = s.Get(c.ID)
	assert.True(t, ok)
}

func TestDraftStore_Update(t *testing.T) {
	s, clock := newTestStore(10, time.Hour)
	created := s.Create(1, personalDraft())
	clock.advance(time.Minute)

	updated, err := s.Update(created.ID, func(sess Session) (Session, error) {
		sess.Draft = draft.Apply(sess.Draft, draft.SetAmount{Amount: decimal.NewFromInt(40)})
		sess.OwnerID = 99
		return sess, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.OwnerID, "owner cannot change")
	assert.Equal(t, clock.t, updated.UpdatedAt)

	got, _ := s.Get(created.ID)
	assert.True(t, got.Draft.Amount.Equal(decimal.NewFromInt(40)))

	boom := errors.New("boom")
	_, err = s.Update(created.ID, func(sess Session) (Session, error) {
		sess.Draft.Amount = decimal.NewFromInt(1)
		return sess, boom
	})
	assert.ErrorIs(t, err, boom)
	got, _ = s.Get(created.ID)
	assert.True(t, got.Draft.Amount.Equal(decimal.NewFromInt(40)))

	_, err = s.Update("missing", func(sess Session) (Session, error) { return sess, nil })
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraftStore_CleanExpired(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	s.Create(1, personalDraft())
	s.Create(2, personalDraft())
	clock.advance(30 * time.Second)
	fresh := s.Create(3, personalDraft())
	clock.advance(45 * time.Second)

	assert.Equal(t, 2, s.CleanExpired())
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get(fresh.ID)
	assert.True(t, ok)

	s.Delete(fresh.ID)
	assert.Equal(t, 0, s.Len())
}
