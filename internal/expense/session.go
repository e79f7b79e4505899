package expense

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/splitwise/internal/expense/draft"
)

// DraftStore keeps open drafts in memory. Entries expire after ttl without
// an update, and the least recently used entry is evicted once maxSize is
// exceeded.
type DraftStore struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
}

type storeItem struct {
	session   Session
	expiresAt time.Time
}

// NewDraftStore creates an empty store
func NewDraftStore(maxSize int, ttl time.Duration) *DraftStore {
	return &DraftStore{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Create stores d under a new random ID owned by ownerID.
func (s *DraftStore) Create(ownerID int64, d draft.Draft) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	session := Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Draft:     d,
		UpdatedAt: now,
	}

	elem := s.lru.PushFront(&storeItem{session: session, expiresAt: now.Add(s.ttl)})
	s.items[session.ID] = elem

	if s.lru.Len() > s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	return session
}

// Get returns the session with the given ID.
func (s *DraftStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.lookup(id)
	if !ok {
		return Session{}, false
	}
	s.lru.MoveToFront(elem)
	return elem.Value.(*storeItem).session, true
}

// Update replaces the session with the result of fn, all under the store
// lock. If fn fails the stored session is left as it was.
func (s *DraftStore) Update(id string, fn func(Session) (Session, error)) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.lookup(id)
	if !ok {
		return Session{}, ErrDraftNotFound
	}
	item := elem.Value.(*storeItem)

	next, err := fn(item.session)
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	next.ID = item.session.ID
	next.OwnerID = item.session.OwnerID
	next.UpdatedAt = now
	item.session = next
	item.expiresAt = now.Add(s.ttl)
	s.lru.MoveToFront(elem)
	return next, nil
}

// Delete removes a session
func (s *DraftStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[id]; ok {
		s.removeElement(elem)
	}
}

// Len returns the number of stored sessions, expired ones included until
// they are cleaned.
func (s *DraftStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CleanExpired removes all expired sessions and returns how many it removed
func (s *DraftStore) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var toRemove []*list.Element
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*storeItem).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		s.removeElement(elem)
	}
	return len(toRemove)
}

// RunCleanup calls CleanExpired every interval until ctx is done. onClean,
// if set, is called with the store size after each pass.
func (s *DraftStore) RunCleanup(ctx context.Context, interval time.Duration, onClean func(size int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanExpired()
			if onClean != nil {
				onClean(s.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *DraftStore) lookup(id string) (*list.Element, bool) {
	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if s.now().After(elem.Value.(*storeItem).expiresAt) {
		s.removeElement(elem)
		return nil, false
	}
	return elem, true
}

func (s *DraftStore) removeElement(elem *list.Element) {
	item := elem.Value.(*storeItem)
	delete(s.items, item.session.ID)
	s.lru.Remove(elem)
}
