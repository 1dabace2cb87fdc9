package casereport

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/diabcrf/crf/internal/platform/form"
)

var (
	ErrNotFound         = errors.New("draft not found")
	ErrSubmitInProgress = errors.New("draft is being submitted")
	ErrNotAtLastSection = errors.New("submit is only allowed from the last section")
)

// Draft is one user's open wizard. All access goes through mu, so edits to
// a draft apply in arrival order.
type Draft struct {
	ID        uuid.UUID
	Owner     uuid.UUID
	CreatedAt time.Time

	mu         sync.Mutex
	wizard     *form.Wizard
	submitting bool
	updatedAt  time.Time
}

// DraftStore keeps open drafts in memory. Drafts idle for longer than the
// TTL are dropped, and the oldest ones go first when the store is full.
type DraftStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[uuid.UUID, *Draft]
}

func NewDraftStore(capacity int, ttl time.Duration) *DraftStore {
	return &DraftStore{cache: expirable.NewLRU[uuid.UUID, *Draft](capacity, nil, ttl)}
}

func (s *DraftStore) Add(d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(d.ID, d)
}

// Get returns the draft only to its owner. Other users get ErrNotFound, the
// same as for a draft that never existed.
func (s *DraftStore) Get(owner, id uuid.UUID) (*Draft, error) {
	d, ok := s.cache.Get(id)
	if !ok || d.Owner != owner {
		return nil, ErrNotFound
	}
	return d, nil
}

// Touch restarts the draft's idle timer if it is still stored.
func (s *DraftStore) Touch(d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cache.Peek(d.ID); ok && cur == d {
		s.cache.Add(d.ID, d)
	}
}

func (s *DraftStore) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
}

// Len is the number of open drafts.
func (s *DraftStore) Len() int {
	return s.cache.Len()
}
