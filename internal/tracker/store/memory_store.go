package store

import (
	"context"
	"sync"

	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// MemoryStore keeps everything in process memory. Used by tests and local
// runs without a backing service.
type MemoryStore struct {
	mu            sync.RWMutex
	collections   map[string]map[string]*models.Item
	subscriptions []*models.Subscription
	stale         bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*models.Item),
	}
}

func (s *MemoryStore) FetchAll(_ context.Context, collection string) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*models.Item, 0, len(s.collections[collection]))
	for _, item := range s.collections[collection] {
		copied := *item
		items = append(items, &copied)
	}

	return items, nil
}

func (s *MemoryStore) Save(_ context.Context, collection string, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*models.Item)
	}

	copied := *item
	s.collections[collection][item.ID] = &copied

	return nil
}

func (s *MemoryStore) SaveRefs(_ context.Context, collection, id string, refs models.MessageRefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*models.Item)
	}

	item, ok := s.collections[collection][id]
	if !ok {
		item = &models.Item{ID: id}
		s.collections[collection][id] = item
	}

	item.Refs = refs

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)

	return nil
}

func (s *MemoryStore) FetchSubscriptions(_ context.Context) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*models.Subscription, len(s.subscriptions))
	copy(subs, s.subscriptions)

	return subs, nil
}

func (s *MemoryStore) SubscriptionsStale(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stale, nil
}

func (s *MemoryStore) MarkSubscriptionsFresh(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stale = false

	return nil
}

// SetSubscriptions replaces the subscription set and raises the stale flag.
func (s *MemoryStore) SetSubscriptions(subs []*models.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions = subs
	s.stale = true
}
