package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// Snapshot is the long-lived in-memory cache of one collection's items. It
// is populated from the store once per process lifetime and then owned
// exclusively by the active cycle; an out-of-band edit to the store is not
// seen until restart.
type Snapshot struct {
	collection *Collection
	logger     *slog.Logger

	mu     sync.Mutex
	loaded bool
	items  map[string]*models.Item
}

func NewSnapshot(collection *Collection, logger *slog.Logger) *Snapshot {
	return &Snapshot{
		collection: collection,
		logger:     logger,
		items:      make(map[string]*models.Item),
	}
}

// Load populates the cache from the store on first call; later calls are
// no-ops.
func (s *Snapshot) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	items, err := s.collection.FetchAll(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		s.items[item.ID] = item
	}

	s.loaded = true
	s.logger.Info("baseline snapshot loaded",
		"collection", s.collection.Name(),
		"items", len(items),
	)

	return nil
}

func (s *Snapshot) Get(id string) (*models.Item, bool) {
	item, ok := s.items[id]
	return item, ok
}

func (s *Snapshot) Put(item *models.Item) {
	s.items[item.ID] = item
}

func (s *Snapshot) Remove(id string) {
	delete(s.items, id)
}

func (s *Snapshot) All() []*models.Item {
	all := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, item)
	}

	return all
}

func (s *Snapshot) Len() int {
	return len(s.items)
}
