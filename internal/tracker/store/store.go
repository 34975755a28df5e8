package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// Store is the durable document store behind the baseline snapshot. Items
// live in named collections keyed by item id. Timestamps round-trip through
// the backend's serialized form; implementations convert on read.
type Store interface {
	FetchAll(ctx context.Context, collection string) ([]*models.Item, error)
	Save(ctx context.Context, collection string, item *models.Item) error
	// SaveRefs merge-upserts only the message refs of an item, leaving the
	// rest of the document untouched.
	SaveRefs(ctx context.Context, collection, id string, refs models.MessageRefs) error
	Delete(ctx context.Context, collection, id string) error

	FetchSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	SubscriptionsStale(ctx context.Context) (bool, error)
	MarkSubscriptionsFresh(ctx context.Context) error
}

// Collection binds a Store to one collection name so the core does not carry
// the name through every call.
type Collection struct {
	store Store
	name  string
}

func NewCollection(store Store, name string) *Collection {
	return &Collection{store: store, name: name}
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) FetchAll(ctx context.Context) ([]*models.Item, error) {
	return c.store.FetchAll(ctx, c.name)
}

func (c *Collection) Save(ctx context.Context, item *models.Item) error {
	return c.store.Save(ctx, c.name, item)
}

func (c *Collection) SaveRefs(ctx context.Context, id string, refs models.MessageRefs) error {
	return c.store.SaveRefs(ctx, c.name, id, refs)
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}

// NewStore selects the backend from config. The Postgres pool is only
// required when STORE_TYPE is POSTGRES.
func NewStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (Store, error) {
	switch cfg.StoreType {
	case config.RedisStore:
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB, logger)
	case config.PostgresStore:
		if pool == nil {
			return nil, &errors.ErrUnknownStoreType{StoreType: "POSTGRES without database connection"}
		}

		return NewPostgresStore(pool, logger), nil
	case config.MemoryStore:
		return NewMemoryStore(), nil
	default:
		return nil, &errors.ErrUnknownStoreType{StoreType: string(cfg.StoreType)}
	}
}
