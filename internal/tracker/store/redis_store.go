package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dealwatch/dealwatch/internal/domain/models"
)

const (
	subscriptionKeyPrefix   = "alerts:"
	subscriptionRefreshKey  = "alerts-refresh"
	subscriptionScanPattern = subscriptionKeyPrefix + "*"
)

// RedisStore keeps items as JSON documents under "collection:id" keys and
// keyword subscriptions as per-source documents under "alerts:<source>".
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisStore(ctx context.Context, redisURL, password string, db int, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	logger.Info("connected to redis", "db", db)

	return &RedisStore{client: client, logger: logger}, nil
}

func itemKey(collection, id string) string {
	return collection + ":" + id
}

func (s *RedisStore) FetchAll(ctx context.Context, collection string) ([]*models.Item, error) {
	var (
		items  []*models.Item
		cursor uint64
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, collection+":*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning collection %s: %w", collection, err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue
			}

			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", key, err)
			}

			item := &models.Item{}
			if err := json.Unmarshal(data, item); err != nil {
				s.logger.Warn("skipping undecodable item document", "key", key, "error", err)
				continue
			}

			items = append(items, item)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return items, nil
}

func (s *RedisStore) Save(ctx context.Context, collection string, item *models.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding item %s: %w", item.ID, err)
	}

	if err := s.client.Set(ctx, itemKey(collection, item.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("saving item %s: %w", item.ID, err)
	}

	return nil
}

// SaveRefs rewrites only the message refs. A missing document gets a stub
// holding the id and refs, matching merge-upsert semantics.
func (s *RedisStore) SaveRefs(ctx context.Context, collection, id string, refs models.MessageRefs) error {
	key := itemKey(collection, id)

	item := &models.Item{ID: id}

	data, err := s.client.Get(ctx, key).Bytes()

	switch {
	case err == redis.Nil:
	case err != nil:
		return fmt.Errorf("reading item %s: %w", id, err)
	default:
		if err := json.Unmarshal(data, item); err != nil {
			return fmt.Errorf("decoding item %s: %w", id, err)
		}
	}

	item.Refs = refs

	updated, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding item %s: %w", id, err)
	}

	if err := s.client.Set(ctx, key, updated, 0).Err(); err != nil {
		return fmt.Errorf("saving refs for %s: %w", id, err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.Del(ctx, itemKey(collection, id)).Err(); err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}

	return nil
}

func (s *RedisStore) FetchSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	var (
		subs   []*models.Subscription
		cursor uint64
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, subscriptionScanPattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning subscriptions: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue
			}

			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", key, err)
			}

			var sourceSubs []*models.Subscription
			if err := json.Unmarshal(data, &sourceSubs); err != nil {
				s.logger.Warn("skipping undecodable subscription document", "key", key, "error", err)
				continue
			}

			subs = append(subs, sourceSubs...)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return subs, nil
}

func (s *RedisStore) SubscriptionsStale(ctx context.Context) (bool, error) {
	exists, err := s.client.Exists(ctx, subscriptionRefreshKey).Result()
	if err != nil {
		return false, fmt.Errorf("checking subscription refresh flag: %w", err)
	}

	return exists > 0, nil
}

func (s *RedisStore) MarkSubscriptionsFresh(ctx context.Context) error {
	if err := s.client.Del(ctx, subscriptionRefreshKey).Err(); err != nil {
		return fmt.Errorf("clearing subscription refresh flag: %w", err)
	}

	return nil
}
