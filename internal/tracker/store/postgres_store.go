package store

import (
	"context"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// PostgresStore persists items in a single table keyed by (collection, id).
type PostgresStore struct {
	pool   *pgxpool.Pool
	sq     sq.StatementBuilderType
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		sq:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

var itemColumns = []string{
	"id", "source", "kind", "title", "dealer_name", "tag", "score", "comments",
	"link", "sub_kind", "created_at", "touched_at", "is_hot", "expiry_at",
	"primary_ref", "hot_ref",
}

func (s *PostgresStore) FetchAll(ctx context.Context, collection string) ([]*models.Item, error) {
	selectQuery := s.sq.Select(itemColumns...).
		From("items").
		Where(sq.Eq{"collection": collection})

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, &errors.ErrBuildSQLQuery{Operation: "fetching collection", Cause: err}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &errors.ErrSQLExecution{Operation: "fetching collection", Cause: err}
	}
	defer rows.Close()

	var items []*models.Item

	for rows.Next() {
		item := &models.Item{}

		err := rows.Scan(
			&item.ID, &item.Source, &item.Kind, &item.Title, &item.DealerName,
			&item.Tag, &item.Score, &item.Comments, &item.Link, &item.SubKind,
			&item.CreatedAt, &item.TouchedAt, &item.IsHot, &item.ExpiryAt,
			&item.Refs.Primary, &item.Refs.Hot,
		)
		if err != nil {
			return nil, &errors.ErrSQLScan{Entity: "item", Cause: err}
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, &errors.ErrSQLExecution{Operation: "iterating collection rows", Cause: err}
	}

	return items, nil
}

func (s *PostgresStore) Save(ctx context.Context, collection string, item *models.Item) error {
	insertQuery := s.sq.Insert("items").
		Columns(append([]string{"collection"}, itemColumns...)...).
		Values(
			collection, item.ID, item.Source, item.Kind, item.Title,
			item.DealerName, item.Tag, item.Score, item.Comments, item.Link,
			item.SubKind, item.CreatedAt, item.TouchedAt, item.IsHot,
			item.ExpiryAt, item.Refs.Primary, item.Refs.Hot,
		).
		Suffix(`ON CONFLICT (collection, id) DO UPDATE SET
			source = EXCLUDED.source, kind = EXCLUDED.kind,
			title = EXCLUDED.title, dealer_name = EXCLUDED.dealer_name,
			tag = EXCLUDED.tag, score = EXCLUDED.score,
			comments = EXCLUDED.comments, link = EXCLUDED.link,
			sub_kind = EXCLUDED.sub_kind, created_at = EXCLUDED.created_at,
			touched_at = EXCLUDED.touched_at, is_hot = EXCLUDED.is_hot,
			expiry_at = EXCLUDED.expiry_at`)

	query, args, err := insertQuery.ToSql()
	if err != nil {
		return &errors.ErrBuildSQLQuery{Operation: "saving item", Cause: err}
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return &errors.ErrSQLExecution{Operation: "saving item", Cause: err}
	}

	return nil
}

// SaveRefs updates only the message ref columns; the conflict target keeps
// the rest of an existing row untouched.
func (s *PostgresStore) SaveRefs(ctx context.Context, collection, id string, refs models.MessageRefs) error {
	insertQuery := s.sq.Insert("items").
		Columns("collection", "id", "primary_ref", "hot_ref").
		Values(collection, id, refs.Primary, refs.Hot).
		Suffix(`ON CONFLICT (collection, id) DO UPDATE SET
			primary_ref = EXCLUDED.primary_ref, hot_ref = EXCLUDED.hot_ref`)

	query, args, err := insertQuery.ToSql()
	if err != nil {
		return &errors.ErrBuildSQLQuery{Operation: "saving message refs", Cause: err}
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return &errors.ErrSQLExecution{Operation: "saving message refs", Cause: err}
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	deleteQuery := s.sq.Delete("items").
		Where(sq.Eq{"collection": collection, "id": id})

	query, args, err := deleteQuery.ToSql()
	if err != nil {
		return &errors.ErrBuildSQLQuery{Operation: "deleting item", Cause: err}
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return &errors.ErrSQLExecution{Operation: "deleting item", Cause: err}
	}

	return nil
}

func (s *PostgresStore) FetchSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	selectQuery := s.sq.Select("source", "keyword", "role_id").
		From("subscriptions")

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, &errors.ErrBuildSQLQuery{Operation: "fetching subscriptions", Cause: err}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &errors.ErrSQLExecution{Operation: "fetching subscriptions", Cause: err}
	}
	defer rows.Close()

	var subs []*models.Subscription

	for rows.Next() {
		sub := &models.Subscription{}

		if err := rows.Scan(&sub.Source, &sub.Keyword, &sub.RoleID); err != nil {
			return nil, &errors.ErrSQLScan{Entity: "subscription", Cause: err}
		}

		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, &errors.ErrSQLExecution{Operation: "iterating subscription rows", Cause: err}
	}

	return subs, nil
}

func (s *PostgresStore) SubscriptionsStale(ctx context.Context) (bool, error) {
	selectQuery := s.sq.Select("stale").
		From("subscription_state").
		Limit(1)

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return false, &errors.ErrBuildSQLQuery{Operation: "checking subscription state", Cause: err}
	}

	var stale bool

	err = s.pool.QueryRow(ctx, query, args...).Scan(&stale)
	if err == pgx.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, &errors.ErrSQLExecution{Operation: "checking subscription state", Cause: err}
	}

	return stale, nil
}

func (s *PostgresStore) MarkSubscriptionsFresh(ctx context.Context) error {
	updateQuery := s.sq.Update("subscription_state").
		Set("stale", false)

	query, args, err := updateQuery.ToSql()
	if err != nil {
		return &errors.ErrBuildSQLQuery{Operation: "clearing subscription state", Cause: err}
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return &errors.ErrSQLExecution{Operation: "clearing subscription state", Cause: err}
	}

	return nil
}
