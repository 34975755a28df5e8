package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/store"
)

func TestMemoryStore_SaveAndFetchAll(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryStore()

	item := &models.Item{ID: "d1", Source: models.GameDeals, Title: "deal", Score: 10}
	require.NoError(t, memory.Save(ctx, "deals", item))

	// Mutating the caller's copy must not leak into the store.
	item.Score = 99

	items, err := memory.FetchAll(ctx, "deals")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 10, items[0].Score)

	other, err := memory.FetchAll(ctx, "free-deals")
	require.NoError(t, err)
	assert.Empty(t, other, "collections are isolated")
}

func TestMemoryStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryStore()

	require.NoError(t, memory.Save(ctx, "deals", &models.Item{ID: "d1", Title: "old"}))
	require.NoError(t, memory.Save(ctx, "deals", &models.Item{ID: "d1", Title: "new"}))

	items, err := memory.FetchAll(ctx, "deals")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].Title)
}

func TestMemoryStore_SaveRefs(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryStore()

	require.NoError(t, memory.Save(ctx, "deals", &models.Item{ID: "d1", Title: "deal"}))
	require.NoError(t, memory.SaveRefs(ctx, "deals", "d1", models.MessageRefs{Primary: "m1", Hot: "m2"}))

	items, err := memory.FetchAll(ctx, "deals")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "deal", items[0].Title, "refs merge leaves the document intact")
	assert.Equal(t, models.MessageRefs{Primary: "m1", Hot: "m2"}, items[0].Refs)
}

func TestMemoryStore_SaveRefsForUnknownItem(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryStore()

	require.NoError(t, memory.SaveRefs(ctx, "deals", "d1", models.MessageRefs{Primary: "m1"}))

	items, err := memory.FetchAll(ctx, "deals")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "d1", items[0].ID)
	assert.Equal(t, "m1", items[0].Refs.Primary)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryStore()

	require.NoError(t, memory.Save(ctx, "deals", &models.Item{ID: "d1"}))
	require.NoError(t, memory.Delete(ctx, "deals", "d1"))
	require.NoError(t, memory.Delete(ctx, "deals", "missing"))

	items, err := memory.FetchAll(ctx, "deals")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryStore_SubscriptionStaleness(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryStore()

	stale, err := memory.SubscriptionsStale(ctx)
	require.NoError(t, err)
	assert.False(t, stale)

	memory.SetSubscriptions([]*models.Subscription{
		{Source: models.GameDeals, Keyword: "monitor", RoleID: "r1"},
	})

	stale, err = memory.SubscriptionsStale(ctx)
	require.NoError(t, err)
	assert.True(t, stale, "replacing the subscription set raises the stale flag")

	subs, err := memory.FetchSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "monitor", subs[0].Keyword)

	require.NoError(t, memory.MarkSubscriptionsFresh(ctx))

	stale, err = memory.SubscriptionsStale(ctx)
	require.NoError(t, err)
	assert.False(t, stale)
}
