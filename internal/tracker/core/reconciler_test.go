package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/core"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

type fakeBaseline struct {
	items map[string]*models.Item
}

func newFakeBaseline(items ...*models.Item) *fakeBaseline {
	b := &fakeBaseline{items: make(map[string]*models.Item)}
	for _, item := range items {
		b.items[item.ID] = item
	}

	return b
}

func (b *fakeBaseline) All() []*models.Item {
	all := make([]*models.Item, 0, len(b.items))
	for _, item := range b.items {
		all = append(all, item)
	}

	return all
}

func (b *fakeBaseline) Get(id string) (*models.Item, bool) {
	item, ok := b.items[id]
	return item, ok
}

func (b *fakeBaseline) Put(item *models.Item) { b.items[item.ID] = item }
func (b *fakeBaseline) Remove(id string)      { delete(b.items, id) }

type fakePersister struct {
	saved   []string
	deleted []string
}

func (p *fakePersister) Save(_ context.Context, item *models.Item) error {
	p.saved = append(p.saved, item.ID)
	return nil
}

func (p *fakePersister) Delete(_ context.Context, id string) error {
	p.deleted = append(p.deleted, id)
	return nil
}

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(registry *sources.Registry) *core.Reconciler {
	return core.NewReconciler(
		registry,
		core.NewUpdatePolicy(testLogger()),
		48*time.Hour,
		time.Hour,
		testLogger(),
	).WithClock(func() time.Time { return testNow })
}

func dealRegistry() *sources.Registry {
	return sources.NewRegistry(sources.Capabilities{
		Source:       models.GameDeals,
		Kind:         models.KindDeal,
		ChannelID:    "c1",
		HotChannelID: "h1",
		UpdateQuota:  3,
		HotScore:     100,
		HotWindow:    6 * time.Hour,
		TrackAbsence: true,
		NotifyOnGone: true,
		BuildLink:    func(item *models.Item) string { return "link" },
	})
}

func TestReconcile_NewItem(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline()
	persister := &fakePersister{}

	scraped := []*models.Item{{
		ID:        "d1",
		Source:    models.GameDeals,
		Title:     "fresh deal",
		Score:     150,
		CreatedAt: testNow.Add(-time.Hour),
	}}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		scraped, map[models.Source]bool{models.GameDeals: true})

	require.Len(t, result.New, 1)
	assert.True(t, result.New[0].IsHot, "score 150 within hot window")
	assert.Equal(t, []string{"d1"}, persister.saved)

	_, ok := baseline.Get("d1")
	assert.True(t, ok)
}

func TestReconcile_UpdateOverThreshold(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline(&models.Item{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 18,
		CreatedAt: testNow.Add(-10 * time.Hour),
	})
	persister := &fakePersister{}

	scraped := []*models.Item{{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 30,
		CreatedAt: testNow.Add(-10 * time.Hour),
	}}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		scraped, map[models.Source]bool{models.GameDeals: true})

	require.Len(t, result.Updated, 1)
	assert.Empty(t, result.NewlyHot)
	assert.Equal(t, 30, result.Updated[0].Score)
	assert.False(t, result.Updated[0].IsHot, "crossing the update threshold alone never flips hotness")
}

func TestReconcile_NewlyHotBypassesQuotaAndJoinsUpdates(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline(&models.Item{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 95,
		CreatedAt: testNow.Add(-time.Hour),
	})
	persister := &fakePersister{}

	scraped := []*models.Item{{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 101,
		CreatedAt: testNow.Add(-time.Hour),
	}}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		scraped, map[models.Source]bool{models.GameDeals: true})

	// Delta 6 is below the magnitude threshold, but crossing into hot must
	// still go out, both as a hot send and as an edit of the primary.
	require.Len(t, result.NewlyHot, 1)
	require.Len(t, result.Updated, 1)
	assert.Same(t, result.NewlyHot[0], result.Updated[0])
	assert.True(t, result.NewlyHot[0].IsHot)
}

func TestReconcile_HotIsOneWay(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline(&models.Item{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 150, IsHot: true,
		CreatedAt: testNow.Add(-time.Hour),
	})
	persister := &fakePersister{}

	scraped := []*models.Item{{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 30,
		CreatedAt: testNow.Add(-time.Hour),
	}}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		scraped, map[models.Source]bool{models.GameDeals: true})

	require.Len(t, result.Updated, 1)
	assert.Empty(t, result.NewlyHot)
	assert.True(t, result.Updated[0].IsHot, "hot flag never reverts")
}

func TestReconcile_StaleResurrectionDropped(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline()
	persister := &fakePersister{}

	scraped := []*models.Item{{
		ID: "old", Source: models.GameDeals, Title: "ancient deal",
		CreatedAt: testNow.Add(-72 * time.Hour),
	}}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		scraped, map[models.Source]bool{models.GameDeals: true})

	assert.True(t, result.Empty(), "items older than retention never resurrect")
	assert.Empty(t, persister.saved)
}

func TestReconcile_AbsenceGuard(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline(&models.Item{
		ID: "d1", Source: models.GameDeals, Title: "deal",
		CreatedAt: testNow.Add(-10 * time.Hour),
	})
	persister := &fakePersister{}

	// The source's adapter failed this cycle: nothing scraped, source not
	// present. The item must remain untouched.
	result := reconciler.Reconcile(context.Background(), baseline, persister,
		nil, map[models.Source]bool{})

	assert.True(t, result.Empty())
	assert.Empty(t, persister.saved)
	assert.Empty(t, persister.deleted)
}

func TestReconcile_AbsentDeletedVsUntracked(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())

	recent := &models.Item{
		ID: "young", Source: models.GameDeals, Title: "deal",
		CreatedAt: testNow.Add(-30 * time.Minute),
	}
	older := &models.Item{
		ID: "older", Source: models.GameDeals, Title: "deal",
		CreatedAt: testNow.Add(-10 * time.Hour),
	}

	baseline := newFakeBaseline(recent, older)
	persister := &fakePersister{}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		nil, map[models.Source]bool{models.GameDeals: true})

	require.Len(t, result.Gone, 2)

	tags := map[string]string{}
	for _, item := range result.Gone {
		tags[item.ID] = item.Tag
	}

	assert.Equal(t, models.StateDeleted, tags["young"], "missing within an hour of creation means removed")
	assert.Equal(t, models.StateUntracked, tags["older"], "older absences merely paginated out")
	assert.Empty(t, persister.deleted, "absence within retention persists state, never deletes")
}

func TestReconcile_RetentionPurge(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline(&models.Item{
		ID: "old", Source: models.GameDeals, Title: "deal",
		CreatedAt: testNow.Add(-72 * time.Hour),
	})
	persister := &fakePersister{}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		nil, map[models.Source]bool{models.GameDeals: true})

	require.Len(t, result.Gone, 1)
	assert.Equal(t, models.StateUntracked, result.Gone[0].Tag)
	assert.Equal(t, []string{"old"}, persister.deleted)

	_, ok := baseline.Get("old")
	assert.False(t, ok)
}

func TestReconcile_TerminalAbsentStaysSilent(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline(&models.Item{
		ID: "done", Source: models.GameDeals, Title: "deal", Tag: models.StateUntracked,
		CreatedAt: testNow.Add(-10 * time.Hour),
	})
	persister := &fakePersister{}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		nil, map[models.Source]bool{models.GameDeals: true})

	assert.True(t, result.Empty(), "terminal items are not re-notified while absent")
}

func TestReconcile_ExpiryGating(t *testing.T) {
	registry := sources.NewRegistry(sources.Capabilities{
		Source:       models.Epic,
		Kind:         models.KindFreeDeal,
		ChannelID:    "c1",
		ExpiryGated:  true,
		NotifyOnGone: true,
		BuildLink:    func(item *models.Item) string { return item.Link },
	})
	reconciler := newTestReconciler(registry)

	future := testNow.Add(24 * time.Hour)
	past := testNow.Add(-time.Hour)

	stillRunning := &models.Item{
		ID: "live", Source: models.Epic, Title: "free game",
		CreatedAt: testNow.Add(-time.Hour), ExpiryAt: &future,
	}
	lapsed := &models.Item{
		ID: "done", Source: models.Epic, Title: "old free game",
		CreatedAt: testNow.Add(-30 * time.Hour), ExpiryAt: &past,
	}

	baseline := newFakeBaseline(stillRunning, lapsed)
	persister := &fakePersister{}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		nil, map[models.Source]bool{models.Epic: true})

	require.Len(t, result.Gone, 1)
	assert.Equal(t, "done", result.Gone[0].ID)
	assert.Equal(t, models.StateExpired, result.Gone[0].Tag)
	assert.Equal(t, []string{"done"}, persister.deleted)

	_, ok := baseline.Get("live")
	assert.True(t, ok, "absent with future expiry is only paginated out")
}

func TestReconcile_DuplicateTerminalDropped(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline()
	persister := &fakePersister{}

	scraped := []*models.Item{
		{ID: "dup", Source: models.GameDeals, Title: "merged deal", Tag: models.StateExpired, CreatedAt: testNow},
		{ID: "dup", Source: models.GameDeals, Title: "merged deal", CreatedAt: testNow},
	}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		scraped, map[models.Source]bool{models.GameDeals: true})

	require.Len(t, result.New, 1)
	assert.Empty(t, result.New[0].Tag, "the live duplicate wins")
}

func TestReconcile_Idempotent(t *testing.T) {
	reconciler := newTestReconciler(dealRegistry())
	baseline := newFakeBaseline()
	persister := &fakePersister{}

	scraped := []*models.Item{{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 10,
		CreatedAt: testNow.Add(-time.Hour),
	}}
	present := map[models.Source]bool{models.GameDeals: true}

	first := reconciler.Reconcile(context.Background(), baseline, persister, scraped, present)
	require.Len(t, first.New, 1)

	again := []*models.Item{{
		ID: "d1", Source: models.GameDeals, Title: "deal", Score: 10,
		CreatedAt: testNow.Add(-time.Hour),
	}}

	second := reconciler.Reconcile(context.Background(), baseline, persister, again, present)
	assert.True(t, second.Empty(), "same scrape twice yields no further notifications")
}

func TestReconcile_UpdateQuota(t *testing.T) {
	registry := sources.NewRegistry(sources.Capabilities{
		Source:       models.GameDeals,
		Kind:         models.KindDeal,
		ChannelID:    "c1",
		UpdateQuota:  1,
		TrackAbsence: true,
		BuildLink:    func(item *models.Item) string { return "link" },
	})
	reconciler := newTestReconciler(registry)

	baseline := newFakeBaseline(
		&models.Item{ID: "a", Source: models.GameDeals, Title: "one", CreatedAt: testNow.Add(-time.Hour)},
		&models.Item{ID: "b", Source: models.GameDeals, Title: "two", CreatedAt: testNow.Add(-time.Hour)},
	)
	persister := &fakePersister{}

	scraped := []*models.Item{
		{ID: "a", Source: models.GameDeals, Title: "one changed", CreatedAt: testNow.Add(-time.Hour)},
		{ID: "b", Source: models.GameDeals, Title: "two changed", CreatedAt: testNow.Add(-time.Hour)},
	}

	result := reconciler.Reconcile(context.Background(), baseline, persister,
		scraped, map[models.Source]bool{models.GameDeals: true})

	assert.Len(t, result.Updated, 1, "second qualifying update exceeds the per-cycle quota")
}
