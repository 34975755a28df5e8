package core_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/core"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		value    int
		expected int
	}{
		{0, 2},
		{2, 2},
		{3, 3},
		{9, 3},
		{10, 5},
		{15, 5},
		{19, 5},
		{20, 10},
		{99, 10},
		{100, 20},
		{150, 20},
		{199, 20},
		{200, 50},
		{499, 50},
		{500, 100},
		{600, 100},
		{-15, 5},
		{-600, 100},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, core.Threshold(tc.value), "Threshold(%d)", tc.value)
	}
}

func TestShouldUpdate_ScoreDelta(t *testing.T) {
	policy := core.NewUpdatePolicy(testLogger())
	caps := sources.Capabilities{Source: models.BapcSalesCanada}

	baseline := &models.Item{ID: "a", Title: "deal", Score: 18}

	scraped := &models.Item{ID: "a", Title: "deal", Score: 30}
	assert.True(t, policy.ShouldUpdate(caps, baseline, scraped), "delta 12 vs threshold 10")

	scraped = &models.Item{ID: "a", Title: "deal", Score: 25}
	assert.False(t, policy.ShouldUpdate(caps, baseline, scraped), "delta 7 below threshold 10")
}

func TestShouldUpdate_TitleAndTagBypassThreshold(t *testing.T) {
	policy := core.NewUpdatePolicy(testLogger())
	caps := sources.Capabilities{Source: models.GameDeals}

	baseline := &models.Item{ID: "a", Title: "old title", Score: 10}
	scraped := &models.Item{ID: "a", Title: "new title", Score: 10}
	assert.True(t, policy.ShouldUpdate(caps, baseline, scraped))

	baseline = &models.Item{ID: "a", Title: "deal", Tag: ""}
	scraped = &models.Item{ID: "a", Title: "deal", Tag: models.StateExpired}
	assert.True(t, policy.ShouldUpdate(caps, baseline, scraped))
}

func TestShouldUpdate_CommentDelta(t *testing.T) {
	policy := core.NewUpdatePolicy(testLogger())
	caps := sources.Capabilities{Source: models.GameDeals}

	baseline := &models.Item{ID: "a", Title: "deal", Comments: 10}
	scraped := &models.Item{ID: "a", Title: "deal", Comments: 15}
	assert.True(t, policy.ShouldUpdate(caps, baseline, scraped))

	scraped = &models.Item{ID: "a", Title: "deal", Comments: 13}
	assert.False(t, policy.ShouldUpdate(caps, baseline, scraped))
}

func TestShouldUpdate_SuppressedScoreOnTerminal(t *testing.T) {
	policy := core.NewUpdatePolicy(testLogger())
	caps := sources.Capabilities{
		Source:              models.RedFlagDeals,
		SuppressScoreStates: []string{models.StateExpired, models.StateMoved},
	}

	// The feed zeroes the score on expired topics; the drop alone must not
	// qualify as an update.
	baseline := &models.Item{ID: "a", Title: "deal", Tag: models.StateExpired, Score: 120}
	scraped := &models.Item{ID: "a", Title: "deal", Tag: models.StateExpired, Score: 0}
	assert.False(t, policy.ShouldUpdate(caps, baseline, scraped))
}

func TestShouldUpdate_RestoresDealerPrefix(t *testing.T) {
	policy := core.NewUpdatePolicy(testLogger())
	caps := sources.Capabilities{
		Source:              models.RedFlagDeals,
		RestoreDealerPrefix: true,
	}

	baseline := &models.Item{
		ID:         "a",
		Title:      "[Amazon] cheap cables",
		DealerName: "Amazon",
	}
	scraped := &models.Item{
		ID:    "a",
		Title: "cheap cables",
		Tag:   models.StateExpired,
	}

	// Tag changed, so it updates; the point is the title must come out
	// with the prefix restored rather than overwriting it away.
	assert.True(t, policy.ShouldUpdate(caps, baseline, scraped))
	assert.Equal(t, "[Amazon] cheap cables", scraped.Title)
}

func TestQuotaTracker(t *testing.T) {
	quota := core.NewQuotaTracker()

	assert.True(t, quota.Allow(models.GameDeals, 2))
	assert.True(t, quota.Allow(models.GameDeals, 2))
	assert.False(t, quota.Allow(models.GameDeals, 2))

	// Other sources have their own budget.
	assert.True(t, quota.Allow(models.BapcSalesCanada, 2))

	// Zero means unlimited.
	for i := 0; i < 10; i++ {
		assert.True(t, quota.Allow(models.RedFlagDeals, 0))
	}
}
