package sources_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig keeps the resilient client from retrying or tripping its
// breaker inside unit tests.
func testConfig() *config.Config {
	return &config.Config{
		HTTPRequestTimeout:         2 * time.Second,
		RetryCount:                 0,
		RetryBackoff:               10 * time.Millisecond,
		CBSlidingWindowSize:        1,
		CBMinimumRequiredCalls:     100,
		CBFailureRateThreshold:     100,
		CBPermittedCallsInHalfOpen: 1,
		CBWaitDurationInOpenState:  time.Second,
	}
}

type stubAdapter struct {
	source models.Source
	items  []*models.Item
	calls  int
}

func (s *stubAdapter) Source() models.Source { return s.source }

func (s *stubAdapter) Fetch(_ context.Context) ([]*models.Item, error) {
	s.calls++
	return s.items, nil
}

func TestMinuteGate_SkipsOffStepMinutes(t *testing.T) {
	stub := &stubAdapter{source: models.RedFlagDeals}
	gate := sources.NewMinuteGate(stub, 5).WithClock(func() time.Time {
		return time.Date(2026, 9, 1, 12, 3, 0, 0, time.UTC)
	})

	_, err := gate.Fetch(context.Background())

	require.ErrorIs(t, err, sources.ErrSkipped)
	assert.Zero(t, stub.calls)
}

func TestMinuteGate_RunsOnStepMinutes(t *testing.T) {
	stub := &stubAdapter{
		source: models.RedFlagDeals,
		items:  []*models.Item{{ID: "1"}},
	}
	gate := sources.NewMinuteGate(stub, 5).WithClock(func() time.Time {
		return time.Date(2026, 9, 1, 12, 15, 0, 0, time.UTC)
	})

	items, err := gate.Fetch(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, models.RedFlagDeals, gate.Source())
}
