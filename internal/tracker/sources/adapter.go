package sources

import (
	"context"
	"errors"
	"time"

	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// Adapter scrapes one source into the common item shape. A successful Fetch
// marks the source as represented in the cycle even when it returns no
// items.
type Adapter interface {
	Source() models.Source
	Fetch(ctx context.Context) ([]*models.Item, error)
}

// ErrSkipped signals that the adapter chose not to scrape this cycle. The
// source is treated as unrepresented, not as failed.
var ErrSkipped = errors.New("scrape skipped this cycle")

// MinuteGate wraps an adapter that should only run on minutes divisible by
// the given step, to keep a low-traffic upstream from being polled every
// cycle.
type MinuteGate struct {
	adapter Adapter
	step    int
	now     func() time.Time
}

func NewMinuteGate(adapter Adapter, step int) *MinuteGate {
	return &MinuteGate{adapter: adapter, step: step, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (g *MinuteGate) WithClock(now func() time.Time) *MinuteGate {
	g.now = now
	return g
}

func (g *MinuteGate) Source() models.Source {
	return g.adapter.Source()
}

func (g *MinuteGate) Fetch(ctx context.Context) ([]*models.Item, error) {
	if g.step > 1 && g.now().Minute()%g.step != 0 {
		return nil, ErrSkipped
	}

	return g.adapter.Fetch(ctx)
}
