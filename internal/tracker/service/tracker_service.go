package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dealwatch/dealwatch/internal/common/metrics"
	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/core"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
	"github.com/dealwatch/dealwatch/internal/tracker/store"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, result *core.Result) error
}

type Alerter interface {
	Match(ctx context.Context, subs []*models.Subscription, newItems []*models.Item) error
}

type Publisher interface {
	PublishResult(ctx context.Context, pipeline string, result *core.Result) error
}

// SubscriptionSource is the slice of the store the alert cache needs.
type SubscriptionSource interface {
	FetchSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	SubscriptionsStale(ctx context.Context) (bool, error)
	MarkSubscriptionsFresh(ctx context.Context) error
}

// ExpiryLookup is implemented by adapters whose listing carries no expiry;
// it is consulted once per item new to the baseline.
type ExpiryLookup interface {
	LookupExpiry(ctx context.Context, item *models.Item) (*time.Time, error)
}

// TrackerService runs one pipeline: scrape all adapters, reconcile against
// the baseline, publish events, dispatch notifications and match alerts.
type TrackerService struct {
	name       string
	adapters   []sources.Adapter
	snapshot   *store.Snapshot
	collection *store.Collection
	reconciler *core.Reconciler
	dispatcher Dispatcher
	alerter    Alerter
	publisher  Publisher
	subsSource SubscriptionSource
	timeout    time.Duration
	logger     *slog.Logger

	subs       []*models.Subscription
	subsLoaded bool
}

func NewTrackerService(
	name string,
	adapters []sources.Adapter,
	snapshot *store.Snapshot,
	collection *store.Collection,
	reconciler *core.Reconciler,
	dispatcher Dispatcher,
	publisher Publisher,
	timeout time.Duration,
	logger *slog.Logger,
) *TrackerService {
	return &TrackerService{
		name:       name,
		adapters:   adapters,
		snapshot:   snapshot,
		collection: collection,
		reconciler: reconciler,
		dispatcher: dispatcher,
		publisher:  publisher,
		timeout:    timeout,
		logger:     logger,
	}
}

// WithAlerts enables keyword alerting for this pipeline.
func (s *TrackerService) WithAlerts(alerter Alerter, subsSource SubscriptionSource) *TrackerService {
	s.alerter = alerter
	s.subsSource = subsSource

	return s
}

// RunCycle executes one scheduled pass under the pipeline's wall-clock
// budget. Items left unsent by a truncated cycle carry no message ref and
// are re-sent on the next pass.
func (s *TrackerService) RunCycle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("cycle started", "pipeline", s.name)

	if err := s.snapshot.Load(ctx); err != nil {
		s.logger.Error("failed to load baseline snapshot", "pipeline", s.name, "error", err)
		return err
	}

	scraped, present := s.scrape(ctx)

	result := s.reconciler.Reconcile(ctx, s.snapshot, s.collection, scraped, present)
	s.recordResult(result)

	if err := s.publisher.PublishResult(ctx, s.name, result); err != nil {
		s.logger.Error("failed to publish item events", "pipeline", s.name, "error", err)
	}

	if err := s.dispatcher.Dispatch(ctx, result); err != nil {
		s.logger.Error("dispatch finished with errors", "pipeline", s.name, "error", err)
		metrics.NotificationsSent.WithLabelValues(s.name, "error").Inc()
	} else if !result.Empty() {
		metrics.NotificationsSent.WithLabelValues(s.name, "success").Inc()
	}

	s.matchAlerts(ctx, result.New)

	metrics.CycleDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	metrics.TrackedItems.WithLabelValues(s.name).Set(float64(s.snapshot.Len()))

	s.logger.Info("cycle completed",
		"pipeline", s.name,
		"new", len(result.New),
		"newly_hot", len(result.NewlyHot),
		"updated", len(result.Updated),
		"gone", len(result.Gone),
		"duration", time.Since(start).String(),
	)

	return nil
}

// scrape runs the adapters sequentially. A source counts as represented only
// when its adapter succeeded, so one failing upstream cannot be misread as
// everything it tracks being deleted.
func (s *TrackerService) scrape(ctx context.Context) ([]*models.Item, map[models.Source]bool) {
	present := make(map[models.Source]bool, len(s.adapters))

	var scraped []*models.Item

	for _, adapter := range s.adapters {
		fetchStart := time.Now()

		items, err := adapter.Fetch(ctx)
		if errors.Is(err, sources.ErrSkipped) {
			s.logger.Debug("source skipped this cycle", "source", adapter.Source())
			continue
		}

		metrics.RecordScrape(string(adapter.Source()), fetchStart, err)

		if err != nil {
			s.logger.Error("scrape failed", "source", adapter.Source(), "error", err)
			continue
		}

		present[adapter.Source()] = true

		s.enrichNew(ctx, adapter, items)
		scraped = append(scraped, items...)
	}

	return scraped, present
}

func (s *TrackerService) enrichNew(ctx context.Context, adapter sources.Adapter, items []*models.Item) {
	lookup, ok := adapter.(ExpiryLookup)
	if !ok {
		return
	}

	for _, item := range items {
		if item.ExpiryAt != nil {
			continue
		}

		if _, known := s.snapshot.Get(item.ID); known {
			continue
		}

		expiry, err := lookup.LookupExpiry(ctx, item)
		if err != nil {
			s.logger.Warn("expiry lookup failed", "id", item.ID, "error", err)
			continue
		}

		item.ExpiryAt = expiry
	}
}

func (s *TrackerService) matchAlerts(ctx context.Context, newItems []*models.Item) {
	if s.alerter == nil || len(newItems) == 0 {
		return
	}

	if err := s.refreshSubscriptions(ctx); err != nil {
		s.logger.Error("failed to refresh subscriptions", "pipeline", s.name, "error", err)
	}

	if err := s.alerter.Match(ctx, s.subs, newItems); err != nil {
		s.logger.Error("alert matching finished with errors", "pipeline", s.name, "error", err)
	}
}

// refreshSubscriptions loads the keyword subscriptions once and refetches
// them whenever the store's refresh flag is raised.
func (s *TrackerService) refreshSubscriptions(ctx context.Context) error {
	stale := false

	if s.subsLoaded {
		var err error

		stale, err = s.subsSource.SubscriptionsStale(ctx)
		if err != nil {
			return err
		}

		if !stale {
			return nil
		}
	}

	subs, err := s.subsSource.FetchSubscriptions(ctx)
	if err != nil {
		return err
	}

	s.subs = subs
	s.subsLoaded = true

	if stale {
		if err := s.subsSource.MarkSubscriptionsFresh(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("subscriptions refreshed", "pipeline", s.name, "count", len(subs))

	return nil
}

func (s *TrackerService) recordResult(result *core.Result) {
	metrics.ItemsClassified.WithLabelValues(s.name, "new").Add(float64(len(result.New)))
	metrics.ItemsClassified.WithLabelValues(s.name, "newly_hot").Add(float64(len(result.NewlyHot)))
	metrics.ItemsClassified.WithLabelValues(s.name, "updated").Add(float64(len(result.Updated)))
	metrics.ItemsClassified.WithLabelValues(s.name, "gone").Add(float64(len(result.Gone)))
}
