package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

// Baseline is the in-memory snapshot of the last-known items, exclusively
// owned by the running cycle.
type Baseline interface {
	All() []*models.Item
	Get(id string) (*models.Item, bool)
	Put(item *models.Item)
	Remove(id string)
}

// Persister writes reconciliation deltas through to durable storage.
type Persister interface {
	Save(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id string) error
}

// Result buckets the classified outcome of one reconciliation pass. New is
// kept in scrape order (newest first); the dispatcher reverses it.
type Result struct {
	New      []*models.Item
	NewlyHot []*models.Item
	Updated  []*models.Item
	Gone     []*models.Item
}

func (r *Result) Empty() bool {
	return len(r.New) == 0 && len(r.NewlyHot) == 0 && len(r.Updated) == 0 && len(r.Gone) == 0
}

// Reconciler diffs a fresh scrape against the baseline snapshot, mutating
// the snapshot in place and persisting each delta as it is classified.
type Reconciler struct {
	registry      *sources.Registry
	policy        *UpdatePolicy
	retention     time.Duration
	deletedWindow time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func NewReconciler(
	registry *sources.Registry,
	policy *UpdatePolicy,
	retention time.Duration,
	deletedWindow time.Duration,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		registry:      registry,
		policy:        policy,
		retention:     retention,
		deletedWindow: deletedWindow,
		now:           time.Now,
		logger:        logger,
	}
}

// WithClock overrides the time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile classifies the scraped items against the baseline. The present
// set names the sources whose adapter produced results this cycle; absence
// is never reconciled against a source that is not in it, so a failed fetch
// cannot be misread as mass deletion.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	baseline Baseline,
	persister Persister,
	scraped []*models.Item,
	present map[models.Source]bool,
) *Result {
	now := r.now()
	scraped = r.dropTerminalDuplicates(scraped)

	result := &Result{}

	seen := make(map[string]bool, len(scraped))
	for _, item := range scraped {
		seen[item.ID] = true
	}

	r.reconcileAbsent(ctx, baseline, persister, seen, present, now, result)
	r.reconcilePresent(ctx, baseline, persister, scraped, now, result)

	return result
}

// dropTerminalDuplicates handles duplicate ids within one scrape batch
// (forum post merges): when an id occurs more than once, the duplicates
// carrying a terminal state are dropped and the live one is kept.
func (r *Reconciler) dropTerminalDuplicates(scraped []*models.Item) []*models.Item {
	occurrences := make(map[string]int, len(scraped))
	for _, item := range scraped {
		occurrences[item.ID]++
	}

	deduped := make([]*models.Item, 0, len(scraped))

	for _, item := range scraped {
		if occurrences[item.ID] > 1 && item.Terminal() {
			r.logger.Info("dropping duplicate item with terminal state",
				"id", item.ID,
				"tag", item.Tag,
			)

			continue
		}

		deduped = append(deduped, item)
	}

	return deduped
}

//nolint:funlen // The absence rules read best as one pass.
func (r *Reconciler) reconcileAbsent(
	ctx context.Context,
	baseline Baseline,
	persister Persister,
	seen map[string]bool,
	present map[models.Source]bool,
	now time.Time,
	result *Result,
) {
	retentionCutoff := now.Add(-r.retention)
	deletedCutoff := now.Add(-r.deletedWindow)

	for _, item := range baseline.All() {
		if seen[item.ID] || !present[item.Source] {
			continue
		}

		caps, err := r.registry.Lookup(item.Source)
		if err != nil {
			r.logger.Error("baseline item has no registered source",
				"id", item.ID,
				"error", err,
			)

			continue
		}

		if caps.ExpiryGated {
			if item.ExpiryAt != nil && now.Before(*item.ExpiryAt) {
				// Not expired yet; probably just paginated out.
				continue
			}

			if err := persister.Delete(ctx, item.ID); err != nil {
				r.logger.Error("deleting expired item", "id", item.ID, "error", err)
				continue
			}

			baseline.Remove(item.ID)
			r.logger.Info("item expired and removed", "id", item.ID)

			if caps.NotifyOnGone && !item.Terminal() {
				item.Tag = models.StateExpired
				result.Gone = append(result.Gone, item)
			}

			continue
		}

		if item.CreatedAt.Before(retentionCutoff) {
			// Older than the retention window: purge outright.
			if err := persister.Delete(ctx, item.ID); err != nil {
				r.logger.Error("deleting item past retention", "id", item.ID, "error", err)
				continue
			}

			baseline.Remove(item.ID)
			r.logger.Info("item past retention deleted", "id", item.ID)

			if caps.NotifyOnGone && !item.Terminal() {
				item.Tag = models.StateUntracked
				result.Gone = append(result.Gone, item)
			}

			continue
		}

		if !caps.TrackAbsence || item.Terminal() {
			continue
		}

		// Recently created but missing from this page of results: very
		// recent items were most likely removed by moderation, the rest
		// merely paginated out.
		item.TouchedAt = now

		if item.CreatedAt.After(deletedCutoff) {
			item.Tag = models.StateDeleted
		} else {
			item.Tag = models.StateUntracked
		}

		if err := persister.Save(ctx, item); err != nil {
			r.logger.Error("persisting absent item state", "id", item.ID, "error", err)
			continue
		}

		r.logger.Info("absent item marked",
			"id", item.ID,
			"tag", item.Tag,
		)

		result.Gone = append(result.Gone, item)
	}
}

func (r *Reconciler) reconcilePresent(
	ctx context.Context,
	baseline Baseline,
	persister Persister,
	scraped []*models.Item,
	now time.Time,
	result *Result,
) {
	quota := NewQuotaTracker()
	retentionCutoff := now.Add(-r.retention)

	for _, item := range scraped {
		caps, err := r.registry.Lookup(item.Source)
		if err != nil {
			r.logger.Error("scraped item has no registered source",
				"id", item.ID,
				"error", err,
			)

			continue
		}

		existing, ok := baseline.Get(item.ID)
		if !ok {
			// Old items paginate back in when newer ones are removed;
			// anything created before the retention cutoff was already
			// purged once and must not resurrect.
			if !caps.ExpiryGated && item.CreatedAt.Before(retentionCutoff) {
				continue
			}

			item.TouchedAt = now
			item.IsHot = caps.IsHot(item, now)

			if err := persister.Save(ctx, item); err != nil {
				r.logger.Error("persisting new item", "id", item.ID, "error", err)
				continue
			}

			baseline.Put(item)
			result.New = append(result.New, item)
			r.logger.Info("new item", "id", item.ID, "source", item.Source)

			continue
		}

		newlyHot := !existing.IsHot && caps.IsHot(item, now)

		if !newlyHot {
			if !r.policy.ShouldUpdate(caps, existing, item) {
				continue
			}

			if !quota.Allow(item.Source, caps.UpdateQuota) {
				r.logger.Info("update quota exhausted",
					"id", item.ID,
					"source", item.Source,
				)

				continue
			}
		}

		copyMutableFields(existing, item, caps)
		existing.TouchedAt = now

		if newlyHot {
			existing.IsHot = true
		}

		if err := persister.Save(ctx, existing); err != nil {
			r.logger.Error("persisting updated item", "id", item.ID, "error", err)
			continue
		}

		if newlyHot {
			result.NewlyHot = append(result.NewlyHot, existing)
			r.logger.Info("item is now hot", "id", item.ID)
		}

		result.Updated = append(result.Updated, existing)
	}
}

// copyMutableFields carries the scraped values onto the baseline item. The
// score is left untouched under the source's bogus-zero states.
func copyMutableFields(dst, src *models.Item, caps sources.Capabilities) {
	dst.Title = src.Title
	dst.Tag = src.Tag
	dst.Comments = src.Comments

	if src.DealerName != "" {
		dst.DealerName = src.DealerName
	}

	if src.Link != "" {
		dst.Link = src.Link
	}

	if !caps.ScoreSuppressed(src.Tag) {
		dst.Score = src.Score
	}
}
