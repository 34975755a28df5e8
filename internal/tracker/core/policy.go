package core

import (
	"log/slog"
	"strings"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

// Threshold returns the minimum absolute delta a score or comment count must
// move before the change is considered significant. Steps scale with the
// metric's magnitude so "meaningful" stays roughly the same relative size.
func Threshold(value int) int {
	magnitude := value
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch {
	case magnitude >= 500:
		return 100
	case magnitude >= 200:
		return 50
	case magnitude >= 100:
		return 20
	case magnitude >= 20:
		return 10
	case magnitude >= 10:
		return 5
	case magnitude > 2:
		return 3
	default:
		return 2
	}
}

// UpdatePolicy decides whether a scraped item changed enough from its
// baseline to warrant persisting and pushing an update notification.
type UpdatePolicy struct {
	logger *slog.Logger
}

func NewUpdatePolicy(logger *slog.Logger) *UpdatePolicy {
	return &UpdatePolicy{logger: logger}
}

// ShouldUpdate applies the policy rules in priority order: structural changes
// (title, tag) always qualify; score deltas are suppressed under the
// source's bogus-zero states; otherwise score and then comment deltas are
// measured against the magnitude threshold.
//
// When the source drops the dealer prefix on terminal transitions, the
// prefix is restored onto the scraped title from the baseline first, so the
// comparison (and the eventual field copy) sees the full title.
func (p *UpdatePolicy) ShouldUpdate(caps sources.Capabilities, baseline, scraped *models.Item) bool {
	if caps.RestoreDealerPrefix && models.IsTerminalState(scraped.Tag) && baseline.DealerName != "" {
		prefix := "[" + baseline.DealerName + "] "
		if !strings.HasPrefix(scraped.Title, prefix) {
			scraped.Title = prefix + scraped.Title
		}
	}

	if scraped.Title != baseline.Title || scraped.Tag != baseline.Tag {
		p.logger.Debug("title or tag changed",
			"id", baseline.ID,
		)

		return true
	}

	if scraped.Link != "" && baseline.Link != "" && scraped.Link != baseline.Link {
		return true
	}

	if scraped.Score != baseline.Score && !caps.ScoreSuppressed(scraped.Tag) {
		if delta(baseline.Score, scraped.Score) >= Threshold(scraped.Score) {
			return true
		}
	}

	if scraped.Comments != baseline.Comments {
		if delta(baseline.Comments, scraped.Comments) >= Threshold(scraped.Comments) {
			return true
		}
	}

	return false
}

func delta(a, b int) int {
	if a > b {
		return a - b
	}

	return b - a
}

// QuotaTracker counts qualifying updates per source within one cycle. The
// first calls up to the limit are allowed; later candidates are skipped and
// may re-qualify next cycle on fresh deltas.
type QuotaTracker struct {
	counts map[models.Source]int
}

func NewQuotaTracker() *QuotaTracker {
	return &QuotaTracker{counts: make(map[models.Source]int)}
}

func (q *QuotaTracker) Allow(source models.Source, limit int) bool {
	if limit <= 0 {
		return true
	}

	q.counts[source]++

	return q.counts[source] <= limit
}
