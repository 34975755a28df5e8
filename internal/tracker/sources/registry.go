package sources

import (
	"fmt"
	"time"

	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// Capabilities is the per-source record the core looks up instead of
// branching on source constants: channel routing, hotness parameters, update
// quota, link building and source quirks.
type Capabilities struct {
	Source       models.Source
	Kind         models.ItemKind
	DisplayName  string
	ChannelID    string
	HotChannelID string

	// UpdateQuota caps how many items from this source may be pushed as
	// updates within one cycle. Zero means unlimited.
	UpdateQuota int

	// Hotness predicate: created within HotWindow and score at least
	// HotScore. A zero HotScore disables hotness for the source.
	HotScore  int
	HotWindow time.Duration

	// SuppressScoreStates lists lifecycle tags under which the source
	// reports a bogus zero score; score deltas are ignored while the
	// scraped item carries one of them.
	SuppressScoreStates []string

	// RestoreDealerPrefix re-adds the "[Dealer]" title prefix from the
	// baseline when the feed drops it on terminal transitions.
	RestoreDealerPrefix bool

	// ExpiryGated items are only reconciled as gone once absent with no
	// expiry or a passed expiry.
	ExpiryGated bool

	// NotifyOnGone controls whether removal produces a final notification.
	NotifyOnGone bool

	// TrackAbsence enables the untracked/deleted inference for items that
	// disappear from the scrape while still within the retention window.
	TrackAbsence bool

	BuildLink func(item *models.Item) string
}

// IsHot evaluates the hotness predicate against the item as scraped.
func (c Capabilities) IsHot(item *models.Item, now time.Time) bool {
	if c.HotScore <= 0 {
		return false
	}

	return item.Score >= c.HotScore && item.CreatedAt.After(now.Add(-c.HotWindow))
}

// ScoreSuppressed reports whether score deltas must be ignored for the tag.
func (c Capabilities) ScoreSuppressed(tag string) bool {
	for _, s := range c.SuppressScoreStates {
		if s == tag {
			return true
		}
	}

	return false
}

// Registry maps sources to their capability records. Unknown sources are a
// lookup failure, not a panic in business logic.
type Registry struct {
	caps map[models.Source]Capabilities
}

func NewRegistry(caps ...Capabilities) *Registry {
	r := &Registry{caps: make(map[models.Source]Capabilities, len(caps))}

	for _, c := range caps {
		r.caps[c.Source] = c
	}

	return r
}

func (r *Registry) Register(c Capabilities) {
	r.caps[c.Source] = c
}

func (r *Registry) Lookup(source models.Source) (Capabilities, error) {
	c, ok := r.caps[source]
	if !ok {
		return Capabilities{}, &errors.ErrUnknownSource{Source: string(source)}
	}

	return c, nil
}

// NewDealRegistry wires the forum/subreddit deal sources.
func NewDealRegistry(cfg *config.Config) *Registry {
	subredditLink := func(item *models.Item) string {
		return fmt.Sprintf(cfg.SubredditDealURL, item.Source, item.ID)
	}

	return NewRegistry(
		Capabilities{
			Source:       models.BapcSalesCanada,
			Kind:         models.KindDeal,
			DisplayName:  "bapcsalescanada",
			ChannelID:    cfg.ChannelBapc,
			HotChannelID: cfg.ChannelHotBapc,
			UpdateQuota:  cfg.UpdateQuotaDefault,
			HotScore:     20,
			HotWindow:    cfg.HotWindow,
			TrackAbsence: true,
			NotifyOnGone: true,
			BuildLink:    subredditLink,
		},
		Capabilities{
			Source:       models.GameDeals,
			Kind:         models.KindDeal,
			DisplayName:  "gamedeals",
			ChannelID:    cfg.ChannelGameDeals,
			HotChannelID: cfg.ChannelHotGameDeals,
			UpdateQuota:  cfg.UpdateQuotaDefault,
			HotScore:     100,
			HotWindow:    cfg.HotWindow,
			TrackAbsence: true,
			NotifyOnGone: true,
			BuildLink:    subredditLink,
		},
		Capabilities{
			Source:       models.VideoGameDealsCanada,
			Kind:         models.KindDeal,
			DisplayName:  "videogamedealscanada",
			ChannelID:    cfg.ChannelVGDC,
			HotChannelID: cfg.ChannelHotVGDC,
			UpdateQuota:  cfg.UpdateQuotaDefault,
			HotScore:     20,
			HotWindow:    cfg.HotWindow,
			TrackAbsence: true,
			NotifyOnGone: true,
			BuildLink:    subredditLink,
		},
		Capabilities{
			Source:              models.RedFlagDeals,
			Kind:                models.KindDeal,
			DisplayName:         "redflagdeals",
			ChannelID:           cfg.ChannelRFD,
			HotChannelID:        cfg.ChannelHotRFD,
			UpdateQuota:         cfg.UpdateQuotaRFD,
			HotScore:            20,
			HotWindow:           cfg.HotWindow,
			SuppressScoreStates: []string{models.StateExpired, models.StateMoved},
			RestoreDealerPrefix: true,
			TrackAbsence:        true,
			NotifyOnGone:        true,
			BuildLink: func(item *models.Item) string {
				return fmt.Sprintf(cfg.RFDDealURL, item.ID)
			},
		},
	)
}

// NewFreeDealRegistry wires the storefront giveaway sources. Giveaway ids
// carry a source prefix, so the store link is captured at scrape time.
func NewFreeDealRegistry(cfg *config.Config) *Registry {
	storeLink := func(item *models.Item) string {
		return item.Link
	}

	return NewRegistry(
		Capabilities{
			Source:       models.Epic,
			Kind:         models.KindFreeDeal,
			DisplayName:  "Epic",
			ChannelID:    cfg.ChannelEpic,
			ExpiryGated:  true,
			NotifyOnGone: true,
			BuildLink:    storeLink,
		},
		Capabilities{
			Source:       models.GOG,
			Kind:         models.KindFreeDeal,
			DisplayName:  "GOG",
			ChannelID:    cfg.ChannelGOG,
			ExpiryGated:  true,
			NotifyOnGone: true,
			BuildLink:    storeLink,
		},
		Capabilities{
			Source:       models.Steam,
			Kind:         models.KindFreeDeal,
			DisplayName:  "Steam",
			ChannelID:    cfg.ChannelSteam,
			ExpiryGated:  true,
			NotifyOnGone: true,
			BuildLink:    storeLink,
		},
	)
}

// NewRSSRegistry wires one capability record per configured feed. Articles
// carry their own external link, are never hot and are purged silently.
func NewRSSRegistry(feeds []config.RSSFeed) *Registry {
	r := NewRegistry()

	for _, feed := range feeds {
		r.Register(Capabilities{
			Source:      models.Source(feed.ID),
			Kind:        models.KindArticle,
			DisplayName: feed.ID,
			ChannelID:   feed.ChannelID,
			BuildLink: func(item *models.Item) string {
				return item.Link
			},
		})
	}

	return r
}
