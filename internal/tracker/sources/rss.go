package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// RSSAdapter reads one configured feed through gofeed.
type RSSAdapter struct {
	parser  *gofeed.Parser
	feedID  string
	feedURL string
	logger  *slog.Logger
}

func NewRSSAdapter(feed config.RSSFeed, userAgent string, logger *slog.Logger) *RSSAdapter {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	return &RSSAdapter{
		parser:  parser,
		feedID:  feed.ID,
		feedURL: feed.URL,
		logger:  logger,
	}
}

func (a *RSSAdapter) Source() models.Source {
	return models.Source(a.feedID)
}

func (a *RSSAdapter) Fetch(ctx context.Context) ([]*models.Item, error) {
	feed, err := a.parser.ParseURLWithContext(a.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", a.feedID, err)
	}

	now := time.Now()

	var items []*models.Item

	for _, entry := range feed.Items {
		guid := entry.GUID
		if guid == "" {
			guid = entry.Link
		}

		item := &models.Item{
			ID:        a.feedID + "-" + guid,
			Source:    models.Source(a.feedID),
			Kind:      models.KindArticle,
			Title:     entry.Title,
			Link:      entry.Link,
			CreatedAt: now,
		}

		// Retention runs off the article's published date when the feed
		// provides one.
		if entry.PublishedParsed != nil {
			item.CreatedAt = *entry.PublishedParsed
		}

		items = append(items, item)
	}

	return items, nil
}
