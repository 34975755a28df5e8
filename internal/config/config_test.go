package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dealwatch/dealwatch/internal/config"
)

func TestParseRSSFeeds(t *testing.T) {
	cfg := &config.Config{
		RSSFeeds: "dealsblog|https://blog.example.com/feed.xml|chan-1, techblog|https://tech.example.com/rss|chan-2",
	}

	feeds := cfg.ParseRSSFeeds()

	assert.Equal(t, []config.RSSFeed{
		{ID: "dealsblog", URL: "https://blog.example.com/feed.xml", ChannelID: "chan-1"},
		{ID: "techblog", URL: "https://tech.example.com/rss", ChannelID: "chan-2"},
	}, feeds)
}

func TestParseRSSFeeds_MalformedEntriesSkipped(t *testing.T) {
	cfg := &config.Config{
		RSSFeeds: "dealsblog|https://blog.example.com/feed.xml|chan-1,broken-entry,|https://no-id.example.com|chan-2,,",
	}

	feeds := cfg.ParseRSSFeeds()

	assert.Len(t, feeds, 1)
	assert.Equal(t, "dealsblog", feeds[0].ID)
}

func TestParseRSSFeeds_Empty(t *testing.T) {
	cfg := &config.Config{}

	assert.Empty(t, cfg.ParseRSSFeeds())
}
