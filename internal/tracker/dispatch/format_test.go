package dispatch_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/dispatch"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

func dealCaps() sources.Capabilities {
	return sources.Capabilities{
		Source:      models.GameDeals,
		Kind:        models.KindDeal,
		DisplayName: "gamedeals",
		BuildLink:   func(item *models.Item) string { return "https://example.com/" + item.ID },
	}
}

func TestBuildMessage_DealEmbed(t *testing.T) {
	item := &models.Item{
		ID:       "d1",
		Source:   models.GameDeals,
		Kind:     models.KindDeal,
		Title:    "50% off everything",
		Tag:      "Sale",
		Score:    42,
		Comments: 7,
	}

	message := dispatch.BuildMessage(dealCaps(), item)

	require.Len(t, message.Embeds, 1)
	embed := message.Embeds[0]

	assert.Equal(t, "50% off everything", embed.Title)
	assert.Equal(t, "https://example.com/d1", embed.URL)
	assert.Equal(t, 2829617, embed.Color)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "+42 score  ·  7 comments  ·  Sale", embed.Footer.Text)
}

func TestBuildMessage_SingularComment(t *testing.T) {
	item := &models.Item{Kind: models.KindDeal, Title: "deal", Score: 1, Comments: 1}

	message := dispatch.BuildMessage(dealCaps(), item)

	assert.Equal(t, "+1 score  ·  1 comment", message.Embeds[0].Footer.Text)
}

func TestBuildMessage_HotPrefix(t *testing.T) {
	item := &models.Item{Kind: models.KindDeal, Title: "deal", IsHot: true}

	message := dispatch.BuildMessage(dealCaps(), item)

	assert.Equal(t, "🔥 deal", message.Embeds[0].Title)
}

func TestBuildMessage_TerminalStrikethrough(t *testing.T) {
	item := &models.Item{Kind: models.KindDeal, Title: "deal", Tag: models.StateExpired}

	message := dispatch.BuildMessage(dealCaps(), item)

	assert.Equal(t, "~~deal~~", message.Embeds[0].Title)
}

func TestBuildMessage_HotTerminalOrdering(t *testing.T) {
	item := &models.Item{Kind: models.KindDeal, Title: "deal", IsHot: true, Tag: models.StateUntracked}

	message := dispatch.BuildMessage(dealCaps(), item)

	assert.Equal(t, "🔥 ~~deal~~", message.Embeds[0].Title)
}

func TestBuildMessage_TitleTrimmed(t *testing.T) {
	item := &models.Item{Kind: models.KindDeal, Title: strings.Repeat("a", 400)}

	message := dispatch.BuildMessage(dealCaps(), item)

	title := []rune(message.Embeds[0].Title)
	assert.Len(t, title, 250)
	assert.Equal(t, '…', title[249])
}

func TestBuildMessage_FreeDealEmbed(t *testing.T) {
	caps := sources.Capabilities{
		Source:      models.Epic,
		Kind:        models.KindFreeDeal,
		DisplayName: "Epic",
		BuildLink:   func(item *models.Item) string { return item.Link },
	}

	expiry := time.Date(2026, 9, 4, 15, 0, 0, 0, time.UTC)
	item := &models.Item{
		ID:       "Epic-some-game",
		Source:   models.Epic,
		Kind:     models.KindFreeDeal,
		Title:    "Some Game",
		Link:     "https://store.epicgames.com/en-US/p/some-game",
		ExpiryAt: &expiry,
	}

	message := dispatch.BuildMessage(caps, item)

	embed := message.Embeds[0]
	assert.Equal(t, "[Epic] Some Game (Free / 100% Off)", embed.Title)
	assert.Equal(t, 2303786, embed.Color)
	assert.Equal(t, "Expires <t:1788534000:f>", embed.Description)
	assert.Nil(t, embed.Footer)
}

func TestBuildMessage_ExpiredFreeDeal(t *testing.T) {
	caps := sources.Capabilities{
		Source:      models.Epic,
		Kind:        models.KindFreeDeal,
		DisplayName: "Epic",
		BuildLink:   func(item *models.Item) string { return item.Link },
	}

	expiry := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	item := &models.Item{
		Kind:     models.KindFreeDeal,
		Title:    "Some Game",
		Tag:      models.StateExpired,
		ExpiryAt: &expiry,
	}

	message := dispatch.BuildMessage(caps, item)

	assert.True(t, strings.HasPrefix(message.Embeds[0].Description, "Expired <t:"))
	assert.True(t, strings.HasPrefix(message.Embeds[0].Title, "~~"))
}
