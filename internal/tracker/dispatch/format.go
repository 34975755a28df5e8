package dispatch

import (
	"fmt"
	"strings"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/discord"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

const (
	embedTitleLimit = 250

	colorDeal = 2829617
	colorFree = 2303786
)

// BuildMessage renders an item as the single-embed message used for both
// fresh sends and edits, so an edit always reflects the item's current
// state.
func BuildMessage(caps sources.Capabilities, item *models.Item) *discord.Message {
	embed := discord.Embed{
		URL: caps.BuildLink(item),
	}

	switch item.Kind {
	case models.KindFreeDeal:
		embed.Title = decorateTitle(item, freeDealTitle(caps, item))
		embed.Color = colorFree
		embed.Description = expiryLine(item)
	case models.KindArticle:
		embed.Title = decorateTitle(item, item.Title)
		embed.Color = colorDeal
	default:
		embed.Title = decorateTitle(item, item.Title)
		embed.Color = colorDeal
		embed.Footer = &discord.EmbedFooter{Text: footerLine(item)}
	}

	return &discord.Message{Embeds: []discord.Embed{embed}}
}

func decorateTitle(item *models.Item, title string) string {
	title = trimTitle(title)

	if item.Terminal() {
		title = "~~" + title + "~~"
	}

	if item.IsHot {
		title = "🔥 " + title
	}

	return title
}

func trimTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= embedTitleLimit {
		return title
	}

	return string(runes[:embedTitleLimit-1]) + "…"
}

func freeDealTitle(caps sources.Capabilities, item *models.Item) string {
	return fmt.Sprintf("[%s] %s (Free / 100%% Off)", caps.DisplayName, item.Title)
}

func expiryLine(item *models.Item) string {
	if item.ExpiryAt == nil {
		return ""
	}

	if item.Terminal() {
		return fmt.Sprintf("Expired <t:%d:f>", item.ExpiryAt.Unix())
	}

	return fmt.Sprintf("Expires <t:%d:f>", item.ExpiryAt.Unix())
}

func footerLine(item *models.Item) string {
	parts := []string{
		fmt.Sprintf("+%d score", item.Score),
		fmt.Sprintf("%d %s", item.Comments, pluralComments(item.Comments)),
	}

	if item.Tag != "" {
		parts = append(parts, item.Tag)
	}

	return strings.Join(parts, "  ·  ")
}

func pluralComments(n int) string {
	if n == 1 {
		return "comment"
	}

	return "comments"
}
