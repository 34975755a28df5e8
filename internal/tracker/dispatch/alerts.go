package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/discord"
	"github.com/dealwatch/dealwatch/internal/tracker/sources"
)

type Sender interface {
	Send(ctx context.Context, channelID string, message *discord.Message) (string, error)
}

// AlertMatcher pings subscribed roles when a new item's title matches their
// keyword. Matching is case-insensitive and scoped to the item's source.
type AlertMatcher struct {
	registry  *sources.Registry
	transport Sender
	pacer     *Pacer
	serverID  string
	channelID string
	logger    *slog.Logger
}

func NewAlertMatcher(
	registry *sources.Registry,
	transport Sender,
	pacer *Pacer,
	serverID, channelID string,
	logger *slog.Logger,
) *AlertMatcher {
	return &AlertMatcher{
		registry:  registry,
		transport: transport,
		pacer:     pacer,
		serverID:  serverID,
		channelID: channelID,
		logger:    logger,
	}
}

// Match walks new items oldest-first and sends one alert per item that
// matched at least one subscription, mentioning every matched role.
func (m *AlertMatcher) Match(ctx context.Context, subs []*models.Subscription, newItems []*models.Item) error {
	if m.channelID == "" || len(subs) == 0 {
		return nil
	}

	var errs error

	for i := len(newItems) - 1; i >= 0; i-- {
		item := newItems[i]

		mentions := m.matchedRoles(subs, item)
		if len(mentions) == 0 {
			continue
		}

		errs = multierr.Append(errs, m.sendAlert(ctx, item, mentions))
	}

	return errs
}

func (m *AlertMatcher) matchedRoles(subs []*models.Subscription, item *models.Item) []string {
	var mentions []string

	seen := make(map[string]bool)

	for _, sub := range subs {
		if sub.Source != item.Source || seen[sub.RoleID] {
			continue
		}

		matched, err := regexp.MatchString("(?i)"+sub.Keyword, item.Title)
		if err != nil {
			m.logger.Warn("skipping invalid subscription keyword",
				"source", sub.Source, "keyword", sub.Keyword, "error", err)
			continue
		}

		if matched {
			seen[sub.RoleID] = true
			mentions = append(mentions, "<@&"+sub.RoleID+">")
		}
	}

	return mentions
}

func (m *AlertMatcher) sendAlert(ctx context.Context, item *models.Item, mentions []string) error {
	caps, err := m.registry.Lookup(item.Source)
	if err != nil {
		m.logger.Warn("skipping alert for unknown source", "id", item.ID, "source", item.Source)
		return nil
	}

	embed := discord.Embed{
		Title: trimTitle(item.Title),
		URL:   caps.BuildLink(item),
		Color: colorDeal,
	}

	if item.Refs.Primary != "" {
		embed.Description = fmt.Sprintf("https://discord.com/channels/%s/%s/%s",
			m.serverID, caps.ChannelID, item.Refs.Primary)
	}

	if err := m.pacer.Wait(ctx); err != nil {
		return err
	}

	_, err = m.transport.Send(ctx, m.channelID, &discord.Message{
		Content: strings.Join(mentions, " "),
		Embeds:  []discord.Embed{embed},
	})

	return err
}
