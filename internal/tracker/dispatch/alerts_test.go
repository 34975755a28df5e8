package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealwatch/dealwatch/internal/domain/models"
	"github.com/dealwatch/dealwatch/internal/tracker/dispatch"
)

func newTestAlertMatcher(transport *fakeTransport) *dispatch.AlertMatcher {
	return dispatch.NewAlertMatcher(
		testRegistry(), transport, dispatch.NewPacer(0),
		"server-1", "alerts-chan", testLogger(),
	)
}

func TestAlertMatch_CaseInsensitiveKeyword(t *testing.T) {
	transport := newFakeTransport()
	matcher := newTestAlertMatcher(transport)

	subs := []*models.Subscription{
		{Source: models.GameDeals, Keyword: "monitor", RoleID: "r1"},
	}
	items := []*models.Item{
		{ID: "d1", Source: models.GameDeals, Title: "Great 4K MONITOR sale", Refs: models.MessageRefs{Primary: "p1"}},
	}

	err := matcher.Match(context.Background(), subs, items)
	require.NoError(t, err)

	require.Len(t, transport.sent, 1)
	sent := transport.sent[0]
	assert.Equal(t, "alerts-chan", sent.channelID)
	assert.Equal(t, "<@&r1>", sent.message.Content)
	assert.Equal(t, "https://discord.com/channels/server-1/chan/p1", sent.message.Embeds[0].Description)
}

func TestAlertMatch_SourceScoped(t *testing.T) {
	transport := newFakeTransport()
	matcher := newTestAlertMatcher(transport)

	subs := []*models.Subscription{
		{Source: models.BapcSalesCanada, Keyword: "monitor", RoleID: "r1"},
	}
	items := []*models.Item{
		{ID: "d1", Source: models.GameDeals, Title: "monitor sale"},
	}

	err := matcher.Match(context.Background(), subs, items)
	require.NoError(t, err)

	assert.Empty(t, transport.sent, "subscription for another source must not fire")
}

func TestAlertMatch_MultipleRolesOneMessage(t *testing.T) {
	transport := newFakeTransport()
	matcher := newTestAlertMatcher(transport)

	subs := []*models.Subscription{
		{Source: models.GameDeals, Keyword: "monitor", RoleID: "r1"},
		{Source: models.GameDeals, Keyword: "4k", RoleID: "r2"},
		{Source: models.GameDeals, Keyword: "keyboard", RoleID: "r3"},
	}
	items := []*models.Item{
		{ID: "d1", Source: models.GameDeals, Title: "4K monitor blowout"},
	}

	err := matcher.Match(context.Background(), subs, items)
	require.NoError(t, err)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, "<@&r1> <@&r2>", transport.sent[0].message.Content)
}

func TestAlertMatch_NoMatchesNoTraffic(t *testing.T) {
	transport := newFakeTransport()
	matcher := newTestAlertMatcher(transport)

	subs := []*models.Subscription{
		{Source: models.GameDeals, Keyword: "keyboard", RoleID: "r1"},
	}
	items := []*models.Item{
		{ID: "d1", Source: models.GameDeals, Title: "monitor sale"},
	}

	err := matcher.Match(context.Background(), subs, items)
	require.NoError(t, err)
	assert.Empty(t, transport.sent)
}

func TestAlertMatch_InvalidPatternSkipped(t *testing.T) {
	transport := newFakeTransport()
	matcher := newTestAlertMatcher(transport)

	subs := []*models.Subscription{
		{Source: models.GameDeals, Keyword: "([", RoleID: "r1"},
		{Source: models.GameDeals, Keyword: "monitor", RoleID: "r2"},
	}
	items := []*models.Item{
		{ID: "d1", Source: models.GameDeals, Title: "monitor sale"},
	}

	err := matcher.Match(context.Background(), subs, items)
	require.NoError(t, err)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, "<@&r2>", transport.sent[0].message.Content)
}
