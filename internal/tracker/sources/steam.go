package sources

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dealwatch/dealwatch/internal/common/httputil"
	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

var (
	steamDayMonthPattern = regexp.MustCompile(`\d{1,2}\s\w{3}`)
	steamMonthDayPattern = regexp.MustCompile(`\w{3}\s\d{1,2}`)
	steamTimePattern     = regexp.MustCompile(`\d{1,2}:\d{2}`)
	steamAmPmPattern     = regexp.MustCompile(`[ap]m`)
)

// SteamAdapter reads the specials search feed. The search result carries no
// expiry, so LookupExpiry scrapes it off the store page on demand.
type SteamAdapter struct {
	client    *resty.Client
	searchURL string
	storeLink string
	logger    *slog.Logger
}

func NewSteamAdapter(cfg *config.Config, logger *slog.Logger) *SteamAdapter {
	return &SteamAdapter{
		client:    httputil.CreateResilientHTTPClient(cfg, logger, "steam"),
		searchURL: cfg.SteamSearchURL,
		storeLink: cfg.SteamStoreLink,
		logger:    logger,
	}
}

func (a *SteamAdapter) Source() models.Source {
	return models.Steam
}

type steamSearch struct {
	Items []struct {
		Name string `json:"name"`
		Logo string `json:"logo"`
	} `json:"items"`
}

func (a *SteamAdapter) Fetch(ctx context.Context) ([]*models.Item, error) {
	var search steamSearch

	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&search).
		Get(a.searchURL)
	if err != nil {
		return nil, fmt.Errorf("fetching steam specials: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	now := time.Now()

	var items []*models.Item

	for _, result := range search.Items {
		// The logo URL is the only place the search result exposes the
		// app id and content type: .../apps/<id>/... with a plural type
		// segment before it.
		logoParts := strings.Split(result.Logo, "/")
		if len(logoParts) < 6 {
			a.logger.Warn("skipping steam item with unexpected logo url", "logo", result.Logo)
			continue
		}

		appID := logoParts[5]
		subKind := strings.TrimSuffix(logoParts[4], "s")

		items = append(items, &models.Item{
			ID:        "Steam-" + appID,
			Source:    models.Steam,
			Kind:      models.KindFreeDeal,
			Title:     result.Name,
			SubKind:   subKind,
			Link:      fmt.Sprintf(a.storeLink, subKind, appID),
			CreatedAt: now,
		})
	}

	return items, nil
}

// LookupExpiry scrapes the discount countdown off the store page. The page
// needs mature-content cookies or it redirects to an age gate.
func (a *SteamAdapter) LookupExpiry(ctx context.Context, item *models.Item) (*time.Time, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Cookie", "wants_mature_content=1; birthtime=0; lastagecheckage=1-0-1900;").
		Get(item.Link)
	if err != nil {
		return nil, fmt.Errorf("fetching steam store page for %s: %w", item.ID, err)
	}

	if !resp.IsSuccess() {
		return nil, &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("parsing steam store page for %s: %w", item.ID, err)
	}

	return parseSteamExpiry(doc.Find(".game_purchase_discount_quantity").Text())
}

// parseSteamExpiry extracts the expiry from countdown text such as "Free to
// keep when you get it before 18 Sep @ 10:00am." The day/month order depends
// on locale. The page renders times in GMT-7.
func parseSteamExpiry(text string) (*time.Time, error) {
	dayMonth := steamDayMonthPattern.FindString(text)
	layout := "2 Jan 2006 3:04 pm -07:00"

	if dayMonth == "" {
		dayMonth = steamMonthDayPattern.FindString(text)
		layout = "Jan 2 2006 3:04 pm -07:00"
	}

	clock := steamTimePattern.FindString(text)
	amPm := steamAmPmPattern.FindString(text)

	if dayMonth == "" || clock == "" || amPm == "" {
		return nil, fmt.Errorf("no expiry in countdown text %q", text)
	}

	value := fmt.Sprintf("%s %d %s %s -07:00", dayMonth, time.Now().Year(), clock, amPm)

	expiry, err := time.Parse(layout, value)
	if err != nil {
		return nil, fmt.Errorf("parsing expiry %q: %w", value, err)
	}

	return &expiry, nil
}
