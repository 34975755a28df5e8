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

const gogGamePrefix = "https://www.gog.com/en/game/"

// The countdown renders as "06/24/2024 15:59" in a zone three hours ahead
// of UTC.
var gogEndDatePattern = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4}) (\d{1,}:\d{1,})`)

// GOGAdapter scrapes the storefront giveaway banner. At most one giveaway
// runs at a time; the title and expiry live on the product page, fetched
// separately per new item.
type GOGAdapter struct {
	client      *resty.Client
	giveawayURL string
	logger      *slog.Logger
}

func NewGOGAdapter(cfg *config.Config, logger *slog.Logger) *GOGAdapter {
	return &GOGAdapter{
		client:      httputil.CreateResilientHTTPClient(cfg, logger, "gog"),
		giveawayURL: cfg.GOGGiveawayURL,
		logger:      logger,
	}
}

func (a *GOGAdapter) Source() models.Source {
	return models.GOG
}

func (a *GOGAdapter) Fetch(ctx context.Context) ([]*models.Item, error) {
	doc, err := a.fetchDocument(ctx, a.giveawayURL)
	if err != nil {
		return nil, err
	}

	banner := doc.Find(".giveaway__overlay-link")
	if banner.Length() != 1 {
		return nil, nil
	}

	link, ok := banner.Attr("href")
	if !ok {
		return nil, nil
	}

	item := &models.Item{
		ID:        "GOG-" + strings.TrimPrefix(link, gogGamePrefix),
		Source:    models.GOG,
		Kind:      models.KindFreeDeal,
		Link:      link,
		CreatedAt: time.Now(),
	}

	if err := a.fillProductDetails(ctx, item); err != nil {
		a.logger.Warn("failed to read gog product details", "id", item.ID, "error", err)
	}

	return []*models.Item{item}, nil
}

// fillProductDetails reads the title and giveaway countdown off the product
// page.
func (a *GOGAdapter) fillProductDetails(ctx context.Context, item *models.Item) error {
	doc, err := a.fetchDocument(ctx, item.Link)
	if err != nil {
		return err
	}

	if title := doc.Find(".productcard-basics__title"); title.Length() == 1 {
		item.Title = strings.TrimSpace(title.Text())
	}

	countdown := strings.TrimSpace(doc.Find(".product-actions__time").First().Text())

	match := gogEndDatePattern.FindStringSubmatch(countdown)
	if match == nil {
		return fmt.Errorf("no end date in countdown text %q", countdown)
	}

	endDate, err := time.Parse(time.RFC3339, fmt.Sprintf("%s-%s-%sT%s:00Z", match[3], match[1], match[2], match[4]))
	if err != nil {
		return fmt.Errorf("parsing end date %q: %w", countdown, err)
	}

	endDate = endDate.Add(-3 * time.Hour)
	item.ExpiryAt = &endDate

	return nil
}

func (a *GOGAdapter) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	if !resp.IsSuccess() {
		return nil, &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}

	return doc, nil
}
