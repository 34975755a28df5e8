package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dealwatch/dealwatch/internal/common/httputil"
	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// EpicAdapter reads the free-games promotions feed of the Epic store.
type EpicAdapter struct {
	client        *resty.Client
	promotionsURL string
	storeLink     string
	logger        *slog.Logger
}

func NewEpicAdapter(cfg *config.Config, logger *slog.Logger) *EpicAdapter {
	return &EpicAdapter{
		client:        httputil.CreateResilientHTTPClient(cfg, logger, "epic"),
		promotionsURL: cfg.EpicPromotionsURL,
		storeLink:     cfg.EpicStoreLink,
		logger:        logger,
	}
}

func (a *EpicAdapter) Source() models.Source {
	return models.Epic
}

type epicPromotions struct {
	Data struct {
		Catalog struct {
			SearchStore struct {
				Elements []epicElement `json:"elements"`
			} `json:"searchStore"`
		} `json:"Catalog"`
	} `json:"data"`
}

type epicElement struct {
	Title       string `json:"title"`
	OfferType   string `json:"offerType"`
	ProductSlug string `json:"productSlug"`
	Price       struct {
		TotalPrice struct {
			DiscountPrice int `json:"discountPrice"`
		} `json:"totalPrice"`
	} `json:"price"`
	OfferMappings []struct {
		PageSlug string `json:"pageSlug"`
	} `json:"offerMappings"`
	CatalogNs struct {
		Mappings []struct {
			PageSlug string `json:"pageSlug"`
		} `json:"mappings"`
	} `json:"catalogNs"`
	Promotions *struct {
		PromotionalOffers []struct {
			PromotionalOffers []struct {
				EndDate time.Time `json:"endDate"`
			} `json:"promotionalOffers"`
		} `json:"promotionalOffers"`
	} `json:"promotions"`
}

func (a *EpicAdapter) Fetch(ctx context.Context) ([]*models.Item, error) {
	var promotions epicPromotions

	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&promotions).
		Get(a.promotionsURL)
	if err != nil {
		return nil, fmt.Errorf("fetching epic promotions: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	now := time.Now()

	var items []*models.Item

	for _, element := range promotions.Data.Catalog.SearchStore.Elements {
		if element.Price.TotalPrice.DiscountPrice != 0 || element.Promotions == nil ||
			len(element.Promotions.PromotionalOffers) == 0 {
			continue
		}

		slug := element.ProductSlug

		switch {
		case len(element.OfferMappings) > 0:
			slug = element.OfferMappings[0].PageSlug
		case len(element.CatalogNs.Mappings) > 0:
			slug = element.CatalogNs.Mappings[0].PageSlug
		}

		item := &models.Item{
			ID:        "Epic-" + slug,
			Source:    models.Epic,
			Kind:      models.KindFreeDeal,
			Title:     element.Title,
			SubKind:   element.OfferType,
			Link:      fmt.Sprintf(a.storeLink, slug),
			CreatedAt: now,
		}

		if offers := element.Promotions.PromotionalOffers[0].PromotionalOffers; len(offers) > 0 {
			endDate := offers[0].EndDate
			item.ExpiryAt = &endDate
		}

		items = append(items, item)
	}

	return items, nil
}
