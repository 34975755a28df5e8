package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dealwatch/dealwatch/internal/common/httputil"
	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// The hot-deals forum flags merged topics with status 2; forum 68 holds the
// expired ones, everything else moved elsewhere.
const (
	rfdClosedStatus   = 2
	rfdExpiredForumID = 68
)

// RFDAdapter reads the RedFlagDeals hot-deals forum API.
type RFDAdapter struct {
	client *resty.Client
	apiURL string
	logger *slog.Logger
}

func NewRFDAdapter(cfg *config.Config, logger *slog.Logger) *RFDAdapter {
	return &RFDAdapter{
		client: httputil.CreateResilientHTTPClient(cfg, logger, "redflagdeals"),
		apiURL: cfg.RFDAPIURL,
		logger: logger,
	}
}

func (a *RFDAdapter) Source() models.Source {
	return models.RedFlagDeals
}

type rfdTopics struct {
	Topics []struct {
		TopicID      int64  `json:"topic_id"`
		Title        string `json:"title"`
		PostTime     string `json:"post_time"`
		Status       int    `json:"status"`
		ForumID      int    `json:"forum_id"`
		TotalReplies int    `json:"total_replies"`
		Offer        *struct {
			DealerName string `json:"dealer_name"`
		} `json:"offer"`
		Votes *struct {
			TotalUp   json.Number `json:"total_up"`
			TotalDown json.Number `json:"total_down"`
		} `json:"votes"`
	} `json:"topics"`
}

func (a *RFDAdapter) Fetch(ctx context.Context) ([]*models.Item, error) {
	var topics rfdTopics

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("time", fmt.Sprintf("%d", time.Now().UnixMilli())).
		SetResult(&topics).
		Get(a.apiURL)
	if err != nil {
		return nil, fmt.Errorf("fetching redflagdeals topics: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	var items []*models.Item

	for _, topic := range topics.Topics {
		item := &models.Item{
			ID:       fmt.Sprintf("%d", topic.TopicID),
			Source:   models.RedFlagDeals,
			Kind:     models.KindDeal,
			Title:    topic.Title,
			Comments: topic.TotalReplies,
		}

		if created, err := time.Parse(time.RFC3339, topic.PostTime); err == nil {
			item.CreatedAt = created
		}

		// The retailer is not part of the forum title.
		if topic.Offer != nil && topic.Offer.DealerName != "" {
			item.DealerName = topic.Offer.DealerName
			item.Title = "[" + topic.Offer.DealerName + "] " + item.Title
		}

		if topic.Votes != nil {
			up, _ := topic.Votes.TotalUp.Int64()
			down, _ := topic.Votes.TotalDown.Int64()
			item.Score = int(up - down)
		}

		if topic.Status == rfdClosedStatus {
			if topic.ForumID == rfdExpiredForumID {
				item.Tag = models.StateExpired
			} else {
				item.Tag = models.StateMoved
			}
		}

		items = append(items, item)
	}

	return items, nil
}
