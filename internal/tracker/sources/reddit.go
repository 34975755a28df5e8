package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dealwatch/dealwatch/internal/common/httputil"
	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/errors"
	"github.com/dealwatch/dealwatch/internal/domain/models"
)

// RedditAuth owns the application-only OAuth token shared by the subreddit
// adapters. The token is cached until shortly before expiry.
type RedditAuth struct {
	client     *resty.Client
	tokenURL   string
	authHeader string
	userAgent  string
	logger     *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewRedditAuth(cfg *config.Config, logger *slog.Logger) *RedditAuth {
	return &RedditAuth{
		client:     httputil.CreateResilientHTTPClient(cfg, logger, "reddit_auth"),
		tokenURL:   cfg.RedditTokenURL,
		authHeader: cfg.RedditAuthHeader,
		userAgent:  cfg.RedditUserAgent,
		logger:     logger,
	}
}

func (a *RedditAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Before(a.expiresAt) {
		return a.token, nil
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("User-Agent", a.userAgent).
		SetHeader("Authorization", a.authHeader).
		SetBody("grant_type=client_credentials").
		SetResult(&tokenResponse).
		Post(a.tokenURL)
	if err != nil {
		return "", fmt.Errorf("requesting reddit access token: %w", err)
	}

	if !resp.IsSuccess() {
		return "", &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	a.token = tokenResponse.AccessToken
	// Refresh a minute early so in-flight listings never race the expiry.
	a.expiresAt = time.Now().Add(time.Duration(tokenResponse.ExpiresIn-60) * time.Second)

	a.logger.Info("acquired reddit access token", "expires_in", tokenResponse.ExpiresIn)

	return a.token, nil
}

// SubredditAdapter reads the "new" listing of one subreddit.
type SubredditAdapter struct {
	client     *resty.Client
	auth       *RedditAuth
	source     models.Source
	listingURL string
	userAgent  string
	logger     *slog.Logger
}

func NewSubredditAdapter(source models.Source, auth *RedditAuth, cfg *config.Config, logger *slog.Logger) *SubredditAdapter {
	return &SubredditAdapter{
		client:     httputil.CreateResilientHTTPClient(cfg, logger, string(source)),
		auth:       auth,
		source:     source,
		listingURL: fmt.Sprintf(cfg.SubredditAPIURL, source),
		userAgent:  cfg.RedditUserAgent,
		logger:     logger,
	}
}

func (a *SubredditAdapter) Source() models.Source {
	return a.source
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID            string  `json:"id"`
				Title         string  `json:"title"`
				Score         int     `json:"score"`
				NumComments   int     `json:"num_comments"`
				CreatedUTC    float64 `json:"created_utc"`
				FlairText     string  `json:"link_flair_text"`
				FlairCSSClass string  `json:"link_flair_css_class"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *SubredditAdapter) Fetch(ctx context.Context) ([]*models.Item, error) {
	token, err := a.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	var listing redditListing

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", a.userAgent).
		SetHeader("Authorization", "Bearer "+token).
		SetResult(&listing).
		Get(a.listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetching subreddit %s: %w", a.source, err)
	}

	if !resp.IsSuccess() {
		return nil, &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	var items []*models.Item

	for _, child := range listing.Data.Children {
		post := child.Data

		// Discussion and review posts are not deals.
		if post.FlairText == "Question" || post.FlairCSSClass == "WeeklyDiscussion" || post.FlairCSSClass == "Review" {
			continue
		}

		tag := post.FlairText
		if tag == "" {
			tag = post.FlairCSSClass
		}

		items = append(items, &models.Item{
			ID:        post.ID,
			Source:    a.source,
			Kind:      models.KindDeal,
			Title:     post.Title,
			Tag:       tag,
			Score:     post.Score,
			Comments:  post.NumComments,
			CreatedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
		})
	}

	return items, nil
}
