package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/dealwatch/dealwatch/internal/common/httputil"
	"github.com/dealwatch/dealwatch/internal/config"
	"github.com/dealwatch/dealwatch/internal/domain/errors"
)

type EmbedFooter struct {
	Text string `json:"text"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Client is a thin Discord REST client covering the four calls the
// dispatcher needs: identity check, send, fetch and edit.
type Client struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger

	mu       sync.Mutex
	loggedIn bool
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	client := httputil.CreateResilientHTTPClient(cfg, logger, "discord")
	client.SetHeader("Authorization", "Bot "+cfg.DiscordBotToken)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		client:  client,
		baseURL: cfg.DiscordAPIURL,
		logger:  logger,
	}
}

// Login verifies the bot token against /users/@me. The check runs once per
// process; later calls return immediately.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn {
		return nil
	}

	var identity struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&identity).
		Get(c.baseURL + "/users/@me")
	if err != nil {
		return &errors.ErrLoginFailed{Cause: err}
	}

	if !resp.IsSuccess() {
		return &errors.ErrLoginFailed{Cause: &errors.HTTPError{StatusCode: resp.StatusCode()}}
	}

	c.loggedIn = true
	c.logger.Info("logged in to discord", "username", identity.Username)

	return nil
}

// Send posts a message and returns its id.
func (c *Client) Send(ctx context.Context, channelID string, message *Message) (string, error) {
	var created struct {
		ID string `json:"id"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(message).
		SetResult(&created).
		Post(fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID))
	if err != nil {
		return "", fmt.Errorf("sending message to channel %s: %w", channelID, err)
	}

	if !resp.IsSuccess() {
		return "", &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	return created.ID, nil
}

// Fetch confirms a message still exists before an edit attempt.
func (c *Client) Fetch(ctx context.Context, channelID, messageID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/channels/%s/messages/%s", c.baseURL, channelID, messageID))
	if err != nil {
		return fmt.Errorf("fetching message %s: %w", messageID, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return &errors.ErrMessageNotFound{ChannelID: channelID, MessageID: messageID}
	}

	if !resp.IsSuccess() {
		return &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	return nil
}

func (c *Client) Edit(ctx context.Context, channelID, messageID string, message *Message) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(message).
		Patch(fmt.Sprintf("%s/channels/%s/messages/%s", c.baseURL, channelID, messageID))
	if err != nil {
		return fmt.Errorf("editing message %s: %w", messageID, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return &errors.ErrMessageNotFound{ChannelID: channelID, MessageID: messageID}
	}

	if !resp.IsSuccess() {
		return &errors.HTTPError{StatusCode: resp.StatusCode()}
	}

	return nil
}
