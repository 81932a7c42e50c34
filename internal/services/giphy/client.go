package giphy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vjcap/internal/config"
	"vjcap/internal/media"
	"vjcap/internal/services"
)

// HTTPDoer describes the HTTP client used by the Giphy service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client searches Giphy for GIF candidates.
type Client struct {
	baseURL string
	apiKey  string
	rating  string
	timeout time.Duration
	client  HTTPDoer
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used in tests).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// NewClient constructs a Giphy client from configuration. Returns nil when no
// API key is configured; callers treat a nil client as "provider absent".
func NewClient(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil || !cfg.GiphyConfigured() {
		return nil
	}
	timeout := time.Duration(cfg.Giphy.TimeoutSeconds) * time.Second
	c := &Client{
		baseURL: cfg.Giphy.BaseURL,
		apiKey:  cfg.Giphy.APIKey,
		rating:  cfg.Giphy.Rating,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

// Search fetches up to count GIFs for query as a single batched call.
func (c *Client) Search(ctx context.Context, query string, count int) ([]media.MediaItem, error) {
	if c == nil {
		return nil, services.Wrap(services.ErrConfiguration, "giphy", "search", "client not configured", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" || count <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(count))
	if c.rating != "" {
		params.Set("rating", c.rating)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "giphy", "search", "build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, services.Wrap(services.ErrTimeout, "giphy", "search", query, err)
		}
		return nil, services.Wrap(services.ErrProviderUnavailable, "giphy", "search", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		marker := services.ErrProviderUnavailable
		if resp.StatusCode == http.StatusTooManyRequests {
			// Upstream rate limit, not an outage. The caller skips the
			// source without flagging the provider down.
			marker = services.ErrQuotaExhausted
		}
		return nil, services.Wrap(marker, "giphy", "search",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "giphy", "search", "decode response", err)
	}

	items := make([]media.MediaItem, 0, len(parsed.Data))
	for _, gif := range parsed.Data {
		if gif.ID == "" || gif.Images.Original.URL == "" {
			continue
		}
		items = append(items, media.MediaItem{
			ID:     gif.ID,
			Source: media.SourceGiphy,
			URL:    gif.Images.Original.URL,
			Title:  gif.Title,
		})
	}
	return items, nil
}
