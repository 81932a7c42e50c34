package gimage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
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

// HTTPDoer describes the HTTP client used by the image-search service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client searches the secondary image provider for animated results.
type Client struct {
	baseURL  string
	apiKey   string
	engineID string
	timeout  time.Duration
	client   HTTPDoer
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

// NewClient constructs the secondary provider client, or nil when the
// provider is not configured.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil || !cfg.GoogleConfigured() {
		return nil
	}
	timeout := time.Duration(cfg.Google.TimeoutSeconds) * time.Second
	c := &Client{
		baseURL:  cfg.Google.BaseURL,
		apiKey:   cfg.Google.APIKey,
		engineID: cfg.Google.EngineID,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Items []struct {
		Link  string `json:"link"`
		Title string `json:"title"`
	} `json:"items"`
}

// Search fetches up to count animated images for query in one batched call.
// The API caps a single page at 10 results; count is clamped accordingly.
func (c *Client) Search(ctx context.Context, query string, count int) ([]media.MediaItem, error) {
	if c == nil {
		return nil, services.Wrap(services.ErrConfiguration, "gimage", "search", "client not configured", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" || count <= 0 {
		return nil, nil
	}
	if count > 10 {
		count = 10
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(count))
	params.Set("searchType", "image")
	params.Set("fileType", "gif")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gimage", "search", "build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, services.Wrap(services.ErrTimeout, "gimage", "search", query, err)
		}
		return nil, services.Wrap(services.ErrProviderUnavailable, "gimage", "search", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		marker := services.ErrProviderUnavailable
		if resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrQuotaExhausted
		}
		return nil, services.Wrap(marker, "gimage", "search",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "gimage", "search", "decode response", err)
	}

	items := make([]media.MediaItem, 0, len(parsed.Items))
	for _, hit := range parsed.Items {
		if hit.Link == "" {
			continue
		}
		items = append(items, media.MediaItem{
			ID:     linkID(hit.Link),
			Source: media.SourceGoogle,
			URL:    hit.Link,
			Title:  hit.Title,
		})
	}
	return items, nil
}

// linkID derives a stable id from the result URL; the API has no item ids of
// its own and dedup history needs one that survives re-fetches.
func linkID(link string) string {
	sum := sha1.Sum([]byte(link))
	return hex.EncodeToString(sum[:8])
}
