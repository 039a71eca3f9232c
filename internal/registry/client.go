// Package registry fetches nightly build tags from the Docker Hub v2
// listing API. It is a pure network read: pages are followed via the
// cursor URL the API returns, malformed records are dropped with a
// warning, and nothing here mutates any state.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/scottopell/nightlies/internal/nightly"
)

// tagPage is one page of the listing endpoint. Only the fields we consume
// are decoded; everything else the API sends is ignored.
type tagPage struct {
	Next    string            `json:"next"`
	Results []json.RawMessage `json:"results"`
}

type tagRecord struct {
	Name       string    `json:"name"`
	LastPushed time.Time `json:"tag_last_pushed"`
	Digest     string    `json:"digest"`
}

// Client lists build tags for one image repository.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tagPrefix  string
	pageSize   int
}

func NewClient(httpClient *http.Client, baseURL, tagPrefix string, pageSize int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		tagPrefix:  tagPrefix,
		pageSize:   pageSize,
	}
}

// FetchTags pages through the listing endpoint, stopping after maxPages
// pages or when the API stops returning a next cursor. Records that fail to
// decode are dropped with a warning; a failed page request is retried with
// exponential backoff before the whole fetch is abandoned.
func (c *Client) FetchTags(ctx context.Context, maxPages int) ([]nightly.Tag, error) {
	pageURL, err := c.firstPageURL()
	if err != nil {
		return nil, err
	}

	var tags []nightly.Tag
	for page := 0; page < maxPages; page++ {
		result, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetching registry page %d: %w", page+1, err)
		}

		for _, raw := range result.Results {
			var rec tagRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				slog.WarnContext(ctx, "Dropping undecodable tag record", "error", err)
				continue
			}
			tags = append(tags, nightly.Tag{
				Name:       rec.Name,
				LastPushed: rec.LastPushed,
				Digest:     rec.Digest,
			})
		}

		if result.Next == "" {
			break
		}
		pageURL = result.Next
	}

	slog.DebugContext(ctx, "Fetched registry tags", "count", len(tags))
	return tags, nil
}

func (c *Client) firstPageURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid registry URL %q: %w", c.baseURL, err)
	}
	q := u.Query()
	q.Set("page_size", strconv.Itoa(c.pageSize))
	q.Set("name", c.tagPrefix)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*tagPage, error) {
	op := func() (*tagPage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("registry returned %s: %s", resp.Status, body)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		var page tagPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decoding registry response: %w", err))
		}
		return &page, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(4),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
}
