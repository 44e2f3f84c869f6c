// Package github implements the code-repository search provider: a thin
// client for the GitHub repository search API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/zombar/tracker/metrics"
	"github.com/zombar/tracker/models"
)

const DefaultBaseURL = "https://api.github.com"

// Config contains search client configuration
type Config struct {
	Token   string // optional; unauthenticated requests get lower rate limits
	BaseURL string
	PerPage int
}

// DefaultConfig returns default search client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		PerPage: 5,
	}
}

// Client searches GitHub repositories, rate limited to stay inside the
// search API budget (30 requests/minute authenticated).
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new search client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.PerPage <= 0 {
		config.PerPage = 5
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

type searchResponse struct {
	Items []repoItem `json:"items"`
}

type repoItem struct {
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
	Language    string `json:"language"`
}

// SearchRepositories returns the top repositories for a query, ranked by
// stars. An empty query returns no results without calling the API.
func (c *Client) SearchRepositories(ctx context.Context, query string) ([]models.Repo, error) {
	if query == "" {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.config.PerPage))

	req, err := http.NewRequestWithContext(ctx, "GET", c.config.BaseURL+"/search/repositories?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "search-tracker-app")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RepoSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to call github: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RepoSearches.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("github HTTP error: %d %s: %s", resp.StatusCode, resp.Status, body)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.RepoSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	repos := make([]models.Repo, 0, len(result.Items))
	for _, item := range result.Items {
		repos = append(repos, models.Repo{
			FullName:    item.FullName,
			HTMLURL:     item.HTMLURL,
			Description: item.Description,
			Stars:       item.Stars,
			Language:    item.Language,
		})
	}

	metrics.RepoSearches.WithLabelValues("ok").Inc()
	return repos, nil
}
