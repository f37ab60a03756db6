package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/timeutil"
)

const (
	defaultBaseURL = "https://newsapi.org/v2"
	maxPageSize    = 100
)

// Options configures the NewsAPI client.
type Options struct {
	// APIKey is sent in the X-Api-Key header. An empty key makes every search fail.
	APIKey string
	// BaseURL is the API root.
	BaseURL string
	// Timeout bounds a single request.
	Timeout time.Duration
	// RatePerMinute paces outgoing requests; 0 disables pacing.
	RatePerMinute int
	// Language filters articles; defaults to en.
	Language string
}

// Client searches the NewsAPI "everything" endpoint.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	limiter  *rate.Limiter
	client   *resty.Client
}

// NewClient creates a NewsAPI client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.Timeout = timeutil.OrDefault(opts.Timeout, 10*time.Second)
	if opts.Language == "" {
		opts.Language = "en"
	}
	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)

	return &Client{
		apiKey:   strings.TrimSpace(opts.APIKey),
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		language: opts.Language,
		limiter:  limiter,
		client:   client,
	}
}

type everythingResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search returns articles matching q, newest first as ordered by the API.
func (c *Client) Search(ctx context.Context, q Query) ([]Article, error) {
	if c.apiKey == "" {
		return nil, errorsx.Capability(ErrMissingCredential, Capability, errorsx.KindExternalCapability)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errorsx.Capability(fmt.Errorf("%w: wait for rate limiter: %v", ErrRateLimited, err), Capability, errorsx.KindExternalCapability)
		}
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	params := map[string]string{
		"q":        q.Query,
		"sortBy":   "publishedAt",
		"language": c.language,
		"pageSize": strconv.Itoa(pageSize),
	}
	if !q.From.IsZero() {
		params["from"] = q.From.UTC().Format(time.RFC3339)
	}
	if !q.To.IsZero() {
		params["to"] = q.To.UTC().Format(time.RFC3339)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetQueryParams(params).
		Get(c.baseURL + "/everything")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errorsx.Capability(errorsx.New(errorsx.KindTimeout, "news search timed out: %w", err), Capability, errorsx.KindTimeout)
		}
		return nil, errorsx.Capability(fmt.Errorf("%w: %v", ErrNetwork, err), Capability, errorsx.KindExternalCapability)
	}

	var parsed everythingResponse
	decodeErr := json.Unmarshal(resp.Body(), &parsed)

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || parsed.Code == "apiKeyInvalid" || parsed.Code == "apiKeyMissing" || parsed.Code == "apiKeyDisabled":
		return nil, errorsx.Capability(fmt.Errorf("%w: %s", ErrUnauthorized, parsed.Message), Capability, errorsx.KindExternalCapability)
	case code == http.StatusTooManyRequests || parsed.Code == "rateLimited":
		return nil, errorsx.Capability(fmt.Errorf("%w: %s", ErrRateLimited, parsed.Message), Capability, errorsx.KindExternalCapability)
	case code != http.StatusOK:
		return nil, errorsx.Capability(fmt.Errorf("%w: status %d: %s", ErrNetwork, code, parsed.Message), Capability, errorsx.KindExternalCapability)
	}
	if decodeErr != nil {
		return nil, errorsx.Capability(fmt.Errorf("%w: decode response: %v", ErrNetwork, decodeErr), Capability, errorsx.KindExternalCapability)
	}

	out := make([]Article, 0, len(parsed.Articles))
	for _, item := range parsed.Articles {
		out = append(out, Article{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Source:      item.Source.Name,
			PublishedAt: item.PublishedAt,
		})
	}
	return out, nil
}
