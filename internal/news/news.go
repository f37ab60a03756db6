package news

import (
	"context"
	"errors"
	"time"
)

// Capability is the name reported in errors raised by the news source.
const Capability = "news"

// Sentinel errors classifying news failures.
var (
	ErrMissingCredential = errors.New("news api key is not configured (set NEWSAPI_KEY)")
	ErrUnauthorized      = errors.New("news api key was rejected")
	ErrRateLimited       = errors.New("news api rate limit exceeded")
	ErrNetwork           = errors.New("news api is unreachable")
)

// Query selects articles.
type Query struct {
	Query    string
	From     time.Time
	To       time.Time
	PageSize int
}

// Article is a single news item.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

// Published parses PublishedAt; ok is false when the value is missing or malformed.
func (a Article) Published() (time.Time, bool) {
	if a.PublishedAt == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, a.PublishedAt)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Searcher finds articles.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Article, error)
}
