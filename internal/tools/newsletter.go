package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/news"
)

const (
	defaultNewsTopic = "artificial intelligence"
	maxNewsPageSize  = 100
	removedMarker    = "[removed]"
)

var newsletterStyles = []string{"professional", "casual", "technical", "executive"}

func newsNewsletter(ctx context.Context, c *call) (any, error) {
	var p struct {
		Topic       string `mapstructure:"topic"`
		NumArticles *int   `mapstructure:"num_articles"`
		DaysBack    *int   `mapstructure:"days_back"`
		Style       string `mapstructure:"newsletter_style"`
		Summarize   *bool  `mapstructure:"summarize"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	topic := textOr(p.Topic, defaultNewsTopic)
	limit := c.intParam("num_articles", p.NumArticles)
	daysBack := c.intParam("days_back", p.DaysBack)
	style := c.oneOf("newsletter_style", p.Style, newsletterStyles, "professional")

	searcher := c.tool.deps.News
	if searcher == nil {
		return nil, errorsx.Capability(news.ErrMissingCredential, news.Capability, errorsx.KindExternalCapability)
	}
	now := c.tool.deps.now()
	found, err := searcher.Search(ctx, news.Query{
		Query:    topic,
		From:     now.AddDate(0, 0, -daysBack),
		To:       now,
		PageSize: min(limit*2, maxNewsPageSize),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errorsx.Wrap(err, errorsx.KindTimeout)
		}
		return nil, errorsx.Capability(err, news.Capability, errorsx.KindExternalCapability)
	}

	articles := Curate(found, limit)
	if len(articles) == 0 {
		c.notef("no articles found for %q in the last %d days", topic, daysBack)
		return map[string]any{"newsletter": nil, "articles": articles}, nil
	}
	if p.Summarize != nil && !*p.Summarize {
		return map[string]any{"articles": articles}, nil
	}

	encoded, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.KindToolDispatch)
	}
	prompt, err := c.prompt(map[string]any{
		"Style":        style,
		"Topic":        topic,
		"ArticlesJSON": string(encoded),
		"Date":         now.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	newsletter, err := c.completeJSON(ctx, prompt, "title", nil)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.notef("newsletter summary unavailable: %v", err)
		return map[string]any{"newsletter": nil, "articles": articles}, nil
	}
	return map[string]any{"newsletter": newsletter, "articles": articles}, nil
}

// Curate drops duplicate and removed articles, orders the rest newest first
// and keeps at most limit. Two articles are duplicates when their normalized
// titles or normalized URLs match. Articles without a parseable publish date
// sort last, keeping their original order.
func Curate(articles []news.Article, limit int) []news.Article {
	seenTitles := map[string]struct{}{}
	seenURLs := map[string]struct{}{}
	out := make([]news.Article, 0, len(articles))
	for _, article := range articles {
		title := normalizeTitle(article.Title)
		url := normalizeURL(article.URL)
		if title == removedMarker || (title == "" && url == "") {
			continue
		}
		if _, dup := seenTitles[title]; dup && title != "" {
			continue
		}
		if _, dup := seenURLs[url]; dup && url != "" {
			continue
		}
		if title != "" {
			seenTitles[title] = struct{}{}
		}
		if url != "" {
			seenURLs[url] = struct{}{}
		}
		out = append(out, article)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := out[i].Published()
		tj, okJ := out[j].Published()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func normalizeURL(url string) string {
	url = strings.ToLower(strings.TrimSpace(url))
	return strings.TrimRight(url, "/")
}
