package tools

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tutor-mcp/configs"
	"github.com/codex-k8s/tutor-mcp/internal/catalog"
	"github.com/codex-k8s/tutor-mcp/internal/constants"
	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/llm"
	"github.com/codex-k8s/tutor-mcp/internal/news"
	"github.com/codex-k8s/tutor-mcp/internal/templates"
)

type scriptedModel struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llm.Request
}

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return llm.Response{}, m.err
	}
	if len(m.replies) == 0 {
		return llm.Response{Kind: llm.KindFinal, Text: "{}"}, nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return llm.Response{Kind: llm.KindFinal, Text: reply}, nil
}

type fakeNews struct {
	articles []news.Article
	err      error
	queries  []news.Query
}

func (f *fakeNews) Search(_ context.Context, q news.Query) ([]news.Article, error) {
	f.queries = append(f.queries, q)
	return f.articles, f.err
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func buildTool(t *testing.T, name string, deps Deps) *Tool {
	t.Helper()
	raw, err := configs.Load(configs.DefaultCatalog)
	require.NoError(t, err)
	cfg, err := catalog.Load(configs.DefaultCatalog, raw)
	require.NoError(t, err)
	toolCfg, ok := cfg.Tool(name)
	require.True(t, ok)

	prompts, err := templates.Load()
	require.NoError(t, err)
	deps.Prompts = prompts
	if deps.Now == nil {
		deps.Now = func() time.Time { return fixedNow }
	}
	tool, err := New(toolCfg, deps)
	require.NoError(t, err)
	return tool
}

func TestBuildBindsEveryCatalogTool(t *testing.T) {
	raw, err := configs.Load(configs.DefaultCatalog)
	require.NoError(t, err)
	cfg, err := catalog.Load(configs.DefaultCatalog, raw)
	require.NoError(t, err)
	prompts, err := templates.Load()
	require.NoError(t, err)

	built, err := Build(cfg, Deps{Prompts: prompts})
	require.NoError(t, err)
	require.Len(t, built, len(constants.ToolNames))
	for i, tool := range built {
		assert.Equal(t, constants.ToolNames[i], tool.Descriptor().Name)
		assert.NotEmpty(t, tool.Descriptor().Description)
	}

	_, err = Build(cfg, Deps{})
	require.Error(t, err)
}

func TestLearningPathTruncatesToWeekCount(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"weeks":[
		{"week":1,"topics":["base case"],"project":"p1","resources":["r"],"assessment":"a"},
		{"week":2,"topics":["call stack"],"project":"p2","resources":["r"],"assessment":"a"},
		{"week":3,"topics":["tail calls"],"project":"p3","resources":["r"],"assessment":"a"},
		{"week":4,"topics":["memoization"],"project":"p4","resources":["r"],"assessment":"a"},
		{"week":5,"topics":["extra"],"project":"p5","resources":["r"],"assessment":"a"}
	]}`}}
	tool := buildTool(t, constants.ToolLearningPath, Deps{Model: model})

	out, err := tool.Invoke(context.Background(), map[string]any{"topic": "recursion", "week_count": 4})
	require.NoError(t, err)
	weeks, ok := out.Result.([]any)
	require.True(t, ok)
	assert.Len(t, weeks, 4)
	assert.Empty(t, out.Metadata.Clamped)
	assert.Equal(t, 1, out.Metadata.Attempts)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, llm.FormatJSON, req.Format)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Contains(t, req.Messages[0].Content, "4-week learning path")
}

func TestLearningPathClampsWeekCount(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"weeks":[{"week":1,"topics":["a"]}]}`}}
	tool := buildTool(t, constants.ToolLearningPath, Deps{Model: model})

	out, err := tool.Invoke(context.Background(), map[string]any{"topic": "recursion", "week_count": "2"})
	require.NoError(t, err)
	require.Len(t, out.Metadata.Clamped, 1)
	assert.Equal(t, Clamp{Field: "week_count", Requested: 2, Applied: 4, Min: 4, Max: 52}, out.Metadata.Clamped[0])
	assert.Contains(t, out.Metadata.Notes, "model returned 1 of 4 weeks")
}

func TestPracticeProblemsClampsDifficulty(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"problems":[{"number":1},{"number":2}]}`}}
	tool := buildTool(t, constants.ToolPracticeProblems, Deps{Model: model})

	out, err := tool.Invoke(context.Background(), map[string]any{
		"topic": "graphs", "difficulty": 15, "count": 1, "problem_type": "riddles",
	})
	require.NoError(t, err)
	require.Len(t, out.Metadata.Clamped, 1)
	assert.Equal(t, "difficulty", out.Metadata.Clamped[0].Field)
	assert.Equal(t, 5, out.Metadata.Clamped[0].Applied)
	assert.Len(t, out.Metadata.Notes, 1)

	result := out.Result.(map[string]any)
	assert.Len(t, result["problems"], 1)
	assert.Contains(t, model.requests[0].Messages[0].Content, "difficulty 5/5 (expert)")
	assert.Contains(t, model.requests[0].Messages[0].Content, "a mix of conceptual")
}

func TestRetryOnceThenOutputParse(t *testing.T) {
	model := &scriptedModel{replies: []string{"not json", `{"questions":[]}`}}
	tool := buildTool(t, constants.ToolSocraticDialogue, Deps{Model: model})

	out, err := tool.Invoke(context.Background(), map[string]any{"topic": "closures"})
	require.Error(t, err)
	assert.Equal(t, errorsx.KindOutputParse, errorsx.KindOf(err))
	assert.Equal(t, 2, out.Metadata.Attempts)

	require.Len(t, model.requests, 2)
	retry := model.requests[1].Messages
	require.Len(t, retry, 3)
	assert.Equal(t, llm.RoleAssistant, retry[1].Role)
	assert.Contains(t, retry[2].Content, `"questions"`)
}

func TestRetryRecovers(t *testing.T) {
	model := &scriptedModel{replies: []string{"```json\n{\"oops\":1}\n```", "```json\n{\"questions\":[\"Why?\",\"How?\"]}\n```"}}
	tool := buildTool(t, constants.ToolSocraticDialogue, Deps{Model: model})

	out, err := tool.Invoke(context.Background(), map[string]any{"topic": "closures", "depth": 1})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Metadata.Attempts)
	assert.Equal(t, []any{"Why?"}, out.Result.(map[string]any)["questions"])
}

func TestBlankRequiredText(t *testing.T) {
	cases := []struct {
		tool string
		args map[string]any
	}{
		{tool: constants.ToolSocraticDialogue, args: map[string]any{"topic": "   "}},
		{tool: constants.ToolConceptPrerequisites, args: map[string]any{"concept": ""}},
		{tool: constants.ToolKnowledgeGaps, args: map[string]any{"topic": "x", "student_explanation": " "}},
		{tool: constants.ToolCodeReview, args: map[string]any{"code": "\n\t"}},
		{tool: constants.ToolResearchPaper, args: map[string]any{"paper_text": "too short"}},
		{tool: constants.ToolStudySchedule, args: map[string]any{"topics": ""}},
		{tool: constants.ToolLearningPath, args: map[string]any{"topic": "x", "week_count": "many"}},
	}
	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			model := &scriptedModel{}
			tool := buildTool(t, tc.tool, Deps{Model: model})
			_, err := tool.Invoke(context.Background(), tc.args)
			require.Error(t, err)
			assert.Equal(t, errorsx.KindInvalidArguments, errorsx.KindOf(err))
			assert.Empty(t, model.requests)
		})
	}
}

func TestStudyScheduleComputesTotalHours(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"total_study_hours":999,"weekly_schedule":[{"week":1}]}`}}
	tool := buildTool(t, constants.ToolStudySchedule, Deps{Model: model})

	out, err := tool.Invoke(context.Background(), map[string]any{"topics": "sql, go", "deadline_days": 14, "hours_per_week": 6})
	require.NoError(t, err)
	assert.InDelta(t, 12.0, out.Result.(map[string]any)["total_study_hours"], 1e-9)
	assert.Contains(t, model.requests[0].Messages[0].Content, `"total_study_hours": 12.0`)
}

func TestResearchPaperTruncatesText(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"executive_summary":"short"}`}}
	tool := buildTool(t, constants.ToolResearchPaper, Deps{Model: model})

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	out, err := tool.Invoke(context.Background(), map[string]any{"paper_text": string(long)})
	require.NoError(t, err)
	assert.Contains(t, out.Metadata.Notes, "paper_text truncated to 3000 characters")
	assert.NotContains(t, model.requests[0].Messages[0].Content, string(long[:3001]))
}

func TestModelErrorsKeepCapability(t *testing.T) {
	model := &scriptedModel{err: errorsx.Capability(llm.ErrRateLimited, llm.Capability, errorsx.KindExternalCapability)}
	tool := buildTool(t, constants.ToolCodeReview, Deps{Model: model})

	_, err := tool.Invoke(context.Background(), map[string]any{"code": "print(1)"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.Equal(t, llm.Capability, errorsx.CapabilityOf(err))
	assert.Len(t, model.requests, 1)
}

func TestNewsletterCuratesAndSummarizes(t *testing.T) {
	feed := &fakeNews{articles: []news.Article{
		{Title: "Go 1.30 Released", URL: "https://go.dev/a", PublishedAt: "2026-10-13T10:00:00Z"},
		{Title: "  go 1.30   released ", URL: "https://mirror.example/a", PublishedAt: "2026-10-14T10:00:00Z"},
		{Title: "Generics deep dive", URL: "https://GO.dev/a/", PublishedAt: "2026-10-14T11:00:00Z"},
		{Title: "Fuzzing in practice", URL: "https://go.dev/b", PublishedAt: "2026-10-14T09:00:00Z"},
		{Title: "[Removed]", URL: "https://removed.com"},
		{Title: "Undated", URL: "https://go.dev/c", PublishedAt: "soon"},
	}}
	model := &scriptedModel{replies: []string{`{"title":"Go weekly","articles":[]}`}}
	tool := buildTool(t, constants.ToolNewsNewsletter, Deps{Model: model, News: feed})

	out, err := tool.Invoke(context.Background(), map[string]any{"topic": "golang", "num_articles": 2, "days_back": 3})
	require.NoError(t, err)

	require.Len(t, feed.queries, 1)
	q := feed.queries[0]
	assert.Equal(t, "golang", q.Query)
	assert.Equal(t, 4, q.PageSize)
	assert.Equal(t, fixedNow.AddDate(0, 0, -3), q.From)

	result := out.Result.(map[string]any)
	articles := result["articles"].([]news.Article)
	require.Len(t, articles, 2)
	assert.Equal(t, "Fuzzing in practice", articles[0].Title)
	assert.Equal(t, "Go 1.30 Released", articles[1].Title)
	assert.Equal(t, "Go weekly", result["newsletter"].(map[string]any)["title"])
}

func TestNewsletterPageSizeCap(t *testing.T) {
	feed := &fakeNews{}
	tool := buildTool(t, constants.ToolNewsNewsletter, Deps{News: feed})

	out, err := tool.Invoke(context.Background(), map[string]any{"num_articles": 80})
	require.NoError(t, err)
	assert.Equal(t, 100, feed.queries[0].PageSize)
	assert.Equal(t, defaultNewsTopic, feed.queries[0].Query)
	assert.Equal(t, 50, out.Metadata.Clamped[0].Applied)
}

func TestNewsletterUnauthorized(t *testing.T) {
	feed := &fakeNews{err: errorsx.Capability(news.ErrUnauthorized, news.Capability, errorsx.KindExternalCapability)}
	tool := buildTool(t, constants.ToolNewsNewsletter, Deps{News: feed})

	_, err := tool.Invoke(context.Background(), map[string]any{"topic": "ai"})
	require.Error(t, err)
	assert.ErrorIs(t, err, news.ErrUnauthorized)
	assert.Contains(t, err.Error(), "key was rejected")
	assert.Equal(t, news.Capability, errorsx.CapabilityOf(err))
}

func TestNewsletterWithoutNewsSource(t *testing.T) {
	tool := buildTool(t, constants.ToolNewsNewsletter, Deps{})
	_, err := tool.Invoke(context.Background(), nil)
	require.ErrorIs(t, err, news.ErrMissingCredential)
}

func TestNewsletterSummaryFailureKeepsArticles(t *testing.T) {
	feed := &fakeNews{articles: []news.Article{{Title: "A", URL: "https://a"}}}
	model := &scriptedModel{err: errors.New("boom")}
	tool := buildTool(t, constants.ToolNewsNewsletter, Deps{Model: model, News: feed})

	out, err := tool.Invoke(context.Background(), map[string]any{"summarize": "true"})
	require.NoError(t, err)
	result := out.Result.(map[string]any)
	assert.Nil(t, result["newsletter"])
	assert.Len(t, result["articles"], 1)
	require.Len(t, out.Metadata.Notes, 1)
	assert.Contains(t, out.Metadata.Notes[0], "newsletter summary unavailable")
}

func TestNewsletterWithoutSummary(t *testing.T) {
	feed := &fakeNews{articles: []news.Article{{Title: "A", URL: "https://a"}}}
	model := &scriptedModel{}
	tool := buildTool(t, constants.ToolNewsNewsletter, Deps{Model: model, News: feed})

	out, err := tool.Invoke(context.Background(), map[string]any{"summarize": false})
	require.NoError(t, err)
	assert.NotContains(t, out.Result.(map[string]any), "newsletter")
	assert.Empty(t, model.requests)
}

func TestCurate(t *testing.T) {
	in := []news.Article{
		{Title: "Alpha", URL: "https://x/1", PublishedAt: "2026-01-01T00:00:00Z"},
		{Title: "ALPHA", URL: "https://x/2", PublishedAt: "2026-01-05T00:00:00Z"},
		{Title: "Beta", URL: "https://x/1/", PublishedAt: "2026-01-06T00:00:00Z"},
		{Title: "Gamma", URL: "", PublishedAt: ""},
		{Title: "Delta", URL: "https://x/4", PublishedAt: "2026-01-03T00:00:00Z"},
		{Title: "", URL: ""},
	}
	out := Curate(in, 10)
	titles := make([]string, 0, len(out))
	for _, a := range out {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"Delta", "Alpha", "Gamma"}, titles)
	assert.Len(t, Curate(in, 1), 1)
	assert.Empty(t, Curate(nil, 5))
}
