package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
)

const (
	minPaperLength = 100
	maxPaperPrompt = 3000
)

var (
	reviewFocus = map[string]string{
		"all":         "bugs, style, performance, security, and best practices",
		"bugs":        "potential bugs and errors",
		"style":       "code style and readability",
		"performance": "performance optimizations",
		"security":    "security vulnerabilities",
	}
	reviewFocusOrder = []string{"all", "bugs", "style", "performance", "security"}

	problemTypes = map[string]string{
		"mixed":       "a mix of conceptual, application, and analytical problems",
		"conceptual":  "conceptual understanding questions",
		"application": "practical application problems",
		"analytical":  "deep analytical challenges",
		"debugging":   "code debugging exercises",
	}
	problemTypeOrder = []string{"mixed", "conceptual", "application", "analytical", "debugging"}

	difficultyLabels = []string{"beginner", "easy", "medium", "hard", "expert"}
)

func socraticDialogue(ctx context.Context, c *call) (any, error) {
	var p struct {
		Topic         string `mapstructure:"topic"`
		StudentAnswer string `mapstructure:"student_answer"`
		Depth         *int   `mapstructure:"depth"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	topic, err := requireText(p.Topic, "topic")
	if err != nil {
		return nil, err
	}
	depth := c.intParam("depth", p.Depth)

	prompt, err := c.prompt(map[string]any{
		"Topic":         topic,
		"StudentAnswer": strings.TrimSpace(p.StudentAnswer),
		"Depth":         depth,
	})
	if err != nil {
		return nil, err
	}
	return c.completeJSON(ctx, prompt, "questions", func(obj map[string]any) (any, error) {
		items, ok := obj["questions"].([]any)
		if !ok || len(items) == 0 {
			return nil, fmt.Errorf(`"questions" must be a non-empty array`)
		}
		for i, item := range items {
			if s, ok := item.(string); !ok || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf(`"questions"[%d] must be a non-empty string`, i)
			}
		}
		if len(items) > depth {
			obj["questions"] = items[:depth]
		}
		return obj, nil
	})
}

func learningPath(ctx context.Context, c *call) (any, error) {
	var p struct {
		Topic        string `mapstructure:"topic"`
		CurrentLevel string `mapstructure:"current_level"`
		Goal         string `mapstructure:"goal"`
		WeekCount    *int   `mapstructure:"week_count"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	topic, err := requireText(p.Topic, "topic")
	if err != nil {
		return nil, err
	}
	weeks := c.intParam("week_count", p.WeekCount)

	prompt, err := c.prompt(map[string]any{
		"Topic":        topic,
		"CurrentLevel": textOr(p.CurrentLevel, "beginner"),
		"Goal":         textOr(p.Goal, "mastery"),
		"WeekCount":    weeks,
	})
	if err != nil {
		return nil, err
	}
	result, err := c.completeJSON(ctx, prompt, "weeks", func(obj map[string]any) (any, error) {
		items, err := objectList(obj, "weeks")
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			week := item.(map[string]any)
			if _, ok := week["topics"].([]any); !ok {
				return nil, fmt.Errorf(`"weeks"[%d].topics must be an array`, i)
			}
			if _, ok := week["week"]; !ok {
				week["week"] = i + 1
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	items := result.([]any)
	switch {
	case len(items) > weeks:
		items = items[:weeks]
	case len(items) < weeks:
		c.notef("model returned %d of %d weeks", len(items), weeks)
	}
	return items, nil
}

func conceptPrerequisites(ctx context.Context, c *call) (any, error) {
	var p struct {
		Concept string `mapstructure:"concept"`
		Depth   *int   `mapstructure:"depth"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	concept, err := requireText(p.Concept, "concept")
	if err != nil {
		return nil, err
	}
	prompt, err := c.prompt(map[string]any{
		"Concept": concept,
		"Depth":   c.intParam("depth", p.Depth),
	})
	if err != nil {
		return nil, err
	}
	return c.completeJSON(ctx, prompt, "prerequisite_graph", nil)
}

func knowledgeGaps(ctx context.Context, c *call) (any, error) {
	var p struct {
		Topic              string `mapstructure:"topic"`
		StudentExplanation string `mapstructure:"student_explanation"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	topic, err := requireText(p.Topic, "topic")
	if err != nil {
		return nil, err
	}
	explanation, err := requireText(p.StudentExplanation, "student_explanation")
	if err != nil {
		return nil, err
	}
	prompt, err := c.prompt(map[string]any{
		"Topic":              topic,
		"StudentExplanation": explanation,
	})
	if err != nil {
		return nil, err
	}
	return c.completeJSON(ctx, prompt, "knowledge_gaps", nil)
}

func codeReview(ctx context.Context, c *call) (any, error) {
	var p struct {
		Code     string `mapstructure:"code"`
		Language string `mapstructure:"language"`
		Focus    string `mapstructure:"focus"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Code) == "" {
		return nil, errorsx.New(errorsx.KindInvalidArguments, "code cannot be blank")
	}
	focus := c.oneOf("focus", p.Focus, reviewFocusOrder, "all")
	language := textOr(p.Language, "python")

	prompt, err := c.prompt(map[string]any{
		"Language":         language,
		"FocusDescription": reviewFocus[focus],
		"Code":             p.Code,
	})
	if err != nil {
		return nil, err
	}
	return c.completeJSON(ctx, prompt, "issues", nil)
}

func practiceProblems(ctx context.Context, c *call) (any, error) {
	var p struct {
		Topic       string `mapstructure:"topic"`
		Difficulty  *int   `mapstructure:"difficulty"`
		ProblemType string `mapstructure:"problem_type"`
		Count       *int   `mapstructure:"count"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	topic, err := requireText(p.Topic, "topic")
	if err != nil {
		return nil, err
	}
	difficulty := c.intParam("difficulty", p.Difficulty)
	count := c.intParam("count", p.Count)
	problemType := c.oneOf("problem_type", p.ProblemType, problemTypeOrder, "mixed")

	prompt, err := c.prompt(map[string]any{
		"Topic":           topic,
		"Difficulty":      difficulty,
		"DifficultyLabel": difficultyLabel(difficulty),
		"ProblemType":     problemType,
		"TypeDescription": problemTypes[problemType],
		"Count":           count,
	})
	if err != nil {
		return nil, err
	}
	return c.completeJSON(ctx, prompt, "problems", func(obj map[string]any) (any, error) {
		items, err := objectList(obj, "problems")
		if err != nil {
			return nil, err
		}
		if len(items) > count {
			obj["problems"] = items[:count]
		}
		return obj, nil
	})
}

func researchPaper(ctx context.Context, c *call) (any, error) {
	var p struct {
		PaperText string `mapstructure:"paper_text"`
		Audience  string `mapstructure:"audience"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	text, err := requireText(p.PaperText, "paper_text")
	if err != nil {
		return nil, err
	}
	if len([]rune(text)) < minPaperLength {
		return nil, errorsx.New(errorsx.KindInvalidArguments,
			"paper_text is too short (%d characters); provide at least the abstract and key sections (%d+ characters)",
			len([]rune(text)), minPaperLength)
	}
	truncated := false
	if runes := []rune(text); len(runes) > maxPaperPrompt {
		text = string(runes[:maxPaperPrompt])
		truncated = true
		c.notef("paper_text truncated to %d characters", maxPaperPrompt)
	}

	prompt, err := c.prompt(map[string]any{
		"Audience":  textOr(p.Audience, "general"),
		"PaperText": text,
		"Truncated": truncated,
	})
	if err != nil {
		return nil, err
	}
	return c.completeJSON(ctx, prompt, "executive_summary", nil)
}

func studySchedule(ctx context.Context, c *call) (any, error) {
	var p struct {
		Topics        string `mapstructure:"topics"`
		DeadlineDays  *int   `mapstructure:"deadline_days"`
		HoursPerWeek  *int   `mapstructure:"hours_per_week"`
		LearningStyle string `mapstructure:"learning_style"`
	}
	if err := decodeArgs(c.args, &p); err != nil {
		return nil, err
	}
	topics, err := requireText(p.Topics, "topics")
	if err != nil {
		return nil, err
	}
	days := c.intParam("deadline_days", p.DeadlineDays)
	hours := c.intParam("hours_per_week", p.HoursPerWeek)
	total := totalStudyHours(hours, days)

	prompt, err := c.prompt(map[string]any{
		"Topics":          topics,
		"DeadlineDays":    days,
		"HoursPerWeek":    hours,
		"LearningStyle":   textOr(p.LearningStyle, "balanced"),
		"TotalStudyHours": total,
	})
	if err != nil {
		return nil, err
	}
	return c.completeJSON(ctx, prompt, "weekly_schedule", func(obj map[string]any) (any, error) {
		if _, err := objectList(obj, "weekly_schedule"); err != nil {
			return nil, err
		}
		obj["total_study_hours"] = total
		return obj, nil
	})
}

// totalStudyHours is hours_per_week spread over deadline_days, rounded to one decimal.
func totalStudyHours(hoursPerWeek, deadlineDays int) float64 {
	return math.Round(float64(hoursPerWeek)*float64(deadlineDays)/7*10) / 10
}

func difficultyLabel(level int) string {
	if level < 1 || level > len(difficultyLabels) {
		return "medium"
	}
	return difficultyLabels[level-1]
}
