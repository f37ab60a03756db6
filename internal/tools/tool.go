package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/codex-k8s/tutor-mcp/internal/catalog"
	"github.com/codex-k8s/tutor-mcp/internal/constants"
	"github.com/codex-k8s/tutor-mcp/internal/llm"
	"github.com/codex-k8s/tutor-mcp/internal/news"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
	"github.com/codex-k8s/tutor-mcp/internal/templates"
)

// Deps are the capabilities shared by all handlers.
type Deps struct {
	// Model answers prompt-backed tools.
	Model llm.Model
	// News searches articles for the newsletter.
	News news.Searcher
	// Prompts renders tool prompts.
	Prompts templates.Renderer
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

type handler func(ctx context.Context, c *call) (any, error)

var handlers = map[string]handler{
	constants.ToolSocraticDialogue:     socraticDialogue,
	constants.ToolLearningPath:         learningPath,
	constants.ToolConceptPrerequisites: conceptPrerequisites,
	constants.ToolKnowledgeGaps:        knowledgeGaps,
	constants.ToolCodeReview:           codeReview,
	constants.ToolPracticeProblems:     practiceProblems,
	constants.ToolResearchPaper:        researchPaper,
	constants.ToolStudySchedule:        studySchedule,
	constants.ToolNewsNewsletter:       newsNewsletter,
}

// Tool is a catalog-declared tool bound to its handler.
type Tool struct {
	cfg    catalog.ToolConfig
	ranges map[string]catalog.Range
	deps   Deps
	handle handler
}

type call struct {
	tool *Tool
	args map[string]any
	meta Metadata
}

// Build binds every catalog tool to its handler, in catalog order.
func Build(cfg *catalog.Config, deps Deps) ([]*Tool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if deps.Prompts == nil {
		return nil, fmt.Errorf("prompt templates are required")
	}
	out := make([]*Tool, 0, len(cfg.Tools))
	for _, toolCfg := range cfg.Tools {
		tool, err := New(toolCfg, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, tool)
	}
	return out, nil
}

// New binds a single tool declaration to its handler.
func New(cfg catalog.ToolConfig, deps Deps) (*Tool, error) {
	handle, ok := handlers[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s: no handler", cfg.Name)
	}
	schema, err := catalog.TypedSchema(cfg.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", cfg.Name, err)
	}
	ranges, err := catalog.IntRanges(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", cfg.Name, err)
	}
	return &Tool{cfg: cfg, ranges: ranges, deps: deps, handle: handle}, nil
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return t.cfg.Name
}

// Descriptor returns what discovery reports for the tool.
func (t *Tool) Descriptor() protocol.ToolDescriptor {
	return protocol.ToolDescriptor{
		Name:        t.cfg.Name,
		Title:       t.cfg.Title,
		Description: t.cfg.Description,
		InputSchema: t.cfg.InputSchema,
	}
}

// Invoke runs the handler. Metadata is returned even when the handler fails.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (Output, error) {
	c := &call{
		tool: t,
		args: args,
		meta: Metadata{Tool: t.cfg.Name, Clamped: []Clamp{}, Notes: []string{}},
	}
	result, err := t.handle(ctx, c)
	if err != nil {
		return Output{Metadata: c.meta}, err
	}
	return Output{Result: result, Metadata: c.meta}, nil
}
