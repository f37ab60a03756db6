package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tutor-mcp/configs"
	"github.com/codex-k8s/tutor-mcp/internal/constants"
)

func loadEmbedded(t *testing.T, name string) *Config {
	t.Helper()
	raw, err := configs.Load(name)
	require.NoError(t, err)
	cfg, err := Load(name, raw)
	require.NoError(t, err)
	return cfg
}

func TestEmbeddedCatalogDescribesEveryTool(t *testing.T) {
	cfg := loadEmbedded(t, configs.DefaultCatalog)
	require.Len(t, cfg.Tools, len(constants.ToolNames))
	for i, name := range constants.ToolNames {
		assert.Equal(t, name, cfg.Tools[i].Name)
	}
	assert.Equal(t, constants.TransportStdio, cfg.Server.Transport)
	assert.Equal(t, 30, cfg.Server.Limits.RatePerMinute)
	assert.True(t, cfg.Server.Idempotency.Enabled)
}

func TestEmbeddedHTTPCatalog(t *testing.T) {
	t.Setenv("TUTOR_HTTP_LISTEN", "127.0.0.1:9090")
	cfg := loadEmbedded(t, "tools-http.yaml")
	assert.Equal(t, constants.TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.HTTP.Listen)
	assert.Equal(t, "/mcp", cfg.Server.HTTP.Path)
}

func TestIntRangesFromSchema(t *testing.T) {
	cfg := loadEmbedded(t, configs.DefaultCatalog)
	tool, ok := cfg.Tool(constants.ToolPracticeProblems)
	require.True(t, ok)
	schema, err := TypedSchema(tool.InputSchema)
	require.NoError(t, err)
	ranges, err := IntRanges(schema)
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 1, Max: 5, Default: 3}, ranges["difficulty"])
	assert.Equal(t, Range{Min: 1, Max: 20, Default: 5}, ranges["count"])
	_, isString := ranges["topic"]
	assert.False(t, isString)
}

func TestRangeClamp(t *testing.T) {
	r := Range{Min: 1, Max: 5}
	v, changed := r.Clamp(15)
	assert.Equal(t, 5, v)
	assert.True(t, changed)
	v, changed = r.Clamp(-2)
	assert.Equal(t, 1, v)
	assert.True(t, changed)
	v, changed = r.Clamp(3)
	assert.Equal(t, 3, v)
	assert.False(t, changed)
}

const minimalTool = `
tools:
  - name: review_code
    description: review
    input_schema:
      type: object
      properties:
        code: {type: string}
      required: [code]
`

func TestValidateErrors(t *testing.T) {
	cases := map[string]string{
		"missing name":   "server: {version: '1'}\n" + minimalTool,
		"bad transport":  "server: {name: s, version: '1', transport: pipe}\n" + minimalTool,
		"unknown tool":   "server: {name: s, version: '1'}\ntools:\n  - name: teleport\n    description: x\n    input_schema: {type: object}\n",
		"duplicate tool": "server: {name: s, version: '1'}\n" + minimalTool + "  - name: review_code\n    description: again\n    input_schema: {type: object}\n",
		"undeclared required": "server: {name: s, version: '1'}\ntools:\n  - name: review_code\n    description: x\n    input_schema: {type: object, required: [code]}\n",
		"integer without range": "server: {name: s, version: '1'}\ntools:\n  - name: review_code\n    description: x\n    input_schema:\n      type: object\n      properties:\n        n: {type: integer}\n",
		"unknown field": "server: {name: s, version: '1', colour: blue}\n" + minimalTool,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load("test.yaml", []byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg, err := Load("test.yaml", []byte("server: {name: s, version: '1'}\n"+minimalTool))
	require.NoError(t, err)
	assert.Equal(t, constants.TransportStdio, cfg.Server.Transport)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Listen)
	assert.Equal(t, "/mcp", cfg.Server.HTTP.Path)
}

func TestRenderReportsMissingEnv(t *testing.T) {
	raw := "server: {name: '{{ env \"TUTOR_TEST_SURELY_UNSET\" }}', version: '1'}\n" + minimalTool
	_, err := Load("test.yaml", []byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TUTOR_TEST_SURELY_UNSET")
}

func TestEmbeddedCatalogCachePolicy(t *testing.T) {
	for _, name := range configs.Names() {
		cfg := loadEmbedded(t, name)
		assert.Equal(t, constants.CacheKeyStrategyAuto, cfg.Server.Idempotency.KeyStrategy, name)
		for _, tool := range cfg.Tools {
			sampled := tool.Name == constants.ToolSocraticDialogue || tool.Name == constants.ToolNewsNewsletter
			assert.Equal(t, !sampled, tool.Cacheable(), "%s: %s", name, tool.Name)
		}
	}
}

func TestIdempotencyDefaultsToAutoKeys(t *testing.T) {
	raw := "server: {name: s, version: '1', idempotency_cache: {enabled: true}}\n" + minimalTool
	cfg, err := Load("test.yaml", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, constants.CacheKeyStrategyAuto, cfg.Server.Idempotency.KeyStrategy)
	tool, ok := cfg.Tool("review_code")
	require.True(t, ok)
	assert.True(t, tool.Cacheable())
}

func TestSchemaNumbersDecodeAsJSON(t *testing.T) {
	cfg := loadEmbedded(t, configs.DefaultCatalog)
	tool, ok := cfg.Tool(constants.ToolLearningPath)
	require.True(t, ok)
	props, ok := tool.InputSchema["properties"].(map[string]any)
	require.True(t, ok)
	weeks, ok := props["week_count"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), weeks["minimum"])
	assert.Equal(t, float64(52), weeks["maximum"])

	raw := "server: {name: s, version: '1'}\ntools:\n  - name: review_code\n    description: x\n    input_schema:\n      type: object\n      properties:\n        1: {type: string}\n"
	_, err := Load("test.yaml", []byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tools[0].input_schema")
}
