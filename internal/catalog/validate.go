package catalog

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/codex-k8s/tutor-mcp/internal/constants"
)

// Validate applies defaults and verifies required fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Server.Name == "" {
		return fmt.Errorf("server.name is required")
	}
	if cfg.Server.Version == "" {
		return fmt.Errorf("server.version is required")
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = constants.TransportStdio
	}
	switch cfg.Server.Transport {
	case constants.TransportStdio, constants.TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be stdio or http")
	}
	if cfg.Server.HTTP.Listen == "" {
		cfg.Server.HTTP.Listen = ":8080"
	}
	if cfg.Server.HTTP.Path == "" {
		cfg.Server.HTTP.Path = "/mcp"
	}
	if !strings.HasPrefix(cfg.Server.HTTP.Path, "/") {
		return fmt.Errorf("server.http.path must start with /")
	}
	if err := validateLimits("server.limits", cfg.Server.Limits); err != nil {
		return err
	}
	if cfg.Server.Idempotency.Enabled {
		if cfg.Server.Idempotency.TTL == "" {
			cfg.Server.Idempotency.TTL = "10m"
		}
		if cfg.Server.Idempotency.MaxEntries == 0 {
			cfg.Server.Idempotency.MaxEntries = 256
		}
		if cfg.Server.Idempotency.MaxEntries < 0 {
			return fmt.Errorf("server.idempotency_cache.max_entries must be >= 0")
		}
		if _, err := time.ParseDuration(cfg.Server.Idempotency.TTL); err != nil {
			return fmt.Errorf("server.idempotency_cache.ttl is invalid: %w", err)
		}
		if cfg.Server.Idempotency.KeyStrategy == "" {
			cfg.Server.Idempotency.KeyStrategy = constants.CacheKeyStrategyAuto
		}
		switch strings.ToLower(strings.TrimSpace(cfg.Server.Idempotency.KeyStrategy)) {
		case constants.CacheKeyStrategyAuto, constants.CacheKeyStrategyCorrelationID, constants.CacheKeyStrategyArgumentsHash:
		default:
			return fmt.Errorf("server.idempotency_cache.key_strategy must be auto, correlation_id, or arguments_hash")
		}
	}

	if len(cfg.Tools) == 0 {
		return fmt.Errorf("at least one tool is required")
	}
	toolNames := map[string]struct{}{}
	for i, tool := range cfg.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tools[%d].name is required", i)
		}
		if !slices.Contains(constants.ToolNames, tool.Name) {
			return fmt.Errorf("tools[%d]: unknown tool %q", i, tool.Name)
		}
		if _, exists := toolNames[tool.Name]; exists {
			return fmt.Errorf("duplicate tool name: %s", tool.Name)
		}
		toolNames[tool.Name] = struct{}{}
		if strings.TrimSpace(tool.Description) == "" {
			return fmt.Errorf("tools[%d].description is required", i)
		}
		if tool.Temperature < 0 || tool.Temperature > 2 {
			return fmt.Errorf("tools[%d].temperature must be between 0 and 2", i)
		}
		if tool.Timeout != "" {
			if _, err := time.ParseDuration(tool.Timeout); err != nil {
				return fmt.Errorf("tools[%d].timeout is invalid: %w", i, err)
			}
		}
		if tool.Limits != nil {
			if err := validateLimits(fmt.Sprintf("tools[%d].limits", i), *tool.Limits); err != nil {
				return err
			}
		}
		if err := validateSchema(tool.InputSchema); err != nil {
			return fmt.Errorf("tools[%d].input_schema: %w", i, err)
		}
	}
	return nil
}

func validateLimits(path string, limits LimitsConfig) error {
	if limits.MaxTotal < 0 {
		return fmt.Errorf("%s.max_total must be >= 0", path)
	}
	if limits.RatePerMinute < 0 {
		return fmt.Errorf("%s.rate_per_minute must be >= 0", path)
	}
	return nil
}

func validateSchema(raw map[string]any) error {
	if raw == nil {
		return fmt.Errorf("schema is required")
	}
	schema, err := TypedSchema(raw)
	if err != nil {
		return err
	}
	if schema.Type != "object" {
		return fmt.Errorf("schema type must be object")
	}
	if _, err := schema.Resolve(nil); err != nil {
		return fmt.Errorf("schema does not resolve: %w", err)
	}
	for _, field := range schema.Required {
		if _, ok := schema.Properties[field]; !ok {
			return fmt.Errorf("required field %s is not declared", field)
		}
	}
	if _, err := IntRanges(schema); err != nil {
		return err
	}
	return nil
}
