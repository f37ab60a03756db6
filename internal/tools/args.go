package tools

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
)

// decodeArgs decodes free-form call arguments into a typed parameter struct.
// Weak typing lets "4" decode into an int field.
func decodeArgs(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return errorsx.New(errorsx.KindInvalidArguments, "invalid arguments: %v", err)
	}
	return nil
}

func requireText(value, field string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errorsx.New(errorsx.KindInvalidArguments, "%s cannot be blank", field)
	}
	return value, nil
}

func textOr(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

// oneOf returns value when it is a known option, otherwise fallback with a note.
func (c *call) oneOf(field, value string, options []string, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	for _, option := range options {
		if option == value {
			return value
		}
	}
	c.notef("%s %q is not one of %s; using %s", field, value, strings.Join(options, ", "), fallback)
	return fallback
}

// intParam applies the catalog default and range to an integer argument.
func (c *call) intParam(field string, value *int) int {
	r, ok := c.tool.ranges[field]
	if !ok {
		if value == nil {
			return 0
		}
		return *value
	}
	if value == nil {
		return r.Default
	}
	applied, changed := r.Clamp(*value)
	if changed {
		c.meta.Clamped = append(c.meta.Clamped, Clamp{
			Field:     field,
			Requested: *value,
			Applied:   applied,
			Min:       r.Min,
			Max:       r.Max,
		})
	}
	return applied
}

func (c *call) notef(format string, args ...any) {
	c.meta.Notes = append(c.meta.Notes, fmt.Sprintf(format, args...))
}

func normalizeKey(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
