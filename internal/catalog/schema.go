package catalog

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
)

// Range is the documented valid interval of an integer argument.
type Range struct {
	Min     int
	Max     int
	Default int
}

// Clamp coerces value into the range and reports whether it changed.
func (r Range) Clamp(value int) (int, bool) {
	switch {
	case value < r.Min:
		return r.Min, true
	case value > r.Max:
		return r.Max, true
	default:
		return value, false
	}
}

// jsonSchemaMap re-encodes a YAML-decoded schema through JSON so it holds the
// same shapes a schema read off the wire would: string keys only, numbers as float64.
func jsonSchemaMap(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("schema must use string keys and JSON values: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return out, nil
}

// TypedSchema converts a raw input schema into a jsonschema.Schema.
func TypedSchema(raw map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &schema, nil
}

// IntRanges extracts the minimum/maximum/default of every integer property.
func IntRanges(schema *jsonschema.Schema) (map[string]Range, error) {
	out := map[string]Range{}
	if schema == nil {
		return out, nil
	}
	for name, prop := range schema.Properties {
		if prop == nil || prop.Type != "integer" {
			continue
		}
		if prop.Minimum == nil || prop.Maximum == nil {
			return nil, fmt.Errorf("property %s: integer properties need minimum and maximum", name)
		}
		r := Range{Min: int(math.Ceil(*prop.Minimum)), Max: int(math.Floor(*prop.Maximum))}
		if r.Min > r.Max {
			return nil, fmt.Errorf("property %s: minimum is greater than maximum", name)
		}
		r.Default = r.Min
		if len(prop.Default) > 0 {
			var def float64
			if err := json.Unmarshal(prop.Default, &def); err != nil {
				return nil, fmt.Errorf("property %s: default must be a number", name)
			}
			r.Default, _ = r.Clamp(int(def))
		}
		out[name] = r
	}
	return out, nil
}
