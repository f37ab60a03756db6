package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
)

//go:embed data/*.tmpl
var files embed.FS

// KeyJSONRetry is the instruction appended when a model reply could not be parsed.
const KeyJSONRetry = "json_retry"

// Renderer renders prompts by key.
type Renderer interface {
	// Render returns the prompt stored under key, executed with data.
	Render(key string, data any) (string, error)
}

// Bundle holds parsed prompt templates keyed by file name without extension.
type Bundle struct {
	templates map[string]*template.Template
}

// Load parses every embedded prompt template.
func Load() (*Bundle, error) {
	names, err := fs.Glob(files, "data/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	parsed := make(map[string]*template.Template, len(names))
	for _, name := range names {
		raw, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		key := strings.TrimSuffix(path.Base(name), ".tmpl")
		tmpl, err := template.New(key).Option("missingkey=error").Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", key, err)
		}
		parsed[key] = tmpl
	}

	return &Bundle{templates: parsed}, nil
}

// Has reports whether a template is registered under key.
func (b *Bundle) Has(key string) bool {
	if b == nil {
		return false
	}
	_, ok := b.templates[key]
	return ok
}

// Render renders a prompt by key with the supplied data.
func (b *Bundle) Render(key string, data any) (string, error) {
	if b == nil {
		return "", fmt.Errorf("templates bundle is nil")
	}
	tmpl, ok := b.templates[key]
	if !ok {
		return "", fmt.Errorf("template not found: %s", key)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", key, err)
	}
	return strings.TrimSpace(out.String()), nil
}
