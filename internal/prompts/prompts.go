// Package prompts holds the catalogue of LLM prompts, loaded from an
// embedded YAML file.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt names used by the service.
const (
	Enhance = "enhance"
	Review  = "review"
	Resume  = "resume"
)

//go:embed prompts.yaml
var defaultCatalogue []byte

// Prompt is one catalogue entry.
type Prompt struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	Template    string `yaml:"template"`
	MaxTokens   int    `yaml:"max_tokens"`
	JSON        bool   `yaml:"json"`

	tmpl *template.Template
}

// Render executes the prompt template with vars.
func (p *Prompt) Render(vars any) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", p.Name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

type catalogue struct {
	SchemaVersion string    `yaml:"schema_version"`
	Prompts       []*Prompt `yaml:"prompts"`
}

// Registry indexes prompts by name.
type Registry struct {
	prompts map[string]*Prompt
}

// Load parses a catalogue. Unknown keys are rejected so typos fail fast,
// and every prompt needs a name and a template.
func Load(data []byte) (*Registry, error) {
	var cat catalogue
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cat); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalogue: %w", err)
	}
	if cat.SchemaVersion == "" {
		cat.SchemaVersion = "v1"
	}
	if cat.SchemaVersion != "v1" {
		return nil, fmt.Errorf("unsupported prompt catalogue schema_version: %s", cat.SchemaVersion)
	}

	r := &Registry{prompts: make(map[string]*Prompt, len(cat.Prompts))}
	for i, p := range cat.Prompts {
		if p.Name == "" {
			return nil, fmt.Errorf("prompt %d missing required field: name", i)
		}
		if p.Template == "" {
			return nil, fmt.Errorf("prompt %s missing required field: template", p.Name)
		}
		if _, exists := r.prompts[p.Name]; exists {
			return nil, fmt.Errorf("prompt already registered: %s", p.Name)
		}
		tmpl, err := template.New(p.Name).Option("missingkey=error").Parse(p.Template)
		if err != nil {
			return nil, fmt.Errorf("prompt %s has an invalid template: %w", p.Name, err)
		}
		p.tmpl = tmpl
		p.System = strings.TrimSpace(p.System)
		r.prompts[p.Name] = p
	}
	return r, nil
}

// Default loads the embedded catalogue and checks the prompts the service
// depends on are present.
func Default() (*Registry, error) {
	r, err := Load(defaultCatalogue)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{Enhance, Review, Resume} {
		if _, ok := r.Get(name); !ok {
			return nil, fmt.Errorf("prompt catalogue missing %s", name)
		}
	}
	return r, nil
}

// Get retrieves a prompt by name.
func (r *Registry) Get(name string) (*Prompt, bool) {
	p, ok := r.prompts[name]
	return p, ok
}

// MustGet is Get for prompts Default already verified.
func (r *Registry) MustGet(name string) *Prompt {
	p, ok := r.prompts[name]
	if !ok {
		panic("prompts: unknown prompt " + name)
	}
	return p
}

// Names lists registered prompt names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
