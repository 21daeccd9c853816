package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"driftwatch/internal/model"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// ErrInvalidEntry marks a malformed catalog entry
var ErrInvalidEntry = errors.New("invalid catalog entry")

// CatalogError points at the offending entry of a catalog file
type CatalogError struct {
	Index  int
	ID     string
	Reason string
}

func (e *CatalogError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("catalog entry %d (%s): %s", e.Index, e.ID, e.Reason)
	}
	return fmt.Sprintf("catalog entry %d: %s", e.Index, e.Reason)
}

func (e *CatalogError) Unwrap() error {
	return ErrInvalidEntry
}

// Entry is the on-disk shape of a prompt
type Entry struct {
	ID       string   `json:"id" yaml:"id" jsonschema:"required,minLength=1,description=Stable prompt identifier"`
	Category string   `json:"category" yaml:"category" jsonschema:"required,minLength=1,description=Grouping used by the heatmap"`
	Text     string   `json:"text" yaml:"text" jsonschema:"required,minLength=1,description=Prompt sent verbatim to every model"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty" jsonschema:"description=Free-form labels"`
}

// Catalog is the immutable battery of dilemma prompts
type Catalog struct {
	prompts []model.DilemmaPrompt
	byID    map[string]int
}

// New validates prompts and builds a catalog
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		prompts: make([]model.DilemmaPrompt, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		switch {
		case id == "":
			return nil, &CatalogError{Index: i, Reason: "missing id"}
		case strings.TrimSpace(e.Category) == "":
			return nil, &CatalogError{Index: i, ID: id, Reason: "missing category"}
		case strings.TrimSpace(e.Text) == "":
			return nil, &CatalogError{Index: i, ID: id, Reason: "missing text"}
		}
		if _, dup := c.byID[id]; dup {
			return nil, &CatalogError{Index: i, ID: id, Reason: "duplicate id"}
		}
		c.byID[id] = len(c.prompts)
		c.prompts = append(c.prompts, model.DilemmaPrompt{
			ID:       id,
			Category: strings.TrimSpace(e.Category),
			Text:     strings.TrimSpace(e.Text),
			Tags:     slices.Clone(e.Tags),
		})
	}
	if len(c.prompts) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidEntry)
	}
	return c, nil
}

// Parse decodes a YAML or JSON list of entries
func Parse(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(entries)
}

// Load reads a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the embedded catalog
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadOrDefault loads path, or the embedded catalog when path is empty
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Prompts returns a copy of the prompts in file order
func (c *Catalog) Prompts() []model.DilemmaPrompt {
	out := make([]model.DilemmaPrompt, len(c.prompts))
	for i, p := range c.prompts {
		p.Tags = slices.Clone(p.Tags)
		out[i] = p
	}
	return out
}

// Get looks up a prompt by id
func (c *Catalog) Get(id string) (model.DilemmaPrompt, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.DilemmaPrompt{}, false
	}
	p := c.prompts[i]
	p.Tags = slices.Clone(p.Tags)
	return p, true
}

// Categories returns the distinct categories, sorted
func (c *Catalog) Categories() []string {
	var cats []string
	for _, p := range c.prompts {
		if !slices.Contains(cats, p.Category) {
			cats = append(cats, p.Category)
		}
	}
	slices.Sort(cats)
	return cats
}

func (c *Catalog) Len() int {
	return len(c.prompts)
}
