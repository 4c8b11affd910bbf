package prompt

import (
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category is one node of the classification taxonomy.
type Category struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Children    []Category `yaml:"children,omitempty"`
}

// Taxonomy is the tree of categories classifications are expressed against.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
}

// ParseTaxonomy decodes and validates a YAML taxonomy.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "prompt: parse taxonomy")
	}
	if len(t.Categories) == 0 {
		return nil, eris.New("prompt: taxonomy has no categories")
	}
	if err := validateCategories(t.Categories, ""); err != nil {
		return nil, err
	}
	return &t, nil
}

func validateCategories(cats []Category, parent string) error {
	seen := make(map[string]bool, len(cats))
	for _, c := range cats {
		if strings.TrimSpace(c.Name) == "" {
			return eris.Errorf("prompt: taxonomy category under %q has no name", parent)
		}
		if seen[c.Name] {
			return eris.Errorf("prompt: taxonomy category %q repeated under %q", c.Name, parent)
		}
		seen[c.Name] = true
		if err := validateCategories(c.Children, parent+"/"+c.Name); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether coordinate is a path from a root category down
// the tree. A prefix of a valid path is itself valid.
func (t *Taxonomy) Contains(coordinate []string) bool {
	if len(coordinate) == 0 {
		return false
	}
	level := t.Categories
	for _, name := range coordinate {
		next, ok := find(level, name)
		if !ok {
			return false
		}
		level = next.Children
	}
	return true
}

func find(cats []Category, name string) (Category, bool) {
	for _, c := range cats {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Render formats the taxonomy as an indented markdown list.
func (t *Taxonomy) Render() string {
	var b strings.Builder
	renderCategories(&b, t.Categories, 0)
	return b.String()
}

func renderCategories(b *strings.Builder, cats []Category, depth int) {
	for _, c := range cats {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		b.WriteString(c.Name)
		if c.Description != "" {
			b.WriteString(": ")
			b.WriteString(c.Description)
		}
		b.WriteString("\n")
		renderCategories(b, c.Children, depth+1)
	}
}
