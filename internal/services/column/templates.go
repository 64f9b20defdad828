package column

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"crm-pipeline/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtinTemplates []byte

// Template describes a well-known lane that can be instantiated by code.
type Template struct {
	Code     string            `yaml:"code" json:"code"`
	Name     string            `yaml:"name" json:"name"`
	Color    string            `yaml:"color" json:"color"`
	Pipeline models.Pipeline   `yaml:"pipeline" json:"pipeline"`
	Status   models.LeadStatus `yaml:"status" json:"status"`
	Baseline bool              `yaml:"baseline" json:"baseline"`
}

type Catalog struct {
	ordered []Template
	byCode  map[string]Template
}

// DefaultCatalog returns the embedded templates.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(bytes.NewReader(builtinTemplates))
	if err != nil {
		panic(fmt.Sprintf("embedded column templates are invalid: %v", err))
	}
	return c
}

// LoadCatalogFile reads templates from a YAML file.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCatalog(f)
}

func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}

	c := &Catalog{byCode: make(map[string]Template, len(doc.Templates))}
	names := make(map[string]bool, len(doc.Templates))
	for _, tpl := range doc.Templates {
		switch {
		case tpl.Code == "":
			return nil, fmt.Errorf("template %q has no code", tpl.Name)
		case tpl.Name == "":
			return nil, fmt.Errorf("template %q has no name", tpl.Code)
		case !tpl.Pipeline.Valid():
			return nil, fmt.Errorf("template %q: unknown pipeline %q", tpl.Code, tpl.Pipeline)
		case !tpl.Status.Valid():
			return nil, fmt.Errorf("template %q: unknown status %q", tpl.Code, tpl.Status)
		}
		if _, dup := c.byCode[tpl.Code]; dup {
			return nil, fmt.Errorf("duplicate template code %q", tpl.Code)
		}
		if names[tpl.Name] {
			return nil, fmt.Errorf("duplicate template name %q", tpl.Name)
		}
		names[tpl.Name] = true
		c.byCode[tpl.Code] = tpl
		c.ordered = append(c.ordered, tpl)
	}
	return c, nil
}

func (c *Catalog) Lookup(code string) (Template, bool) {
	tpl, ok := c.byCode[code]
	return tpl, ok
}

func (c *Catalog) All() []Template {
	out := make([]Template, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Baseline returns the templates every tenant starts with, in board order.
func (c *Catalog) Baseline() []Template {
	var out []Template
	for _, tpl := range c.ordered {
		if tpl.Baseline {
			out = append(out, tpl)
		}
	}
	return out
}
