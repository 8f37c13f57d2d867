package power

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is the spawn configuration of a power pool, loaded from YAML.
type Template struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	BaseMax float32     `yaml:"base_max"`
	Regen   RegenConfig `yaml:"regen"`
	Level   LevelConfig `yaml:"level"`
}

// DefaultTemplate returns a 100 point pool with stock regen and progression.
func DefaultTemplate() Template {
	return Template{
		ID:      "default",
		Name:    "Default",
		BaseMax: 100,
		Regen:   DefaultRegenConfig(),
		Level:   DefaultLevelConfig(),
	}
}

// Validate checks every construction-time invariant.
//
// Postcondition: Returns nil iff BaseMax > 0 and the regen and level sections
// are valid; otherwise the error lists every violation.
func (t Template) Validate() error {
	var errs []string
	if !finite(t.BaseMax) || t.BaseMax <= 0 {
		errs = append(errs, fmt.Sprintf("base_max must be a finite value > 0, got %v", t.BaseMax))
	}
	if err := t.Regen.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := t.Level.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("power template %q: %s", t.ID, strings.Join(errs, "; "))
	}
	return nil
}

// LoadTemplateFromBytes parses and validates a single template. Missing regen
// and level sections take the stock defaults.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	tmpl := DefaultTemplate()
	tmpl.ID, tmpl.Name = "", ""
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if tmpl.ID == "" {
		return nil, fmt.Errorf("power template: id must not be empty")
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir.
//
// Postcondition: Returns all templates or an error on the first failure.
func LoadTemplates(dir string) ([]*Template, error) {
	var templates []*Template
	err := eachYAML(dir, func(_ string, data []byte) error {
		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return err
		}
		templates = append(templates, tmpl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}
