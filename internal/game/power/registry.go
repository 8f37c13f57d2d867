package power

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LimitDef is a named, reusable limit loaded from YAML.
type LimitDef struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Kind        string  `yaml:"kind"` // "points" | "percentage"
	Magnitude   float32 `yaml:"magnitude"`
	// Duration is in seconds; 0 = permanent until lifted.
	Duration       float32 `yaml:"duration"`
	ResetsCooldown bool    `yaml:"resets_cooldown"`
	BlocksRegen    bool    `yaml:"blocks_regen"`
	Color          string  `yaml:"color"`
}

// Limit builds a Limit with the given stack id from this definition.
func (d *LimitDef) Limit(id int64) (Limit, error) {
	kind, err := ParseLimitKind(d.Kind)
	if err != nil {
		return Limit{}, fmt.Errorf("limit def %q: %w", d.ID, err)
	}
	l := Limit{
		ID:                  id,
		Kind:                kind,
		Magnitude:           d.Magnitude,
		ResetsRegenCooldown: d.ResetsCooldown,
		BlocksRegen:         d.BlocksRegen,
		Color:               d.Color,
	}
	if d.Duration > 0 {
		l.Remaining = Seconds(d.Duration)
	}
	if err := l.Validate(); err != nil {
		return Limit{}, fmt.Errorf("limit def %q: %w", d.ID, err)
	}
	return l, nil
}

// Validate checks that the definition produces a valid Limit.
func (d *LimitDef) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("limit def: id must not be empty")
	}
	if d.Duration < 0 {
		return fmt.Errorf("limit def %q: duration must be >= 0, got %v", d.ID, d.Duration)
	}
	_, err := d.Limit(0)
	return err
}

// LimitRegistry holds LimitDefs keyed by ID.
type LimitRegistry struct {
	defs map[string]*LimitDef
}

// NewLimitRegistry creates an empty LimitRegistry.
func NewLimitRegistry() *LimitRegistry {
	return &LimitRegistry{defs: make(map[string]*LimitDef)}
}

// Register adds def, overwriting any existing entry with the same ID.
//
// Precondition: def must not be nil.
func (r *LimitRegistry) Register(def *LimitDef) {
	r.defs[def.ID] = def
}

// Get returns the LimitDef for id, or (nil, false) if not found.
func (r *LimitRegistry) Get(id string) (*LimitDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot slice of all registered definitions.
func (r *LimitRegistry) All() []*LimitDef {
	out := make([]*LimitDef, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// ParseLimitDef decodes and validates one LimitDef document.
func ParseLimitDef(data []byte) (*LimitDef, error) {
	var def LimitDef
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing limit def YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadLimitDirectory registers every *.yaml file in dir as a LimitDef.
// A later file with a duplicate id is an error.
func LoadLimitDirectory(dir string) (*LimitRegistry, error) {
	reg := NewLimitRegistry()
	err := eachYAML(dir, func(_ string, data []byte) error {
		def, err := ParseLimitDef(data)
		if err != nil {
			return err
		}
		if _, dup := reg.Get(def.ID); dup {
			return fmt.Errorf("duplicate limit def id %q", def.ID)
		}
		reg.Register(def)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// eachYAML calls fn with the contents of each *.yaml file in dir, in name
// order, wrapping any error with the file's path.
func eachYAML(dir string, fn func(path string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading content dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		if err := fn(path, data); err != nil {
			return fmt.Errorf("loading %q: %w", path, err)
		}
	}
	return nil
}
