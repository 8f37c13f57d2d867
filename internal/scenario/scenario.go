// Package scenario loads scripted power simulations from YAML and runs them
// headless against an Engine, recording a per-tick trace.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/powerbar/internal/game/power"
)

// Scenario is a fixed-step script of requests against named entities.
type Scenario struct {
	Name     string  `yaml:"name"`
	Dt       float32 `yaml:"dt"`
	Ticks    int     `yaml:"ticks"`
	Entities []Actor `yaml:"entities"`
	Steps    []Step  `yaml:"steps"`
}

// Actor is an entity spawned at the start of the scenario. Name doubles as its EntityID.
type Actor struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// Step submits one request before the engine runs tick Tick (1-based).
type Step struct {
	Tick   int      `yaml:"tick"`
	Entity string   `yaml:"entity"`
	Op     power.Op `yaml:"op"`
	Amount float32  `yaml:"amount"`
	// ID is the limit stack id for limit operations.
	ID int64 `yaml:"id"`
	// LimitDef names a registered limit definition.
	LimitDef string `yaml:"limit_def"`
	// Limit is an inline definition used when LimitDef is empty.
	Limit *power.LimitDef `yaml:"limit"`
}

// Validate checks the scenario's structure. Limit definitions are resolved by Run.
func (s *Scenario) Validate() error {
	var errs []string
	if !(s.Dt > 0) {
		errs = append(errs, fmt.Sprintf("dt must be > 0, got %v", s.Dt))
	}
	if s.Ticks < 1 {
		errs = append(errs, fmt.Sprintf("ticks must be >= 1, got %d", s.Ticks))
	}
	if len(s.Entities) == 0 {
		errs = append(errs, "at least one entity is required")
	}
	names := make(map[string]bool, len(s.Entities))
	for i, a := range s.Entities {
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("entities[%d]: name must not be empty", i))
			continue
		}
		if names[a.Name] {
			errs = append(errs, fmt.Sprintf("entities[%d]: duplicate name %q", i, a.Name))
		}
		names[a.Name] = true
	}
	for i, st := range s.Steps {
		if st.Tick < 1 || st.Tick > s.Ticks {
			errs = append(errs, fmt.Sprintf("steps[%d]: tick must be in [1, %d], got %d", i, s.Ticks, st.Tick))
		}
		if !names[st.Entity] {
			errs = append(errs, fmt.Sprintf("steps[%d]: unknown entity %q", i, st.Entity))
		}
		switch st.Op {
		case power.OpSpend, power.OpTrySpend, power.OpChange, power.OpRevive, power.OpAddExperience, power.OpLiftLimit:
		case power.OpApplyLimit, power.OpTryApplyLimit:
			if st.LimitDef == "" && st.Limit == nil {
				errs = append(errs, fmt.Sprintf("steps[%d]: %s needs limit_def or limit", i, st.Op))
			}
		default:
			errs = append(errs, fmt.Sprintf("steps[%d]: unknown op %q", i, st.Op))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scenario %q: %s", s.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Request builds the power request for this step.
//
// Precondition: reg must be non-nil when the step names a LimitDef.
func (st Step) Request(reg *power.LimitRegistry) (power.Request, error) {
	switch st.Op {
	case power.OpSpend:
		return power.Spend{Amount: st.Amount}, nil
	case power.OpTrySpend:
		return power.TrySpend{Amount: st.Amount}, nil
	case power.OpChange:
		return power.Change{Amount: st.Amount}, nil
	case power.OpRevive:
		return power.Revive{Amount: st.Amount}, nil
	case power.OpAddExperience:
		return power.AddExperience{Amount: st.Amount}, nil
	case power.OpLiftLimit:
		return power.LiftLimit{ID: st.ID}, nil
	case power.OpApplyLimit, power.OpTryApplyLimit:
		l, err := st.limit(reg)
		if err != nil {
			return nil, err
		}
		if st.Op == power.OpTryApplyLimit {
			return power.TryApplyLimit{Limit: l}, nil
		}
		return power.ApplyLimit{Limit: l}, nil
	}
	return nil, fmt.Errorf("unknown op %q", st.Op)
}

func (st Step) limit(reg *power.LimitRegistry) (power.Limit, error) {
	def := st.Limit
	if st.LimitDef != "" {
		var ok bool
		if reg != nil {
			def, ok = reg.Get(st.LimitDef)
		}
		if !ok {
			return power.Limit{}, fmt.Errorf("unknown limit definition %q", st.LimitDef)
		}
	}
	if def == nil {
		return power.Limit{}, fmt.Errorf("%s needs limit_def or limit", st.Op)
	}
	return def.Limit(st.ID)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", path, err)
	}
	return s, nil
}
