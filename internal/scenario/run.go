package scenario

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/powerbar/internal/game/power"
)

// Event is a notification tagged with the tick that produced it.
type Event struct {
	Tick int
	power.Notification
}

// Outcome is the result of a scenario run.
type Outcome struct {
	Rows   []TraceRow
	Events []Event
}

// Runner plays scenarios against an engine built from shared content.
type Runner struct {
	templates map[string]power.Template
	limits    *power.LimitRegistry
	opts      []power.Option
	logger    *zap.Logger
}

// NewRunner creates a Runner. The stock "default" template is always available
// unless templates overrides it.
//
// Precondition: logger must be non-nil; limits may be nil when no step uses limit_def.
func NewRunner(templates []*power.Template, limits *power.LimitRegistry, logger *zap.Logger, opts ...power.Option) *Runner {
	if logger == nil {
		panic("scenario.NewRunner: logger must not be nil")
	}
	byID := map[string]power.Template{"default": power.DefaultTemplate()}
	for _, t := range templates {
		byID[t.ID] = *t
	}
	return &Runner{templates: byID, limits: limits, opts: opts, logger: logger}
}

// Run spawns the scenario's entities in a fresh Engine and plays every tick.
//
// Each tick k (1-based) first submits the steps scheduled for k in file order,
// then advances the engine by Dt, then records one TraceRow per entity in
// declaration order.
//
// Postcondition: Returns the full trace, or the first setup, request or
// context error.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Outcome, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	engine := power.NewEngine(r.logger, r.opts...)
	for _, a := range sc.Entities {
		tmpl, ok := r.templates[a.Template]
		if !ok {
			return nil, fmt.Errorf("scenario %q: entity %q: unknown template %q", sc.Name, a.Name, a.Template)
		}
		if err := engine.SpawnWithID(power.EntityID(a.Name), tmpl); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}

	byTick := make(map[int][]Step)
	for _, st := range sc.Steps {
		byTick[st.Tick] = append(byTick[st.Tick], st)
	}

	out := &Outcome{}
	for tick := 1; tick <= sc.Ticks; tick++ {
		for _, st := range byTick[tick] {
			req, err := st.Request(r.limits)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: tick %d: %w", sc.Name, tick, err)
			}
			if err := engine.Submit(power.EntityID(st.Entity), req); err != nil {
				return nil, fmt.Errorf("scenario %q: tick %d: %w", sc.Name, tick, err)
			}
		}
		ns, err := engine.Tick(ctx, sc.Dt)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: tick %d: %w", sc.Name, tick, err)
		}
		for _, n := range ns {
			out.Events = append(out.Events, Event{Tick: tick, Notification: n})
		}
		for _, a := range sc.Entities {
			ent, _ := engine.Get(power.EntityID(a.Name))
			out.Rows = append(out.Rows, NewTraceRow(tick, float32(tick)*sc.Dt, ent.Snapshot()))
		}
	}

	r.logger.Info("scenario complete",
		zap.String("scenario", sc.Name),
		zap.Int("ticks", sc.Ticks),
		zap.Int("entities", len(sc.Entities)),
		zap.Int("events", len(out.Events)),
	)
	return out, nil
}
