// Package power models an entity's power pool: a capacity reduced by a stack
// of limits, refilled by a delayed and ramping regeneration, emptied into a
// knocked out state and raised by leveling.
package power

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine owns every power entity of a simulation and ticks them.
// All methods are safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	entities map[EntityID]*Entity
	curve    BonusCurve
	workers  int
	logger   *zap.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithBonusCurve sets the level-up bonus curve used for newly spawned entities.
func WithBonusCurve(c BonusCurve) Option {
	return func(e *Engine) { e.curve = c }
}

// WithWorkers bounds how many entities are ticked concurrently.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// NewEngine creates an empty Engine.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Engine using DefaultBonusCurve and
// GOMAXPROCS workers unless overridden.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		panic("power.NewEngine: logger must not be nil")
	}
	e := &Engine{
		entities: make(map[EntityID]*Entity),
		curve:    DefaultBonusCurve(),
		workers:  runtime.GOMAXPROCS(0),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Spawn creates an entity with a fresh random ID from tmpl.
//
// Postcondition: Returns the new ID, or the template's validation error.
func (e *Engine) Spawn(tmpl Template) (EntityID, error) {
	id := EntityID(uuid.NewString())
	if err := e.SpawnWithID(id, tmpl); err != nil {
		return "", err
	}
	return id, nil
}

// SpawnWithID creates an entity with a caller-chosen ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an error if id is taken or tmpl is invalid.
func (e *Engine) SpawnWithID(id EntityID, tmpl Template) error {
	if id == "" {
		return fmt.Errorf("spawn: entity id must not be empty")
	}
	ent, err := NewEntity(id, tmpl, e.curve)
	if err != nil {
		return fmt.Errorf("spawn %q: %w", id, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.entities[id]; exists {
		return fmt.Errorf("spawn: entity %q already exists", id)
	}
	e.entities[id] = ent
	e.logger.Info("power entity spawned",
		zap.String("entity", string(id)),
		zap.String("template", tmpl.ID),
		zap.Float32("base_max", tmpl.BaseMax),
	)
	return nil
}

// Despawn removes an entity and discards its pending requests.
func (e *Engine) Despawn(id EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entities[id]; !ok {
		return fmt.Errorf("despawn %q: %w", id, ErrUnknownEntity)
	}
	delete(e.entities, id)
	e.logger.Info("power entity despawned", zap.String("entity", string(id)))
	return nil
}

// Get returns the entity with id.
func (e *Engine) Get(id EntityID) (*Entity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.entities[id]
	return ent, ok
}

// Len returns the number of live entities.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entities)
}

// IDs returns the IDs of all entities in ascending order.
func (e *Engine) IDs() []EntityID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]EntityID, 0, len(e.entities))
	for id := range e.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Submit queues req for entity id's next tick.
//
// Postcondition: Returns ErrUnknownEntity or a validation error wrapping
// ErrInvalidRequest without queuing; otherwise the request is queued.
func (e *Engine) Submit(id EntityID, req Request) error {
	ent, ok := e.Get(id)
	if !ok {
		return fmt.Errorf("submit to %q: %w", id, ErrUnknownEntity)
	}
	return ent.Submit(req)
}

// Handle returns the per-entity accessor for id.
func (e *Engine) Handle(id EntityID) (Handle, bool) {
	ent, ok := e.Get(id)
	if !ok {
		return Handle{}, false
	}
	return Handle{ent: ent}, true
}

// Tick advances every entity by dt seconds. Entities are ticked in parallel;
// each entity's state is updated atomically.
//
// Cancellation is observed only before the fan-out; once it starts every
// entity is ticked.
//
// Precondition: dt >= 0.
// Postcondition: Returns notifications grouped by entity in ascending ID
// order, each group in emission order; returns ctx.Err() with no state change
// if ctx is already done.
func (e *Engine) Tick(ctx context.Context, dt float32) ([]Notification, error) {
	if !finite(dt) || dt < 0 {
		return nil, fmt.Errorf("tick: dt must be a finite value >= 0, got %v", dt)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := e.IDs()
	results := make([][]Notification, len(ids))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, id := range ids {
		i := i
		ent, ok := e.Get(id)
		if !ok {
			continue
		}
		g.Go(func() error {
			results[i] = ent.Tick(dt)
			return nil
		})
	}
	_ = g.Wait()

	var out []Notification
	for _, ns := range results {
		out = append(out, ns...)
	}
	e.log(out)
	return out, nil
}

func (e *Engine) log(ns []Notification) {
	if !e.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	for _, n := range ns {
		fields := []zap.Field{zap.String("entity", string(n.EntityID()))}
		switch v := n.(type) {
		case Result:
			fields = append(fields, zap.String("op", string(v.Op)), zap.Bool("accepted", v.Accepted))
			if v.Err != nil {
				fields = append(fields, zap.Error(v.Err))
			}
			e.logger.Debug("power request", fields...)
		case KnockedOut:
			e.logger.Debug("power knocked out", fields...)
		case Revived:
			e.logger.Debug("power revived", append(fields, zap.Float32("current", v.Current))...)
		case LevelUpNotice:
			e.logger.Debug("power level up", append(fields,
				zap.Uint32("level", v.NewLevel),
				zap.Float32("bonus", v.PowerBonus),
			)...)
		case LimitExpired:
			e.logger.Debug("power limit expired", append(fields, zap.Int64("limit", v.LimitID))...)
		}
	}
}
