package power

import (
	"fmt"
	"sync"
)

// Snapshot is a read-only copy of one entity's power state.
type Snapshot struct {
	ID               EntityID
	Current          float32
	Max              float32
	BaseMax          float32
	KnockedOut       bool
	RegenRate        float32
	SinceTrigger     float32
	Level            uint32
	Experience       float32
	ExperienceToNext float32
	Limits           []Limit
	Pending          int
}

// Entity owns the pool, limits, regen and level state of one game entity and
// its queue of pending requests.
//
// All exported methods are safe for concurrent use; each tick is applied
// atomically with respect to Submit and Snapshot.
type Entity struct {
	mu      sync.Mutex
	id      EntityID
	pool    Pool
	limits  *LimitStack
	regen   Regen
	level   LevelTrack
	curve   BonusCurve
	pending []Request
}

// NewEntity builds an entity from a validated template.
//
// Precondition: curve must not be nil.
// Postcondition: Returns a full, non-knocked-out entity or the template's validation error.
func NewEntity(id EntityID, tmpl Template, curve BonusCurve) (*Entity, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if curve == nil {
		return nil, fmt.Errorf("entity %q: bonus curve must not be nil", id)
	}
	return &Entity{
		id:     id,
		pool:   NewPool(tmpl.BaseMax),
		limits: NewLimitStack(),
		regen:  NewRegen(tmpl.Regen),
		level:  NewLevelTrack(tmpl.Level),
		curve:  curve,
	}, nil
}

// ID returns the entity's identifier.
func (e *Entity) ID() EntityID { return e.id }

// Submit validates req and queues it for the next tick.
func (e *Entity) Submit(req Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, req)
	return nil
}

// CanAfford reports whether amount could be spent right now. It has no side effects.
func (e *Entity) CanAfford(amount float32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.CanAfford(amount)
}

// Snapshot returns a copy of the current state.
func (e *Entity) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		ID:               e.id,
		Current:          e.pool.Current(),
		Max:              e.pool.Max(),
		BaseMax:          e.pool.BaseMax(),
		KnockedOut:       e.pool.KnockedOut(),
		RegenRate:        e.regen.Rate(),
		SinceTrigger:     e.regen.SinceTrigger(),
		Level:            e.level.Level(),
		Experience:       e.level.Experience(),
		ExperienceToNext: e.level.ExperienceToNext(),
		Limits:           e.limits.All(),
		Pending:          len(e.pending),
	}
}

// Segments returns the per-limit share of base capacity for display.
func (e *Entity) Segments() []Segment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limits.Segments(e.pool.BaseMax())
}

// Tick advances the entity by dt seconds and applies every pending request.
//
// Order: limit expiry, regeneration, requests in submission order, knockout
// derivation. Knockout is derived once at the end of the tick; only a limit
// application derives it immediately. Notifications are returned in emission
// order.
//
// Precondition: dt >= 0.
// Postcondition: the pending queue is empty; 0 <= current <= max <= base max.
func (e *Entity) Tick(dt float32) []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Notification

	for _, id := range e.limits.Advance(dt) {
		out = append(out, LimitExpired{Entity: e.id, LimitID: id})
	}
	e.recomputeMax()

	gain := e.regen.Advance(dt, e.pool.KnockedOut(), e.limits.BlocksRegen())
	if gain > 0 {
		e.pool.change(gain)
	}

	pending := e.pending
	e.pending = nil
	for _, req := range pending {
		out = e.apply(req, out)
	}

	e.recomputeMax()
	out = e.derive(out)
	return out
}

func (e *Entity) apply(req Request, out []Notification) []Notification {
	accepted := true
	var err error
	var extra []Notification

	switch r := req.(type) {
	case Spend:
		e.spend(r.Amount)
	case TrySpend:
		if e.pool.Current()-r.Amount < 0 {
			accepted, err = false, fmt.Errorf("%w: have %v, need %v", ErrInsufficientPower, e.pool.Current(), r.Amount)
			break
		}
		e.spend(r.Amount)
	case Change:
		e.pool.change(r.Amount)
	case ApplyLimit:
		extra = e.applyLimit(r.Limit, extra)
	case TryApplyLimit:
		if !e.pool.KnockedOut() && e.limits.WouldCauseKnockoutWith(r.Limit, e.pool.BaseMax()) {
			accepted, err = false, fmt.Errorf("%w: limit %d", ErrWouldKnockOut, r.Limit.ID)
			break
		}
		extra = e.applyLimit(r.Limit, extra)
	case LiftLimit:
		e.limits.Lift(r.ID)
		e.recomputeMax()
	case Revive:
		if e.pool.revive(r.Amount) {
			extra = append(extra, Revived{Entity: e.id, Current: e.pool.Current()})
		}
	case AddExperience:
		for _, up := range e.level.AddExperience(r.Amount, e.curve) {
			e.pool.grow(up.PowerBonus)
			e.recomputeMax()
			extra = append(extra, LevelUpNotice{Entity: e.id, NewLevel: up.NewLevel, PowerBonus: up.PowerBonus})
		}
	default:
		accepted, err = false, fmt.Errorf("%w: unsupported request %T", ErrInvalidRequest, req)
	}

	out = append(out, Result{Entity: e.id, Op: req.Op(), Accepted: accepted, Err: err})
	return append(out, extra...)
}

// spend removes amount and re-arms regeneration, unless nothing was spent
// from an already empty pool.
func (e *Entity) spend(amount float32) {
	wasEmpty := e.pool.Current() <= 0
	e.pool.change(-amount)
	if amount > 0 && !wasEmpty {
		e.regen.Trigger()
	}
}

func (e *Entity) applyLimit(l Limit, out []Notification) []Notification {
	e.limits.Apply(l)
	e.recomputeMax()
	if l.ResetsRegenCooldown {
		e.regen.Trigger()
	}
	return e.derive(out)
}

func (e *Entity) recomputeMax() {
	e.pool.setMax(e.limits.EffectiveMax(e.pool.BaseMax()))
}

func (e *Entity) derive(out []Notification) []Notification {
	if e.pool.derive() {
		out = append(out, KnockedOut{Entity: e.id})
	}
	return out
}
