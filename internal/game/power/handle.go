package power

// Handle is a thin accessor bundling the operations on one entity.
// It holds no state of its own; requests are applied on the next tick.
type Handle struct {
	ent *Entity
}

// ID returns the entity's identifier.
func (h Handle) ID() EntityID { return h.ent.ID() }

// Spend queues an unconditional spend.
func (h Handle) Spend(amount float32) error { return h.ent.Submit(Spend{Amount: amount}) }

// TrySpend queues a spend that is rejected if the entity cannot afford it.
func (h Handle) TrySpend(amount float32) error { return h.ent.Submit(TrySpend{Amount: amount}) }

// Change queues an add (positive) or remove (negative).
func (h Handle) Change(amount float32) error { return h.ent.Submit(Change{Amount: amount}) }

// ApplyLimit queues an unconditional limit.
func (h Handle) ApplyLimit(l Limit) error { return h.ent.Submit(ApplyLimit{Limit: l}) }

// TryApplyLimit queues a limit that is rejected if it would knock out a healthy entity.
func (h Handle) TryApplyLimit(l Limit) error { return h.ent.Submit(TryApplyLimit{Limit: l}) }

// LimitPoints queues an unconditional points limit. duration <= 0 means permanent.
func (h Handle) LimitPoints(id int64, points, duration float32, resetsCooldown bool) error {
	return h.ApplyLimit(newLimit(id, LimitPoints, points, duration, resetsCooldown))
}

// LimitPercentage queues an unconditional percentage limit. duration <= 0 means permanent.
func (h Handle) LimitPercentage(id int64, percent, duration float32, resetsCooldown bool) error {
	return h.ApplyLimit(newLimit(id, LimitPercentage, percent, duration, resetsCooldown))
}

// Lift queues removal of a limit.
func (h Handle) Lift(id int64) error { return h.ent.Submit(LiftLimit{ID: id}) }

// Revive queues a revive with amount power.
func (h Handle) Revive(amount float32) error { return h.ent.Submit(Revive{Amount: amount}) }

// AddExperience queues an experience award.
func (h Handle) AddExperience(amount float32) error {
	return h.ent.Submit(AddExperience{Amount: amount})
}

// CanAfford reports whether amount could be spent right now.
func (h Handle) CanAfford(amount float32) bool { return h.ent.CanAfford(amount) }

// Snapshot returns a copy of the entity's current state.
func (h Handle) Snapshot() Snapshot { return h.ent.Snapshot() }

func newLimit(id int64, kind LimitKind, magnitude, duration float32, resetsCooldown bool) Limit {
	l := Limit{ID: id, Kind: kind, Magnitude: magnitude, ResetsRegenCooldown: resetsCooldown}
	if duration > 0 {
		l.Remaining = Seconds(duration)
	}
	return l
}
