package power

// Pool is the current, max and base max power of one entity.
//
// Invariant: 0 <= Current() <= Max() <= BaseMax().
// Invariant: KnockedOut() == (Current() == 0); Max() == 0 implies KnockedOut().
type Pool struct {
	current    float32
	max        float32
	baseMax    float32
	knockedOut bool
}

// NewPool creates a full pool with the given capacity.
//
// Precondition: baseMax > 0.
func NewPool(baseMax float32) Pool {
	return Pool{current: baseMax, max: baseMax, baseMax: baseMax}
}

// Current returns the available power.
func (p *Pool) Current() float32 { return p.current }

// Max returns the capacity after limits.
func (p *Pool) Max() float32 { return p.max }

// BaseMax returns the capacity before limits.
func (p *Pool) BaseMax() float32 { return p.baseMax }

// KnockedOut reports whether the pool is in the knocked out state.
func (p *Pool) KnockedOut() bool { return p.knockedOut }

// Percentage returns Current()/Max(), or 0 when Max() is 0.
func (p *Pool) Percentage() float32 {
	if p.max > 0 {
		return p.current / p.max
	}
	return 0
}

// CanAfford reports whether amount can be spent without going below zero.
func (p *Pool) CanAfford(amount float32) bool {
	return p.current >= amount
}

// setMax stores a newly derived capacity and clamps current into it.
func (p *Pool) setMax(m float32) {
	p.max = min(max(m, 0), p.baseMax)
	p.current = min(p.current, p.max)
}

// grow raises the base capacity by bonus. The caller recomputes max.
func (p *Pool) grow(bonus float32) {
	p.baseMax += bonus
}

// change adds amount to current, clamped to [0, max].
// A knocked out pool cannot gain power except through revive.
func (p *Pool) change(amount float32) {
	if p.knockedOut && amount > 0 {
		return
	}
	p.current = min(max(p.current+amount, 0), p.max)
}

// revive restores amount (clamped to max) to a knocked out pool.
// Returns true if the pool left the knocked out state.
func (p *Pool) revive(amount float32) bool {
	if !p.knockedOut {
		return false
	}
	restored := min(max(amount, 0), p.max)
	if restored <= 0 {
		return false
	}
	p.current = restored
	p.knockedOut = false
	return true
}

// derive recomputes the knocked out flag and reports a false→true transition.
func (p *Pool) derive() bool {
	ko := p.max <= 0 || p.current <= 0
	if ko {
		p.current = 0
	}
	if ko && !p.knockedOut {
		p.knockedOut = true
		return true
	}
	return false
}
