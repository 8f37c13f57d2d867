package power

import (
	"fmt"
	"strings"
)

// RegenConfig is the static regeneration tuning of one entity.
type RegenConfig struct {
	// Delay is the seconds after a trigger before regeneration starts.
	Delay float32 `yaml:"delay"`
	// BaseRate is the power per second the instant the delay elapses.
	BaseRate float32 `yaml:"base_rate"`
	// MaxRate caps the ramped power per second.
	MaxRate float32 `yaml:"max_rate"`
	// RampSpeed is how much the rate grows per second once regenerating.
	RampSpeed float32 `yaml:"ramp_speed"`
}

// DefaultRegenConfig returns the stock tuning: 2.5s delay ramping from 5/s to 20/s.
func DefaultRegenConfig() RegenConfig {
	return RegenConfig{Delay: 2.5, BaseRate: 5, MaxRate: 20, RampSpeed: 2}
}

// Validate checks that every field is finite and non-negative and that
// BaseRate does not exceed MaxRate.
func (c RegenConfig) Validate() error {
	var errs []string
	for _, f := range []struct {
		name string
		v    float32
	}{
		{"delay", c.Delay},
		{"base_rate", c.BaseRate},
		{"max_rate", c.MaxRate},
		{"ramp_speed", c.RampSpeed},
	} {
		if !finite(f.v) || f.v < 0 {
			errs = append(errs, fmt.Sprintf("regen.%s must be a finite value >= 0, got %v", f.name, f.v))
		}
	}
	if c.BaseRate > c.MaxRate {
		errs = append(errs, fmt.Sprintf("regen.base_rate (%v) must not exceed regen.max_rate (%v)", c.BaseRate, c.MaxRate))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Regen is the delay and ramp state machine that refills a pool.
//
// Invariant: Rate() is 0 or within [BaseRate, MaxRate].
type Regen struct {
	cfg          RegenConfig
	sinceTrigger float32
	rate         float32
}

// NewRegen creates a Regen that starts as though power had just been spent.
//
// Precondition: cfg.Validate() returns nil.
func NewRegen(cfg RegenConfig) Regen {
	return Regen{cfg: cfg}
}

// Config returns the static tuning.
func (r *Regen) Config() RegenConfig { return r.cfg }

// Rate returns the current regeneration rate in power per second.
func (r *Regen) Rate() float32 { return r.rate }

// SinceTrigger returns the seconds since the last spend or cooldown reset.
func (r *Regen) SinceTrigger() float32 { return r.sinceTrigger }

// Active reports whether the delay has elapsed and power is flowing.
func (r *Regen) Active() bool { return r.rate > 0 }

// Trigger re-arms the delay as though power had just been spent.
//
// Postcondition: SinceTrigger() == 0 and Rate() == 0.
func (r *Regen) Trigger() {
	r.sinceTrigger = 0
	r.rate = 0
}

// Advance moves the state machine forward by dt seconds and returns the power
// regenerated during the step.
//
// A knocked out entity is frozen: the timer stands still and nothing is
// regenerated. When blocked, the timer keeps running but the rate is held at 0.
// Otherwise the rate is 0 until the delay elapses and afterwards follows
// BaseRate + RampSpeed*(elapsed-Delay), capped at MaxRate.
//
// Postcondition: Returns Rate()*dt.
func (r *Regen) Advance(dt float32, knockedOut, blocked bool) float32 {
	if knockedOut {
		r.rate = 0
		return 0
	}
	r.sinceTrigger += dt
	switch {
	case blocked, r.sinceTrigger < r.cfg.Delay:
		r.rate = 0
	default:
		r.rate = min(r.cfg.MaxRate, r.cfg.BaseRate+r.cfg.RampSpeed*(r.sinceTrigger-r.cfg.Delay))
	}
	return r.rate * dt
}
