package power

import (
	"fmt"
	"strings"
)

// BonusCurve computes the base max power granted on reaching a level.
type BonusCurve interface {
	// Bonus returns the power bonus for reaching level (level >= 2).
	Bonus(level uint32) float32
}

// DiminishingCurve grants Base at level 2 and shrinks by Falloff per further
// level: Base / (1 + Falloff*(level-2)).
type DiminishingCurve struct {
	Base    float32 `yaml:"base" mapstructure:"base"`
	Falloff float32 `yaml:"falloff" mapstructure:"falloff"`
}

// DefaultBonusCurve grants +20, +16, +13.3 at levels 2, 3 and 4.
func DefaultBonusCurve() DiminishingCurve {
	return DiminishingCurve{Base: 20, Falloff: 0.25}
}

// Bonus implements BonusCurve.
func (c DiminishingCurve) Bonus(level uint32) float32 {
	if level < 2 {
		return 0
	}
	return c.Base / (1 + c.Falloff*float32(level-2))
}

// Validate checks that the curve never yields a negative or unbounded bonus.
func (c DiminishingCurve) Validate() error {
	if !finite(c.Base) || c.Base < 0 {
		return fmt.Errorf("bonus curve base must be a finite value >= 0, got %v", c.Base)
	}
	if !finite(c.Falloff) || c.Falloff < 0 {
		return fmt.Errorf("bonus curve falloff must be a finite value >= 0, got %v", c.Falloff)
	}
	return nil
}

// MaxLevel is the highest reachable level. Experience awarded at MaxLevel is
// discarded.
const MaxLevel uint32 = 999

// LevelConfig is the starting progression of an entity.
type LevelConfig struct {
	Level            uint32  `yaml:"level"`
	Experience       float32 `yaml:"experience"`
	ExperienceToNext float32 `yaml:"experience_to_next"`
	// Growth multiplies ExperienceToNext after every level-up.
	Growth float32 `yaml:"growth"`
}

// DefaultLevelConfig starts at level 1 needing 100 experience, growing 1.5x per level.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{Level: 1, ExperienceToNext: 100, Growth: 1.5}
}

// Validate checks the progression invariants.
func (c LevelConfig) Validate() error {
	var errs []string
	if c.Level < 1 || c.Level > MaxLevel {
		errs = append(errs, fmt.Sprintf("level.level must be in [1, %d], got %d", MaxLevel, c.Level))
	}
	if !finite(c.Experience) || c.Experience < 0 {
		errs = append(errs, fmt.Sprintf("level.experience must be a finite value >= 0, got %v", c.Experience))
	} else if c.Experience >= c.ExperienceToNext {
		errs = append(errs, fmt.Sprintf("level.experience must be below experience_to_next (%v), got %v", c.ExperienceToNext, c.Experience))
	}
	if !finite(c.ExperienceToNext) || c.ExperienceToNext <= 0 {
		errs = append(errs, fmt.Sprintf("level.experience_to_next must be a finite value > 0, got %v", c.ExperienceToNext))
	}
	if !finite(c.Growth) || c.Growth < 1 {
		errs = append(errs, fmt.Sprintf("level.growth must be a finite value >= 1, got %v", c.Growth))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// LevelUp describes one level gained.
type LevelUp struct {
	NewLevel   uint32
	PowerBonus float32
}

// LevelTrack holds an entity's experience and level.
//
// Invariant: Experience() < ExperienceToNext(); Level() <= MaxLevel.
type LevelTrack struct {
	level      uint32
	experience float32
	toNext     float32
	growth     float32
}

// NewLevelTrack creates a LevelTrack from cfg.
//
// Precondition: cfg.Validate() returns nil.
func NewLevelTrack(cfg LevelConfig) LevelTrack {
	return LevelTrack{
		level:      cfg.Level,
		experience: cfg.Experience,
		toNext:     cfg.ExperienceToNext,
		growth:     cfg.Growth,
	}
}

// Level returns the current level.
func (t *LevelTrack) Level() uint32 { return t.level }

// Experience returns experience accumulated towards the next level.
func (t *LevelTrack) Experience() float32 { return t.experience }

// ExperienceToNext returns the experience required for the next level.
func (t *LevelTrack) ExperienceToNext() float32 { return t.toNext }

// AddExperience adds amount and applies every threshold it crosses in order.
//
// Precondition: amount >= 0; curve must not be nil.
// Postcondition: Experience() < ExperienceToNext(); one LevelUp per level
// gained, at most MaxLevel-1 in total.
func (t *LevelTrack) AddExperience(amount float32, curve BonusCurve) []LevelUp {
	if t.level >= MaxLevel {
		return nil
	}
	t.experience += amount
	var ups []LevelUp
	for t.experience >= t.toNext {
		t.experience -= t.toNext
		t.level++
		t.toNext *= t.growth
		ups = append(ups, LevelUp{NewLevel: t.level, PowerBonus: max(curve.Bonus(t.level), 0)})
		if t.level == MaxLevel {
			// float32 subtraction stalls once experience dwarfs toNext
			t.experience = 0
			break
		}
	}
	return ups
}
