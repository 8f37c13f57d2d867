package power

import (
	"fmt"
	"math"
	"strings"
)

// LimitKind selects how a Limit reduces capacity.
type LimitKind int

const (
	// LimitPoints subtracts a fixed number of points from capacity.
	LimitPoints LimitKind = iota
	// LimitPercentage removes a fraction of the running capacity.
	LimitPercentage
)

// String returns the YAML spelling of the kind.
func (k LimitKind) String() string {
	switch k {
	case LimitPoints:
		return "points"
	case LimitPercentage:
		return "percentage"
	default:
		return fmt.Sprintf("LimitKind(%d)", int(k))
	}
}

// ParseLimitKind converts "points" or "percentage" into a LimitKind.
func ParseLimitKind(s string) (LimitKind, error) {
	switch strings.ToLower(s) {
	case "points":
		return LimitPoints, nil
	case "percentage", "percent":
		return LimitPercentage, nil
	default:
		return 0, fmt.Errorf("unknown limit kind %q", s)
	}
}

// Limit is one restriction on an entity's maximum power.
type Limit struct {
	// ID is chosen by the caller and unique among the active limits of one entity.
	ID   int64
	Kind LimitKind
	// Magnitude is a point count for LimitPoints or a percentage in [0, 100].
	Magnitude float32
	// Remaining is the seconds left before the limit expires. nil = permanent.
	Remaining *float32
	// ResetsRegenCooldown re-arms the regeneration delay when the limit is applied.
	ResetsRegenCooldown bool
	// BlocksRegen suppresses regeneration for as long as the limit is active.
	BlocksRegen bool
	// Color is display metadata for power bar renderers; the engine never reads it.
	Color string
}

// Seconds returns a pointer suitable for Limit.Remaining.
func Seconds(s float32) *float32 {
	return &s
}

// Permanent reports whether the limit has no expiry timer.
func (l Limit) Permanent() bool {
	return l.Remaining == nil
}

// Validate checks the limit's magnitude and duration.
//
// Postcondition: Returns nil iff Magnitude is finite and >= 0, a percentage
// does not exceed 100, and Remaining (when set) is finite and > 0.
func (l Limit) Validate() error {
	var errs []string
	if !finite(l.Magnitude) || l.Magnitude < 0 {
		errs = append(errs, fmt.Sprintf("magnitude must be a finite value >= 0, got %v", l.Magnitude))
	}
	switch l.Kind {
	case LimitPoints:
	case LimitPercentage:
		if l.Magnitude > 100 {
			errs = append(errs, fmt.Sprintf("percentage must be <= 100, got %v", l.Magnitude))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown kind %d", int(l.Kind)))
	}
	if l.Remaining != nil && (!finite(*l.Remaining) || *l.Remaining <= 0) {
		errs = append(errs, fmt.Sprintf("duration must be a finite value > 0, got %v", *l.Remaining))
	}
	if len(errs) > 0 {
		return fmt.Errorf("limit %d: %s", l.ID, strings.Join(errs, "; "))
	}
	return nil
}

// clone returns a copy that does not share the Remaining timer.
func (l Limit) clone() Limit {
	if l.Remaining != nil {
		r := *l.Remaining
		l.Remaining = &r
	}
	return l
}

// Segment is the share of base capacity consumed by one limit.
type Segment struct {
	LimitID int64
	Color   string
	// Fraction is the portion of base max removed by this limit, in [0, 1].
	Fraction float32
}

// LimitStack is the ordered set of active limits on one entity.
// It is not safe for concurrent use; the owning Entity serialises access.
type LimitStack struct {
	limits []Limit
}

// NewLimitStack creates an empty LimitStack.
func NewLimitStack() *LimitStack {
	return &LimitStack{}
}

// Apply inserts l, or replaces the active limit with the same ID in place.
//
// Postcondition: Get(l.ID) returns l; the position of a replaced limit is unchanged.
func (s *LimitStack) Apply(l Limit) {
	l = l.clone()
	if i := s.index(l.ID); i >= 0 {
		s.limits[i] = l
		return
	}
	s.limits = append(s.limits, l)
}

// Lift removes the limit with the given ID.
// Lifting an absent ID is a no-op and returns false.
func (s *LimitStack) Lift(id int64) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.limits = append(s.limits[:i], s.limits[i+1:]...)
	return true
}

// Advance counts every timed limit down by dt seconds and removes those that
// reach zero.
//
// Postcondition: the returned IDs, in stack order, are no longer present.
func (s *LimitStack) Advance(dt float32) []int64 {
	var expired []int64
	kept := s.limits[:0]
	for _, l := range s.limits {
		if l.Remaining != nil {
			*l.Remaining -= dt
			if *l.Remaining <= 0 {
				expired = append(expired, l.ID)
				continue
			}
		}
		kept = append(kept, l)
	}
	s.limits = kept
	return expired
}

// EffectiveMax computes capacity after limits. All point limits are summed and
// subtracted first; percentage limits then compound in stack order against the
// running value.
//
// Postcondition: 0 <= result <= baseMax.
func (s *LimitStack) EffectiveMax(baseMax float32) float32 {
	return effectiveMax(s.limits, baseMax)
}

// WouldCauseKnockout reports whether the current limits leave no capacity.
func (s *LimitStack) WouldCauseKnockout(baseMax float32) bool {
	return s.EffectiveMax(baseMax) == 0
}

// WouldCauseKnockoutWith reports whether applying l would leave no capacity.
// The stack is not modified.
func (s *LimitStack) WouldCauseKnockoutWith(l Limit, baseMax float32) bool {
	trial := make([]Limit, len(s.limits), len(s.limits)+1)
	copy(trial, s.limits)
	if i := s.index(l.ID); i >= 0 {
		trial[i] = l
	} else {
		trial = append(trial, l)
	}
	return effectiveMax(trial, baseMax) == 0
}

// BlocksRegen reports whether any active limit suppresses regeneration.
func (s *LimitStack) BlocksRegen() bool {
	for _, l := range s.limits {
		if l.BlocksRegen {
			return true
		}
	}
	return false
}

// Segments returns the fraction of baseMax each limit removes, in stack order.
// The fractions sum to 1 - EffectiveMax(baseMax)/baseMax.
func (s *LimitStack) Segments(baseMax float32) []Segment {
	if baseMax <= 0 || len(s.limits) == 0 {
		return nil
	}
	out := make([]Segment, len(s.limits))
	// Points are charged in stack order until the base is exhausted.
	left := baseMax
	for i, l := range s.limits {
		out[i] = Segment{LimitID: l.ID, Color: l.Color}
		if l.Kind != LimitPoints {
			continue
		}
		take := min(l.Magnitude, left)
		left -= take
		out[i].Fraction = take / baseMax
	}
	for i, l := range s.limits {
		if l.Kind != LimitPercentage {
			continue
		}
		take := left * (l.Magnitude / 100)
		left -= take
		out[i].Fraction = take / baseMax
	}
	return out
}

// Get returns a copy of the limit with id.
func (s *LimitStack) Get(id int64) (Limit, bool) {
	if i := s.index(id); i >= 0 {
		return s.limits[i].clone(), true
	}
	return Limit{}, false
}

// Has reports whether a limit with id is active.
func (s *LimitStack) Has(id int64) bool {
	return s.index(id) >= 0
}

// Len returns the number of active limits.
func (s *LimitStack) Len() int {
	return len(s.limits)
}

// All returns copies of the active limits in stack order.
func (s *LimitStack) All() []Limit {
	out := make([]Limit, len(s.limits))
	for i, l := range s.limits {
		out[i] = l.clone()
	}
	return out
}

func (s *LimitStack) index(id int64) int {
	for i, l := range s.limits {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func effectiveMax(limits []Limit, baseMax float32) float32 {
	points := float32(0)
	for _, l := range limits {
		if l.Kind == LimitPoints {
			points += l.Magnitude
		}
	}
	v := max(baseMax-points, 0)
	for _, l := range limits {
		if l.Kind == LimitPercentage {
			v *= 1 - l.Magnitude/100
		}
	}
	return max(v, 0)
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
