package power

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientPower is reported when a safe spend asks for more than is available.
	ErrInsufficientPower = errors.New("insufficient power")
	// ErrWouldKnockOut is reported when a safe limit would leave a healthy entity with no capacity.
	ErrWouldKnockOut = errors.New("limit would knock out entity")
	// ErrUnknownEntity is returned for requests addressed to an entity that does not exist.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrInvalidRequest is returned by Submit for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// Op names a request type.
type Op string

const (
	OpSpend         Op = "spend"
	OpTrySpend      Op = "try_spend"
	OpChange        Op = "change"
	OpApplyLimit    Op = "apply_limit"
	OpTryApplyLimit Op = "try_apply_limit"
	OpLiftLimit     Op = "lift_limit"
	OpRevive        Op = "revive"
	OpAddExperience Op = "add_experience"
)

// Request is an operation queued against one entity and applied on its next tick.
type Request interface {
	Op() Op
	// Validate rejects malformed payloads before they are queued.
	Validate() error
}

// Spend removes Amount unconditionally and re-arms regeneration.
type Spend struct{ Amount float32 }

// TrySpend removes Amount only if the entity can afford it.
type TrySpend struct{ Amount float32 }

// Change adds Amount (negative to remove) clamped to [0, max].
type Change struct{ Amount float32 }

// ApplyLimit inserts or refreshes a limit unconditionally.
type ApplyLimit struct{ Limit Limit }

// TryApplyLimit inserts or refreshes a limit unless it would knock out a
// healthy entity.
type TryApplyLimit struct{ Limit Limit }

// LiftLimit removes the limit with ID. Lifting an absent limit is a no-op.
type LiftLimit struct{ ID int64 }

// Revive brings a knocked out entity back with Amount power.
type Revive struct{ Amount float32 }

// AddExperience awards experience, possibly gaining several levels.
type AddExperience struct{ Amount float32 }

func (Spend) Op() Op         { return OpSpend }
func (TrySpend) Op() Op      { return OpTrySpend }
func (Change) Op() Op        { return OpChange }
func (ApplyLimit) Op() Op    { return OpApplyLimit }
func (TryApplyLimit) Op() Op { return OpTryApplyLimit }
func (LiftLimit) Op() Op     { return OpLiftLimit }
func (Revive) Op() Op        { return OpRevive }
func (AddExperience) Op() Op { return OpAddExperience }

func (r Spend) Validate() error    { return nonNegative(OpSpend, r.Amount) }
func (r TrySpend) Validate() error { return nonNegative(OpTrySpend, r.Amount) }
func (r Change) Validate() error {
	if !finite(r.Amount) {
		return fmt.Errorf("%w: %s amount must be finite, got %v", ErrInvalidRequest, OpChange, r.Amount)
	}
	return nil
}
func (r ApplyLimit) Validate() error    { return validLimit(OpApplyLimit, r.Limit) }
func (r TryApplyLimit) Validate() error { return validLimit(OpTryApplyLimit, r.Limit) }
func (LiftLimit) Validate() error       { return nil }
func (r Revive) Validate() error        { return nonNegative(OpRevive, r.Amount) }
func (r AddExperience) Validate() error { return nonNegative(OpAddExperience, r.Amount) }

func nonNegative(op Op, v float32) error {
	if !finite(v) || v < 0 {
		return fmt.Errorf("%w: %s amount must be a finite value >= 0, got %v", ErrInvalidRequest, op, v)
	}
	return nil
}

func validLimit(op Op, l Limit) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRequest, op, err)
	}
	return nil
}
