package power

// EntityID identifies an entity owning a power pool.
type EntityID string

// Notification is an outcome emitted by a tick.
type Notification interface {
	EntityID() EntityID
}

// Result echoes one request. Accepted is false only for rejected safe operations.
type Result struct {
	Entity   EntityID
	Op       Op
	Accepted bool
	// Err explains a rejection; nil when Accepted.
	Err error
}

// KnockedOut is emitted once when an entity enters the knocked out state.
type KnockedOut struct{ Entity EntityID }

// Revived is emitted when a revive brings an entity back.
type Revived struct {
	Entity  EntityID
	Current float32
}

// LevelUpNotice is emitted per level gained.
type LevelUpNotice struct {
	Entity     EntityID
	NewLevel   uint32
	PowerBonus float32
}

// LimitExpired is emitted when a timed limit runs out.
type LimitExpired struct {
	Entity  EntityID
	LimitID int64
}

func (n Result) EntityID() EntityID        { return n.Entity }
func (n KnockedOut) EntityID() EntityID    { return n.Entity }
func (n Revived) EntityID() EntityID       { return n.Entity }
func (n LevelUpNotice) EntityID() EntityID { return n.Entity }
func (n LimitExpired) EntityID() EntityID  { return n.Entity }
