// Package sim drives a power engine in real time.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/powerbar/internal/game/power"
)

// Ticker advances a simulation by dt seconds.
type Ticker interface {
	Tick(ctx context.Context, dt float32) ([]power.Notification, error)
}

// Batch is the outcome of one tick.
type Batch struct {
	// Seq is the 1-based tick number.
	Seq uint64
	// Elapsed is the simulated seconds after this tick.
	Elapsed       float32
	Notifications []power.Notification
}

// TickLoop ticks an engine once per interval with a fixed dt equal to the
// interval, and broadcasts each Batch to subscribers.
//
// Invariant: Seq increases by exactly one per tick; subscribers never block the loop.
type TickLoop struct {
	engine   Ticker
	interval time.Duration
	dt       float32
	logger   *zap.Logger

	mu          sync.Mutex
	seq         uint64
	elapsed     float32
	dropped     uint64
	subscribers map[chan<- Batch]struct{}
}

// NewTickLoop returns a stopped loop.
//
// Precondition: engine and logger must be non-nil; interval must be > 0.
func NewTickLoop(engine Ticker, interval time.Duration, logger *zap.Logger) *TickLoop {
	if engine == nil {
		panic("sim.NewTickLoop: engine must not be nil")
	}
	if interval <= 0 {
		panic("sim.NewTickLoop: interval must be > 0")
	}
	if logger == nil {
		panic("sim.NewTickLoop: logger must not be nil")
	}
	return &TickLoop{
		engine:      engine,
		interval:    interval,
		dt:          float32(interval.Seconds()),
		logger:      logger,
		subscribers: make(map[chan<- Batch]struct{}),
	}
}

// Subscribe registers ch to receive every Batch.
// If ch is full, the batch is dropped for that subscriber (non-blocking).
//
// Precondition: ch must not be nil.
func (l *TickLoop) Subscribe(ch chan<- Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (l *TickLoop) Unsubscribe(ch chan<- Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subscribers, ch)
}

// Seq returns the number of completed ticks.
func (l *TickLoop) Seq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Dropped returns how many batches were discarded because a subscriber was full.
func (l *TickLoop) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Step runs a single tick immediately and broadcasts it.
//
// Postcondition: On success Seq() has advanced by one.
func (l *TickLoop) Step(ctx context.Context) (Batch, error) {
	ns, err := l.engine.Tick(ctx, l.dt)
	if err != nil {
		return Batch{}, err
	}

	l.mu.Lock()
	l.seq++
	l.elapsed += l.dt
	b := Batch{Seq: l.seq, Elapsed: l.elapsed, Notifications: ns}
	subs := make([]chan<- Batch, 0, len(l.subscribers))
	for ch := range l.subscribers {
		subs = append(subs, ch)
	}
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- b:
		default:
			l.mu.Lock()
			l.dropped++
			l.mu.Unlock()
		}
	}
	return b, nil
}

// Run ticks once per interval until ctx is cancelled.
//
// Postcondition: Returns nil when ctx is cancelled, or the first tick error.
func (l *TickLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	l.logger.Info("tick loop started", zap.Duration("interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("tick loop stopped", zap.Uint64("ticks", l.Seq()), zap.Uint64("dropped", l.Dropped()))
			return nil
		case <-ticker.C:
			if _, err := l.Step(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				l.logger.Error("tick failed", zap.Uint64("seq", l.Seq()+1), zap.Error(err))
				return err
			}
		}
	}
}
