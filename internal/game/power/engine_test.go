package power_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/powerbar/internal/game/power"
)

func newTestEngine(t *testing.T, opts ...power.Option) *power.Engine {
	t.Helper()
	return power.NewEngine(zap.NewNop(), opts...)
}

func TestNewEngine_NilLoggerPanics(t *testing.T) {
	assert.Panics(t, func() { power.NewEngine(nil) })
}

func TestEngine_SpawnAssignsUUID(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.Spawn(power.DefaultTemplate())
	require.NoError(t, err)
	_, err = uuid.Parse(string(id))
	assert.NoError(t, err)
	assert.Equal(t, 1, e.Len())
}

func TestEngine_SpawnWithIDRejectsDuplicatesAndInvalid(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	assert.Error(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	assert.Error(t, e.SpawnWithID("", power.DefaultTemplate()))

	bad := power.DefaultTemplate()
	bad.BaseMax = -5
	assert.Error(t, e.SpawnWithID("other", bad))
	assert.Equal(t, 1, e.Len())
}

func TestEngine_SubmitUnknownEntity(t *testing.T) {
	e := newTestEngine(t)
	err := e.Submit("ghost", power.Spend{Amount: 1})
	assert.ErrorIs(t, err, power.ErrUnknownEntity)
}

func TestEngine_SubmitInvalidRequest(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	assert.ErrorIs(t, e.Submit("hero", power.Revive{Amount: -3}), power.ErrInvalidRequest)
}

func TestEngine_Despawn(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	require.NoError(t, e.Despawn("hero"))
	assert.ErrorIs(t, e.Despawn("hero"), power.ErrUnknownEntity)
	_, ok := e.Get("hero")
	assert.False(t, ok)
}

func TestEngine_TickRejectsBadDt(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Tick(context.Background(), -1)
	assert.Error(t, err)
}

func TestEngine_TickCancelledContext(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Tick(ctx, 0.1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_TickCancelledBeforeFanOutLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	require.NoError(t, e.Submit("hero", power.Spend{Amount: 100}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Tick(ctx, 0.1)
	require.ErrorIs(t, err, context.Canceled)

	ent, _ := e.Get("hero")
	s := ent.Snapshot()
	assert.Equal(t, float32(100), s.Current)
	assert.Equal(t, 1, s.Pending)
}

// cancellingCurve cancels a context the first time a bonus is requested.
type cancellingCurve struct {
	cancel context.CancelFunc
}

func (c cancellingCurve) Bonus(level uint32) float32 {
	c.cancel()
	return power.DefaultBonusCurve().Bonus(level)
}

func TestEngine_TickCancelledMidFanOutKeepsEveryNotification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newTestEngine(t, power.WithWorkers(1), power.WithBonusCurve(cancellingCurve{cancel: cancel}))
	for _, id := range []power.EntityID{"a", "b"} {
		require.NoError(t, e.SpawnWithID(id, power.DefaultTemplate()))
	}
	// a's level-up cancels ctx before b is ticked
	require.NoError(t, e.Submit("a", power.AddExperience{Amount: 100}))
	require.NoError(t, e.Submit("b", power.Spend{Amount: 100}))

	ns, err := e.Tick(ctx, 0)
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, 1, count[power.LevelUpNotice](ns))
	assert.Equal(t, 1, count[power.KnockedOut](ns))

	b, _ := e.Get("b")
	assert.True(t, b.Snapshot().KnockedOut)
	assert.Equal(t, 0, b.Snapshot().Pending)
}

func TestEngine_HandleQueuesUntilTick(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	h, ok := e.Handle("hero")
	require.True(t, ok)
	assert.Equal(t, power.EntityID("hero"), h.ID())

	require.NoError(t, h.Spend(30))
	require.NoError(t, h.LimitPoints(1, 20, 0, false))
	require.NoError(t, h.LimitPercentage(2, 50, 3, false))
	s := h.Snapshot()
	assert.Equal(t, float32(100), s.Current, "requests are not applied before the tick")
	assert.Equal(t, 3, s.Pending)

	_, err := e.Tick(context.Background(), 0)
	require.NoError(t, err)
	s = h.Snapshot()
	assert.InDelta(t, 40, s.Max, 1e-4)
	assert.InDelta(t, 40, s.Current, 1e-4)
	assert.Equal(t, 0, s.Pending)
	require.Len(t, s.Limits, 2)
	assert.Nil(t, s.Limits[0].Remaining)
	require.NotNil(t, s.Limits[1].Remaining)

	_, ok = e.Handle("ghost")
	assert.False(t, ok)
}

func TestEngine_NotificationsGroupedByEntityID(t *testing.T) {
	e := newTestEngine(t, power.WithWorkers(4))
	ids := []power.EntityID{"d", "b", "a", "c"}
	for _, id := range ids {
		require.NoError(t, e.SpawnWithID(id, power.DefaultTemplate()))
		require.NoError(t, e.Submit(id, power.Spend{Amount: 100}))
		require.NoError(t, e.Submit(id, power.Revive{Amount: 10}))
	}
	ns, err := e.Tick(context.Background(), 0)
	require.NoError(t, err)

	var got []string
	for _, n := range ns {
		got = append(got, fmt.Sprintf("%s:%T", n.EntityID(), n))
	}
	var want []string
	for _, id := range []string{"a", "b", "c", "d"} {
		want = append(want,
			id+":power.Result",
			id+":power.Result",
			id+":power.KnockedOut",
		)
	}
	assert.Equal(t, want, got)
}

func TestEngine_ConcurrentSubmitAndTick(t *testing.T) {
	e := newTestEngine(t, power.WithWorkers(8))
	const n = 64
	for i := 0; i < n; i++ {
		require.NoError(t, e.SpawnWithID(power.EntityID(fmt.Sprintf("e%02d", i)), power.DefaultTemplate()))
	}

	var wg sync.WaitGroup
	for _, id := range e.IDs() {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = e.Submit(id, power.Change{Amount: -1})
			}
		}()
	}
	wg.Wait()

	ns, err := e.Tick(context.Background(), 0.1)
	require.NoError(t, err)
	assert.Len(t, ns, n*10)
	for _, id := range e.IDs() {
		ent, ok := e.Get(id)
		require.True(t, ok)
		assert.Equal(t, float32(90), ent.Snapshot().Current)
	}
}

func TestEngine_WithBonusCurve(t *testing.T) {
	e := newTestEngine(t, power.WithBonusCurve(power.DiminishingCurve{Base: 50}))
	require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
	require.NoError(t, e.Submit("hero", power.AddExperience{Amount: 250}))
	_, err := e.Tick(context.Background(), 0)
	require.NoError(t, err)
	ent, _ := e.Get("hero")
	assert.InDelta(t, 200, ent.Snapshot().BaseMax, 1e-4)
}

func genRequest(t *rapid.T) power.Request {
	amount := rapid.Float32Range(0, 150).Draw(t, "amount")
	switch rapid.IntRange(0, 7).Draw(t, "op") {
	case 0:
		return power.Spend{Amount: amount}
	case 1:
		return power.TrySpend{Amount: amount}
	case 2:
		if rapid.Bool().Draw(t, "negative") {
			amount = -amount
		}
		return power.Change{Amount: amount}
	case 3:
		return power.ApplyLimit{Limit: genTimedLimit(t)}
	case 4:
		return power.TryApplyLimit{Limit: genTimedLimit(t)}
	case 5:
		return power.LiftLimit{ID: rapid.Int64Range(1, 6).Draw(t, "lift")}
	case 6:
		return power.Revive{Amount: amount}
	default:
		return power.AddExperience{Amount: amount}
	}
}

func genTimedLimit(t *rapid.T) power.Limit {
	l := genLimit(t, "limit")
	if rapid.Bool().Draw(t, "timed") {
		l.Remaining = power.Seconds(rapid.Float32Range(0.1, 5).Draw(t, "duration"))
	}
	l.BlocksRegen = rapid.Bool().Draw(t, "blocks")
	l.ResetsRegenCooldown = rapid.Bool().Draw(t, "resets")
	return l
}

func TestPropertyEngine_PoolInvariantsHoldAfterEveryTick(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := power.NewEngine(zap.NewNop(), power.WithWorkers(2))
		require.NoError(t, e.SpawnWithID("hero", power.DefaultTemplate()))
		ticks := rapid.IntRange(1, 30).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			reqs := rapid.IntRange(0, 4).Draw(t, "reqs")
			for j := 0; j < reqs; j++ {
				require.NoError(t, e.Submit("hero", genRequest(t)))
			}
			_, err := e.Tick(context.Background(), rapid.Float32Range(0, 1).Draw(t, "dt"))
			require.NoError(t, err)

			ent, _ := e.Get("hero")
			s := ent.Snapshot()
			assert.GreaterOrEqual(t, s.Current, float32(0))
			assert.LessOrEqual(t, s.Current, s.Max)
			assert.LessOrEqual(t, s.Max, s.BaseMax)
			assert.Equal(t, s.Current == 0, s.KnockedOut)
			if s.Max == 0 {
				assert.True(t, s.KnockedOut)
			}
		}
	})
}
