package power_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/powerbar/internal/game/power"
)

func points(id int64, n float32) power.Limit {
	return power.Limit{ID: id, Kind: power.LimitPoints, Magnitude: n}
}

func percent(id int64, p float32) power.Limit {
	return power.Limit{ID: id, Kind: power.LimitPercentage, Magnitude: p}
}

func timed(l power.Limit, seconds float32) power.Limit {
	l.Remaining = power.Seconds(seconds)
	return l
}

func TestLimitStack_PointsApplyBeforePercentage(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(points(1, 20))
	s.Apply(percent(2, 50))
	assert.InDelta(t, 40, s.EffectiveMax(100), 1e-4)
}

func TestLimitStack_PercentageFirstStillChargesPointsFirst(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(percent(1, 50))
	s.Apply(points(2, 20))
	assert.InDelta(t, 40, s.EffectiveMax(100), 1e-4, "(100-20)*0.5, never 100*0.5-20")
}

func TestLimitStack_PercentagesCompound(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(percent(1, 50))
	s.Apply(percent(2, 50))
	assert.InDelta(t, 25, s.EffectiveMax(100), 1e-4)
}

func TestLimitStack_PointsFlooredAtZero(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(points(1, 80))
	s.Apply(points(2, 80))
	assert.Equal(t, float32(0), s.EffectiveMax(100))
	assert.True(t, s.WouldCauseKnockout(100))
}

func TestLimitStack_ApplySameIDReplacesInPlace(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(points(1, 10))
	s.Apply(points(2, 10))
	s.Apply(timed(points(1, 30), 4))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID, "replacement keeps its position")
	assert.Equal(t, float32(30), all[0].Magnitude)
	require.NotNil(t, all[0].Remaining)
	assert.Equal(t, float32(4), *all[0].Remaining)
	assert.InDelta(t, 60, s.EffectiveMax(100), 1e-4)
}

func TestLimitStack_LiftAbsentIsNoOp(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(points(1, 10))
	assert.True(t, s.Lift(1))
	assert.False(t, s.Lift(1), "second lift must be a no-op")
	assert.Equal(t, 0, s.Len())
}

func TestLimitStack_AdvanceExpiresExactlyAtZero(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(timed(points(7, 30), 5))

	assert.Empty(t, s.Advance(2.5))
	assert.True(t, s.Has(7))
	assert.InDelta(t, 70, s.EffectiveMax(100), 1e-4)

	assert.Equal(t, []int64{7}, s.Advance(2.5))
	assert.False(t, s.Has(7))
	assert.Equal(t, float32(100), s.EffectiveMax(100))
}

func TestLimitStack_PermanentNeverExpires(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(points(1, 10))
	for i := 0; i < 100; i++ {
		assert.Empty(t, s.Advance(10))
	}
	assert.True(t, s.Has(1))
}

func TestLimitStack_ApplyCopiesTimer(t *testing.T) {
	l := timed(points(1, 10), 5)
	s := power.NewLimitStack()
	s.Apply(l)
	*l.Remaining = 0.1
	s.Advance(1)
	assert.True(t, s.Has(1), "caller's pointer must not alias the stack's timer")
}

func TestLimitStack_WouldCauseKnockoutWith_DoesNotMutate(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(points(1, 50))
	assert.True(t, s.WouldCauseKnockoutWith(points(2, 50), 100))
	assert.False(t, s.WouldCauseKnockoutWith(points(1, 60), 100), "same id replaces rather than adds")
	assert.Equal(t, 1, s.Len())
	assert.InDelta(t, 50, s.EffectiveMax(100), 1e-4)
}

func TestLimitStack_BlocksRegen(t *testing.T) {
	s := power.NewLimitStack()
	s.Apply(points(1, 10))
	assert.False(t, s.BlocksRegen())
	l := points(2, 0)
	l.BlocksRegen = true
	s.Apply(l)
	assert.True(t, s.BlocksRegen())
	s.Lift(2)
	assert.False(t, s.BlocksRegen())
}

func TestLimitStack_Segments(t *testing.T) {
	s := power.NewLimitStack()
	red := points(1, 20)
	red.Color = "red"
	s.Apply(red)
	s.Apply(percent(2, 50))

	segs := s.Segments(100)
	require.Len(t, segs, 2)
	assert.Equal(t, "red", segs[0].Color)
	assert.InDelta(t, 0.2, segs[0].Fraction, 1e-5)
	assert.InDelta(t, 0.4, segs[1].Fraction, 1e-5)
}

func TestLimit_Validate(t *testing.T) {
	assert.NoError(t, points(1, 0).Validate())
	assert.NoError(t, percent(1, 100).Validate())
	assert.Error(t, percent(1, 101).Validate())
	assert.Error(t, points(1, -1).Validate())
	assert.Error(t, timed(points(1, 1), 0).Validate())
	assert.Error(t, power.Limit{ID: 1, Kind: power.LimitKind(9)}.Validate())
}

func TestParseLimitKind(t *testing.T) {
	k, err := power.ParseLimitKind("Points")
	require.NoError(t, err)
	assert.Equal(t, power.LimitPoints, k)
	k, err = power.ParseLimitKind("percentage")
	require.NoError(t, err)
	assert.Equal(t, power.LimitPercentage, k)
	_, err = power.ParseLimitKind("fraction")
	assert.Error(t, err)
}

func genLimit(t *rapid.T, label string) power.Limit {
	id := rapid.Int64Range(1, 6).Draw(t, label+"_id")
	if rapid.Bool().Draw(t, label+"_pct") {
		return percent(id, rapid.Float32Range(0, 100).Draw(t, label+"_mag"))
	}
	return points(id, rapid.Float32Range(0, 150).Draw(t, label+"_mag"))
}

func TestPropertyLimitStack_EffectiveMaxBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Float32Range(1, 1000).Draw(t, "base")
		n := rapid.IntRange(0, 8).Draw(t, "n")
		s := power.NewLimitStack()
		for i := 0; i < n; i++ {
			s.Apply(genLimit(t, "limit"))
		}
		m := s.EffectiveMax(base)
		assert.GreaterOrEqual(t, m, float32(0))
		assert.LessOrEqual(t, m, base)
	})
}

func TestPropertyLimitStack_SegmentsSumToRemovedShare(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Float32Range(1, 1000).Draw(t, "base")
		n := rapid.IntRange(1, 6).Draw(t, "n")
		s := power.NewLimitStack()
		for i := 0; i < n; i++ {
			s.Apply(genLimit(t, "limit"))
		}
		var sum float32
		for _, seg := range s.Segments(base) {
			sum += seg.Fraction
		}
		assert.InDelta(t, 1-s.EffectiveMax(base)/base, sum, 1e-3)
	})
}
