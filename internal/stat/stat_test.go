package stat

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestNewRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		base  float64
		alpha float64
	}{
		{"base below zero", -0.1, 0.15},
		{"base above hundred", 100.01, 0.15},
		{"alpha below zero", 50, -0.01},
		{"alpha above one", 50, 1.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Wealth, tt.base, tt.alpha)
			require.ErrorIs(t, err, ErrOutOfRange)
		})
	}

	_, err := New(Wealth, 0, 0)
	require.NoError(t, err)
	_, err = New(Wealth, 100, 1)
	require.NoError(t, err)
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew(Vital, 120, 0.15) })
}

func TestModifierExpiryIsExclusive(t *testing.T) {
	m := NewModifier(Source{Label: "test"}, Wealth, Buff, 5, 1, ptr(t0), "")
	assert.True(t, m.IsActive(t0.Add(-time.Nanosecond)))
	assert.False(t, m.IsActive(t0))
	assert.False(t, m.IsActive(t0.Add(time.Hour)))

	perm := NewModifier(Source{Label: "perm"}, Wealth, Buff, 5, 1, nil, "")
	assert.True(t, perm.IsActive(t0.Add(100*365*24*time.Hour)))
	_, ok := perm.Remaining(t0)
	assert.False(t, ok)
}

func TestEffectiveScoreAddsBeforeMultiplying(t *testing.T) {
	s := MustNew(Cognition, 50, 0.15,
		Modifier{ID: "a", Target: Cognition, Magnitude: 10, Multiplier: 0.5},
		Modifier{ID: "b", Target: Cognition, Magnitude: 20, Multiplier: 1.5},
	)
	// raw = clamp(50+30) = 80; product = 0.75
	assert.InDelta(t, 60.0, s.EffectiveScore(t0), 1e-9)
}

func TestEffectiveScoreClampsBeforeMultiplier(t *testing.T) {
	s := MustNew(Vital, 90, 0.15,
		Modifier{ID: "a", Target: Vital, Magnitude: 50, Multiplier: 0.5},
	)
	// raw clamps to 100 first, then halves.
	assert.InDelta(t, 50.0, s.EffectiveScore(t0), 1e-9)
}

func TestEffectiveScoreIgnoresExpiredModifier(t *testing.T) {
	s := MustNew(Wealth, 64, 0.15,
		Modifier{ID: "half", Target: Wealth, Magnitude: 0, Multiplier: 0.5, ExpiresAt: ptr(t0.Add(-time.Minute))},
	)
	assert.False(t, s.Modifiers[0].IsActive(t0))
	assert.Equal(t, 64.0, s.EffectiveScore(t0))
	assert.Empty(t, s.ActiveModifiers(t0))
}

func TestEffectiveScoreAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		var mods []Modifier
		for j := 0; j < rng.Intn(5); j++ {
			mods = append(mods, Modifier{
				ID:         "m",
				Target:     Mood,
				Magnitude:  rng.Float64()*400 - 200,
				Multiplier: rng.Float64()*6 - 2,
			})
		}
		s := MustNew(Mood, rng.Float64()*100, rng.Float64(), mods...)
		got := s.EffectiveScore(t0)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 100.0)
	}
}

func TestWithUpdatedBaseConvergesWithoutOvershoot(t *testing.T) {
	s := MustNew(Vital, 55, 0.15)
	prev := s.BaseScore
	for i := 0; i < 40; i++ {
		s = s.WithUpdatedBase(80)
		require.Greater(t, s.BaseScore, prev)
		require.LessOrEqual(t, s.BaseScore, 80.0)
		prev = s.BaseScore
	}
	assert.InDelta(t, 80, s.BaseScore, 0.1)
}

func TestWithUpdatedBaseClampsObservation(t *testing.T) {
	s := MustNew(Wealth, 90, 0.5)
	s = s.WithUpdatedBase(250)
	assert.Equal(t, 95.0, s.BaseScore)

	s = MustNew(Wealth, 10, 0.5).WithUpdatedBase(-40)
	assert.Equal(t, 5.0, s.BaseScore)
}

func TestWithUpdatedBaseIgnoresNaN(t *testing.T) {
	s := MustNew(Wealth, 42, 0.5)
	assert.Equal(t, 42.0, s.WithUpdatedBase(math.NaN()).BaseScore)
}

func TestWithModifierDoesNotAlias(t *testing.T) {
	base := MustNew(Social, 55, 0.15, Modifier{ID: "a", Target: Social, Multiplier: 1})
	base.Modifiers = base.Modifiers[:1:1]
	a := base.WithModifier(Modifier{ID: "b", Target: Social, Multiplier: 1})
	b := base.WithModifier(Modifier{ID: "c", Target: Social, Multiplier: 1})
	assert.Equal(t, "b", a.Modifiers[1].ID)
	assert.Equal(t, "c", b.Modifiers[1].ID)
	assert.Len(t, base.Modifiers, 1)
}

func TestPruneExpired(t *testing.T) {
	s := MustNew(Wealth, 55, 0.15,
		Modifier{ID: "old", Target: Wealth, Multiplier: 1, ExpiresAt: ptr(t0.Add(-time.Hour))},
		Modifier{ID: "live", Target: Wealth, Multiplier: 1, ExpiresAt: ptr(t0.Add(time.Hour))},
		Modifier{ID: "perm", Target: Wealth, Multiplier: 1},
	)
	pruned, n := s.PruneExpired(t0)
	assert.Equal(t, 1, n)
	require.Len(t, pruned.Modifiers, 2)
	assert.Equal(t, "live", pruned.Modifiers[0].ID)
	assert.Len(t, s.Modifiers, 3)
}

func TestValidateRejectsMismatchedModifier(t *testing.T) {
	_, err := New(Wealth, 50, 0.1, Modifier{ID: "x", Target: Vital, Multiplier: 1})
	require.Error(t, err)
}

func TestSheetPresence(t *testing.T) {
	sh := NewSheet(MustNew(Wealth, 55, 0.15), MustNew(Balance, 60, 0.15))
	assert.True(t, sh.Has(Wealth))
	assert.False(t, sh.Has(Social))
	assert.Equal(t, []Kind{Wealth, Balance}, sh.Kinds())
	assert.Equal(t, 0.0, sh.Score(Social, t0))

	cp := sh
	cp.Delete(Wealth)
	assert.True(t, sh.Has(Wealth), "deleting from a copy must not affect the original")
	assert.Equal(t, 1, cp.Len())
}

func TestSheetJSON(t *testing.T) {
	sh := NewSheet(
		MustNew(Wealth, 56.8, 0.15),
		MustNew(Mood, 40, 0.2, Modifier{ID: "m", Target: Mood, Kind: Debuff, Magnitude: -5, Multiplier: 1}),
	)
	data, err := json.Marshal(sh)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"wealth"`)
	assert.Contains(t, string(data), `"target":"mood"`)

	var back Sheet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sh, back)
}

func TestSheetJSONRejectsInvalidStat(t *testing.T) {
	var sh Sheet
	err := json.Unmarshal([]byte(`{"wealth":{"kind":"wealth","base_score":140,"smoothing_factor":0.15}}`), &sh)
	require.ErrorIs(t, err, ErrOutOfRange)

	err = json.Unmarshal([]byte(`{"vital":{"kind":"wealth","base_score":40,"smoothing_factor":0.15}}`), &sh)
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Cognition ")
	require.NoError(t, err)
	assert.Equal(t, Cognition, k)

	_, err = ParseKind("luck")
	require.ErrorIs(t, err, ErrUnknownKind)

	for _, k := range AllKinds() {
		assert.Equal(t, k.IsCore(), k <= Balance, k.String())
	}
}
