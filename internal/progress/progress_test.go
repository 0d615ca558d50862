package progress

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitial(t *testing.T) {
	assert.Equal(t, Progress{Level: 1, CurrentExp: 0, ExpForNext: 100}, Initial())
}

func TestThresholdCurve(t *testing.T) {
	assert.Equal(t, 100, Threshold(1))
	assert.Equal(t, 135, Threshold(2))
	assert.Equal(t, 182, Threshold(3)) // 182.25
	assert.Equal(t, 246, Threshold(4)) // 246.0375
	assert.Equal(t, 100, Threshold(0))
}

func TestAwardZeroIsNoop(t *testing.T) {
	p := Progress{Level: 3, CurrentExp: 17, ExpForNext: 182}
	assert.Equal(t, p, p.Award(0))
}

func TestAwardNegativePanics(t *testing.T) {
	assert.Panics(t, func() { Initial().Award(-1) })
}

func TestAwardExactThresholdLevelsUp(t *testing.T) {
	p := Initial().Award(100)
	assert.Equal(t, Progress{Level: 2, CurrentExp: 0, ExpForNext: 135}, p)
}

func TestAwardRollsOverSeveralLevels(t *testing.T) {
	p := Initial().Award(100 + 135 + 182 + 5)
	assert.Equal(t, Progress{Level: 4, CurrentExp: 5, ExpForNext: 246}, p)
}

func TestAwardIsAdditive(t *testing.T) {
	for a := 0; a < 400; a += 37 {
		for b := 0; b < 400; b += 53 {
			split := Initial().Award(a).Award(b)
			whole := Initial().Award(a + b)
			require.Equal(t, whole, split, "a=%d b=%d", a, b)
			require.Less(t, whole.CurrentExp, whole.ExpForNext)
		}
	}
}

func TestThresholdSaturates(t *testing.T) {
	assert.Equal(t, math.MaxInt, Threshold(140))
	assert.Equal(t, math.MaxInt, Threshold(5000))
	prev := 0
	for level := 1; level <= 200; level++ {
		th := Threshold(level)
		require.Positive(t, th, "level %d", level)
		require.GreaterOrEqual(t, th, prev, "level %d", level)
		prev = th
	}
}

func TestAwardNearMaxIntKeepsInvariant(t *testing.T) {
	p := Initial().Award(50).Award(math.MaxInt - 10)
	require.NoError(t, p.Validate())
	assert.GreaterOrEqual(t, p.CurrentExp, 0)
	assert.Less(t, p.CurrentExp, p.ExpForNext)
	assert.Equal(t, Threshold(p.Level), p.ExpForNext)
	assert.Greater(t, p.Level, 100)

	again := p.Award(math.MaxInt)
	require.NoError(t, again.Validate())
	assert.Less(t, again.CurrentExp, again.ExpForNext)
	assert.GreaterOrEqual(t, again.Level, p.Level)
}

func TestReward(t *testing.T) {
	assert.Equal(t, 13, Reward(12, 1.1))     // 13.2
	assert.Equal(t, 14, Reward(12.6, 1.1))   // 13.86
	assert.Equal(t, 0, Reward(0.2, 0.6))     // 0.12
	assert.Equal(t, 0, Reward(-5, 1.0))
	assert.Equal(t, math.MaxInt, Reward(1e300, 1.5))
}

func TestUnmarshalValidates(t *testing.T) {
	var p Progress
	require.NoError(t, json.Unmarshal([]byte(`{"level":2,"current_exp":10,"exp_for_next":135}`), &p))
	assert.Equal(t, 2, p.Level)

	err := json.Unmarshal([]byte(`{"level":0,"current_exp":10,"exp_for_next":135}`), &p)
	require.ErrorIs(t, err, ErrInvalid)

	_, err = New(1, -1, 100)
	require.ErrorIs(t, err, ErrInvalid)
}
