// Package progress tracks level and experience.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalid marks a progress value that breaks its invariants.
var ErrInvalid = errors.New("progress: invalid")

// #region progress

// Progress is a level plus the experience pooled toward the next one.
// CurrentExp < ExpForNext holds after every Award.
type Progress struct {
	Level      int `json:"level"`
	CurrentExp int `json:"current_exp"`
	ExpForNext int `json:"exp_for_next"`
}

// Initial is the progress of a fresh profile.
func Initial() Progress {
	return Progress{Level: 1, CurrentExp: 0, ExpForNext: Threshold(1)}
}

// New validates and builds a progress value.
func New(level, currentExp, expForNext int) (Progress, error) {
	p := Progress{Level: level, CurrentExp: currentExp, ExpForNext: expForNext}
	if err := p.Validate(); err != nil {
		return Progress{}, err
	}
	return p, nil
}

// Validate checks level ≥ 1, exp ≥ 0 and a positive threshold.
func (p Progress) Validate() error {
	switch {
	case p.Level < 1:
		return fmt.Errorf("%w: level %d", ErrInvalid, p.Level)
	case p.CurrentExp < 0:
		return fmt.Errorf("%w: current exp %d", ErrInvalid, p.CurrentExp)
	case p.ExpForNext <= 0:
		return fmt.Errorf("%w: exp for next %d", ErrInvalid, p.ExpForNext)
	}
	return nil
}

// UnmarshalJSON decodes and validates.
func (p *Progress) UnmarshalJSON(data []byte) error {
	type plain Progress
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if err := Progress(v).Validate(); err != nil {
		return err
	}
	*p = Progress(v)
	return nil
}

// #endregion progress

// #region award

// Award adds experience, rolling over as many levels as the pool covers.
// The pool saturates at math.MaxInt. A negative amount is a programming
// error and panics.
func (p Progress) Award(amount int) Progress {
	if amount < 0 {
		panic(fmt.Sprintf("progress: negative award %d", amount))
	}
	if amount == 0 {
		return p
	}
	pool := p.CurrentExp + amount
	if amount > math.MaxInt-p.CurrentExp {
		pool = math.MaxInt
	}
	level, threshold := p.Level, p.ExpForNext
	for pool >= threshold {
		pool -= threshold
		level++
		threshold = Threshold(level)
	}
	return Progress{Level: level, CurrentExp: pool, ExpForNext: threshold}
}

// Threshold is the experience needed to clear the given level:
// floor(100 · 1.35^(level-1)), saturating at math.MaxInt.
func Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	t := math.Floor(100 * math.Pow(1.35, float64(level-1)))
	if t >= math.MaxInt {
		return math.MaxInt
	}
	return int(t)
}

// Reward converts a signal's total impact into experience:
// max(0, round(impact · cadence)).
func Reward(impact, cadence float64) int {
	r := math.Round(impact * cadence)
	if !(r > 0) {
		return 0
	}
	if r >= math.MaxInt {
		return math.MaxInt
	}
	return int(r)
}

// #endregion award
