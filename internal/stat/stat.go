package stat

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// #region stat

// Stat is one axis of the status model: a smoothed base score plus the
// modifiers layered on top of it.
//
// Stat values are immutable in practice. Every method returns a new Stat and
// the Modifiers slice is never written through, so copies may share it.
type Stat struct {
	Kind            Kind       `json:"kind"`
	BaseScore       float64    `json:"base_score"`
	SmoothingFactor float64    `json:"smoothing_factor"`
	Modifiers       []Modifier `json:"modifiers,omitempty"`
}

// New validates and builds a stat.
func New(kind Kind, baseScore, smoothingFactor float64, modifiers ...Modifier) (Stat, error) {
	s := Stat{
		Kind:            kind,
		BaseScore:       baseScore,
		SmoothingFactor: smoothingFactor,
		Modifiers:       modifiers,
	}
	if err := s.Validate(); err != nil {
		return Stat{}, err
	}
	return s, nil
}

// MustNew is New for values known to be valid. It panics on a contract
// violation.
func MustNew(kind Kind, baseScore, smoothingFactor float64, modifiers ...Modifier) Stat {
	s, err := New(kind, baseScore, smoothingFactor, modifiers...)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks the construction contract. Values are never clamped here.
func (s Stat) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(s.Kind))
	}
	if !(s.BaseScore >= MinScore && s.BaseScore <= MaxScore) {
		return fmt.Errorf("%w: %s base score %v not in [0,100]", ErrOutOfRange, s.Kind, s.BaseScore)
	}
	if !(s.SmoothingFactor >= 0 && s.SmoothingFactor <= 1) {
		return fmt.Errorf("%w: %s smoothing factor %v not in [0,1]", ErrOutOfRange, s.Kind, s.SmoothingFactor)
	}
	for _, m := range s.Modifiers {
		if m.Target != s.Kind {
			return fmt.Errorf("stat: modifier %s targets %s but is attached to %s", m.ID, m.Target, s.Kind)
		}
		if math.IsNaN(m.Magnitude) || math.IsInf(m.Magnitude, 0) ||
			math.IsNaN(m.Multiplier) || math.IsInf(m.Multiplier, 0) {
			return fmt.Errorf("%w: modifier %s has a non-finite effect", ErrOutOfRange, m.ID)
		}
	}
	return nil
}

// UnmarshalJSON decodes and validates a stat.
func (s *Stat) UnmarshalJSON(data []byte) error {
	type plain Stat
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := Stat(p).Validate(); err != nil {
		return err
	}
	*s = Stat(p)
	return nil
}

// Equal compares two stats field by field, expiry instants by time.Equal.
func (s Stat) Equal(o Stat) bool {
	if s.Kind != o.Kind || s.BaseScore != o.BaseScore || s.SmoothingFactor != o.SmoothingFactor ||
		len(s.Modifiers) != len(o.Modifiers) {
		return false
	}
	for i := range s.Modifiers {
		if !s.Modifiers[i].Equal(o.Modifiers[i]) {
			return false
		}
	}
	return true
}

// #endregion stat

// #region effective-score

// EffectiveScore folds the modifiers active at the given instant into the
// base score. Additive magnitudes are summed and applied first, the result is
// clamped, and only then is the product of multipliers applied and clamped
// again. The result is always within [0,100].
func (s Stat) EffectiveScore(at time.Time) float64 {
	product, additive := 1.0, 0.0
	for _, m := range s.Modifiers {
		if !m.IsActive(at) {
			continue
		}
		product *= m.Multiplier
		additive += m.Magnitude
	}
	raw := Clamp(s.BaseScore + additive)
	return Clamp(raw * product)
}

// ActiveModifiers returns the modifiers that apply at the given instant, in
// list order.
func (s Stat) ActiveModifiers(at time.Time) []Modifier {
	var out []Modifier
	for _, m := range s.Modifiers {
		if m.IsActive(at) {
			out = append(out, m)
		}
	}
	return out
}

// #endregion effective-score

// #region ewma

// WithUpdatedBase blends an observation into the base score:
// base' = (1-α)·base + α·clamp(observation).
// A NaN observation leaves the stat unchanged.
func (s Stat) WithUpdatedBase(observation float64) Stat {
	return s.WithUpdatedBaseAlpha(observation, s.SmoothingFactor)
}

// WithUpdatedBaseAlpha is WithUpdatedBase with an explicit smoothing factor
// for this one observation.
func (s Stat) WithUpdatedBaseAlpha(observation, alpha float64) Stat {
	if math.IsNaN(observation) || !(alpha >= 0 && alpha <= 1) {
		return s
	}
	normalized := Clamp(observation)
	s.BaseScore = (1-alpha)*s.BaseScore + alpha*normalized
	return s
}

// #endregion ewma

// #region modifiers

// WithModifier returns a copy with m appended. The original slice is not
// touched.
func (s Stat) WithModifier(m Modifier) Stat {
	mods := make([]Modifier, 0, len(s.Modifiers)+1)
	mods = append(mods, s.Modifiers...)
	s.Modifiers = append(mods, m)
	return s
}

// PruneExpired drops modifiers that are no longer active at the given
// instant. The engine never calls this; collaborators decide when to
// garbage-collect.
func (s Stat) PruneExpired(at time.Time) (Stat, int) {
	kept := make([]Modifier, 0, len(s.Modifiers))
	for _, m := range s.Modifiers {
		if m.IsActive(at) {
			kept = append(kept, m)
		}
	}
	removed := len(s.Modifiers) - len(kept)
	if removed == 0 {
		return s, 0
	}
	if len(kept) == 0 {
		kept = nil
	}
	s.Modifiers = kept
	return s, removed
}

// #endregion modifiers

// #region helpers

// Clamp restricts v to [0,100]. NaN maps to 0.
func Clamp(v float64) float64 {
	return ClampRange(v, MinScore, MaxScore)
}

// ClampRange restricts v to [lo,hi]. NaN maps to lo.
func ClampRange(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion helpers
