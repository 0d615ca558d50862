package stat

import (
	"time"

	"github.com/google/uuid"
)

// #region modifier-kind

// ModifierKind labels a modifier as beneficial or harmful. It is descriptive;
// the sign of Magnitude and the value of Multiplier decide the effect.
type ModifierKind string

const (
	Buff   ModifierKind = "buff"
	Debuff ModifierKind = "debuff"
)

// #endregion modifier-kind

// #region modifier

// Source describes where a modifier came from.
type Source struct {
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

// Modifier is a time-bounded effect layered on top of a stat's base score.
// Magnitude is added before clamping; Multiplier is applied after.
type Modifier struct {
	ID          string       `json:"id"`
	Source      Source       `json:"source"`
	Target      Kind         `json:"target"`
	Kind        ModifierKind `json:"kind"`
	Magnitude   float64      `json:"magnitude"`
	Multiplier  float64      `json:"multiplier"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Description string       `json:"description,omitempty"`
}

// NewModifier creates a modifier with a fresh ID. A nil expiresAt makes the
// modifier permanent until it is pruned.
func NewModifier(source Source, target Kind, kind ModifierKind, magnitude, multiplier float64, expiresAt *time.Time, description string) Modifier {
	return Modifier{
		ID:          uuid.New().String(),
		Source:      source,
		Target:      target,
		Kind:        kind,
		Magnitude:   magnitude,
		Multiplier:  multiplier,
		ExpiresAt:   expiresAt,
		Description: description,
	}
}

// IsActive reports whether the modifier applies at the given instant.
// Expiry is exclusive: at == ExpiresAt is already inactive.
func (m Modifier) IsActive(at time.Time) bool {
	if m.ExpiresAt == nil {
		return true
	}
	return at.Before(*m.ExpiresAt)
}

// Remaining returns the time left before expiry. ok is false for permanent
// modifiers.
func (m Modifier) Remaining(now time.Time) (d time.Duration, ok bool) {
	if m.ExpiresAt == nil {
		return 0, false
	}
	d = m.ExpiresAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Equal compares two modifiers, expiry instants by time.Equal.
func (m Modifier) Equal(o Modifier) bool {
	a, b := m, o
	a.ExpiresAt, b.ExpiresAt = nil, nil
	if a != b {
		return false
	}
	if m.ExpiresAt == nil || o.ExpiresAt == nil {
		return m.ExpiresAt == o.ExpiresAt
	}
	return m.ExpiresAt.Equal(*o.ExpiresAt)
}

// #endregion modifier
