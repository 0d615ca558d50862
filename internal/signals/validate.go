package signals

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid marks a signal whose payload breaks the input contract.
var ErrInvalid = errors.New("signals: invalid signal")

// #region validate

// Validate checks a signal at the collaborator boundary: no negative counts,
// durations or amounts, no non-finite numbers, no unknown enum values.
// The scoring core never calls this; it assumes already-validated input.
func Validate(s Signal) error {
	if s == nil {
		return fmt.Errorf("%w: nil", ErrInvalid)
	}
	if s.Timestamp().IsZero() {
		return fmt.Errorf("%w: %s has no timestamp", ErrInvalid, s.Kind())
	}
	switch v := s.(type) {
	case Financial:
		switch v.Type {
		case Spend, Save, Invest:
		default:
			return fmt.Errorf("%w: unknown financial type %q", ErrInvalid, v.Type)
		}
		if !finite(v.Amount) || v.Amount < 0 {
			return fmt.Errorf("%w: financial amount %v", ErrInvalid, v.Amount)
		}
	case Activity:
		if v.Steps < 0 {
			return fmt.Errorf("%w: negative step count %d", ErrInvalid, v.Steps)
		}
		if v.Duration < 0 {
			return fmt.Errorf("%w: negative activity duration %s", ErrInvalid, v.Duration)
		}
	case Sleep:
		if v.Duration < 0 {
			return fmt.Errorf("%w: negative sleep duration %s", ErrInvalid, v.Duration)
		}
		if !finite(v.Quality) {
			return fmt.Errorf("%w: sleep quality %v", ErrInvalid, v.Quality)
		}
		if v.Interruptions < 0 {
			return fmt.Errorf("%w: negative interruptions %d", ErrInvalid, v.Interruptions)
		}
	case Focus:
		if v.Duration < 0 {
			return fmt.Errorf("%w: negative focus duration %s", ErrInvalid, v.Duration)
		}
		if v.Interruptions < 0 {
			return fmt.Errorf("%w: negative interruptions %d", ErrInvalid, v.Interruptions)
		}
	case NotificationBurst:
		if !validCategory(v.Category) {
			return fmt.Errorf("%w: unknown notification category %q", ErrInvalid, v.Category)
		}
		if v.Count < 0 {
			return fmt.Errorf("%w: negative notification count %d", ErrInvalid, v.Count)
		}
	case ScreenUsage:
		if v.Duration < 0 {
			return fmt.Errorf("%w: negative screen duration %s", ErrInvalid, v.Duration)
		}
	default:
		return fmt.Errorf("%w: unsupported variant %T", ErrInvalid, s)
	}
	return nil
}

func validCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion validate
