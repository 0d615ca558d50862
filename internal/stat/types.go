package stat

import (
	"errors"
	"fmt"
	"strings"
)

// #region errors

// ErrOutOfRange is returned when a stat is constructed or decoded with a base
// score or smoothing factor outside its closed range.
var ErrOutOfRange = errors.New("stat: value out of range")

// ErrUnknownKind is returned when parsing a stat kind name fails.
var ErrUnknownKind = errors.New("stat: unknown kind")

// #endregion errors

// #region kind

// Kind identifies one axis of the status model.
type Kind int

const (
	Wealth Kind = iota
	Vital
	Cognition
	Balance
	Social
	Resilience
	Mood

	kindCount
)

var kindNames = [kindCount]string{
	"wealth", "vital", "cognition", "balance", "social", "resilience", "mood",
}

var displayNames = [kindCount]string{
	"Wealth", "Vital", "Cognition", "Balance", "Social", "Resilience", "Mood",
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= Wealth && k < kindCount
}

// IsCore reports whether k is one of the four axes every model carries.
// Social, Resilience and Mood are extended axes and may be absent.
func (k Kind) IsCore() bool {
	return k >= Wealth && k <= Balance
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// DisplayName is the label used in timeline messages and the inspect CLI.
func (k Kind) DisplayName() string {
	if !k.Valid() {
		return k.String()
	}
	return displayNames[k]
}

// MarshalText encodes the kind by name so it can key JSON objects.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind resolves a kind by name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, kn := range kindNames {
		if kn == n {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// AllKinds returns every declared kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Wealth; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// CoreKinds returns Wealth, Vital, Cognition and Balance.
func CoreKinds() []Kind {
	return []Kind{Wealth, Vital, Cognition, Balance}
}

// ExtendedKinds returns the optional axes.
func ExtendedKinds() []Kind {
	return []Kind{Social, Resilience, Mood}
}

// #endregion kind
