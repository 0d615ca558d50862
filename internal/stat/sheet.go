package stat

import (
	"encoding/json"
	"fmt"
	"time"
)

// #region sheet

// Sheet holds at most one Stat per Kind. A kind that is not present models a
// disabled extended axis; there are no nil stats.
//
// Sheet is a value type: assigning it copies every slot, so a snapshot that
// embeds a Sheet cannot be changed through another copy.
type Sheet struct {
	slots   [kindCount]Stat
	present [kindCount]bool
}

// NewSheet builds a sheet from the given stats. Later entries for the same
// kind replace earlier ones.
func NewSheet(stats ...Stat) Sheet {
	var sh Sheet
	for _, s := range stats {
		sh.Set(s)
	}
	return sh
}

// Get returns the stat for kind and whether it is present.
func (sh Sheet) Get(kind Kind) (Stat, bool) {
	if !kind.Valid() || !sh.present[kind] {
		return Stat{}, false
	}
	return sh.slots[kind], true
}

// Has reports whether kind is present.
func (sh Sheet) Has(kind Kind) bool {
	return kind.Valid() && sh.present[kind]
}

// Set stores s under s.Kind. It panics on an undeclared kind.
func (sh *Sheet) Set(s Stat) {
	if !s.Kind.Valid() {
		panic(fmt.Sprintf("stat: cannot store undeclared kind %d", int(s.Kind)))
	}
	sh.slots[s.Kind] = s
	sh.present[s.Kind] = true
}

// Delete removes kind from the sheet.
func (sh *Sheet) Delete(kind Kind) {
	if !kind.Valid() {
		return
	}
	sh.slots[kind] = Stat{}
	sh.present[kind] = false
}

// Kinds lists the present kinds in declaration order.
func (sh Sheet) Kinds() []Kind {
	var out []Kind
	for k := Wealth; k < kindCount; k++ {
		if sh.present[k] {
			out = append(out, k)
		}
	}
	return out
}

// Len is the number of present stats.
func (sh Sheet) Len() int {
	n := 0
	for _, p := range sh.present {
		if p {
			n++
		}
	}
	return n
}

// Score returns the effective score of kind at the given instant, or 0 when
// the kind is absent.
func (sh Sheet) Score(kind Kind, at time.Time) float64 {
	s, ok := sh.Get(kind)
	if !ok {
		return 0
	}
	return s.EffectiveScore(at)
}

// Equal reports whether both sheets hold the same stats. go-cmp picks this
// up when diffing snapshots.
func (sh Sheet) Equal(other Sheet) bool {
	if sh.present != other.present {
		return false
	}
	for k := Wealth; k < kindCount; k++ {
		if sh.present[k] && !sh.slots[k].Equal(other.slots[k]) {
			return false
		}
	}
	return true
}

// #endregion sheet

// #region sheet-json

// MarshalJSON encodes the sheet as an object keyed by kind name.
func (sh Sheet) MarshalJSON() ([]byte, error) {
	m := make(map[Kind]Stat, sh.Len())
	for _, k := range sh.Kinds() {
		m[k] = sh.slots[k]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by kind name. Every stat is validated
// and must agree with its key.
func (sh *Sheet) UnmarshalJSON(data []byte) error {
	var m map[Kind]Stat
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out Sheet
	for k, s := range m {
		if s.Kind != k {
			return fmt.Errorf("stat: sheet key %s holds a %s stat", k, s.Kind)
		}
		out.Set(s)
	}
	*sh = out
	return nil
}

// #endregion sheet-json
