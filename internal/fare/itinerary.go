package fare

import (
	"fmt"
	"sort"

	"fare-matrix/internal/rules"
)

// Itinerary is the selected option of one OD pair. It owns its legs, kept in
// ride order, and the fare instances of its latest settlement.
type Itinerary struct {
	Pair   Pair
	Option int

	rows  []Row
	legs  []Leg
	fares []*Instance
}

// NewItinerary orders rows by segment. All rows must belong to the same pair
// and option.
func NewItinerary(rows []Row) (*Itinerary, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: itinerary has no rows", ErrDataIntegrity)
	}
	it := &Itinerary{Pair: rows[0].Pair(), Option: rows[0].Option}
	for _, r := range rows[1:] {
		if r.Pair() != it.Pair || r.Option != it.Option {
			return nil, fmt.Errorf("%w: row for %s option %d mixed into %s option %d", ErrDataIntegrity, r.Pair(), r.Option, it.Pair, it.Option)
		}
	}
	it.rows = append([]Row(nil), rows...)
	sort.SliceStable(it.rows, func(i, j int) bool { return it.rows[i].Segment < it.rows[j].Segment })
	return it, nil
}

// Clean drops a leading and a trailing walking segment.
func (it *Itinerary) Clean() {
	if len(it.rows) > 0 && it.rows[0].IsWalk() {
		it.rows = it.rows[1:]
	}
	if n := len(it.rows); n > 0 && it.rows[n-1].IsWalk() {
		it.rows = it.rows[:n-1]
	}
}

// BuildLegs turns the remaining rows into transit legs. Interior walks are
// skipped: walking between two rides does not break fare continuity.
func (it *Itinerary) BuildLegs(store rules.Store) error {
	legs := make([]Leg, 0, len(it.rows))
	for _, r := range it.rows {
		if r.IsWalk() {
			continue
		}
		leg, err := NewLeg(r, store)
		if err != nil {
			return err
		}
		legs = append(legs, leg)
	}
	it.legs = legs
	return nil
}

func (it *Itinerary) Legs() []Leg { return it.legs }

// Settle prices the itinerary. Previous settlement state is discarded, so
// repeated calls against the same store give the same result.
func (it *Itinerary) Settle(store rules.Store) (*Settlement, error) {
	it.fares = nil
	s, err := Settle(it.legs, store)
	if err != nil {
		return nil, fmt.Errorf("settle %s: %w", it.Pair, err)
	}
	it.fares = s.Instances
	return s, nil
}

// Fares returns the instances of the latest settlement.
func (it *Itinerary) Fares() []*Instance { return it.fares }

// Describe renders legs and fare instances for diagnostics.
func (it *Itinerary) Describe() []string {
	out := make([]string, 0, len(it.legs)+len(it.fares))
	for _, l := range it.legs {
		out = append(out, l.Feed+" "+l.String())
	}
	for _, f := range it.fares {
		out = append(out, f.String())
	}
	return out
}
