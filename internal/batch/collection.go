package batch

import (
	"errors"
	"fmt"
	"sort"

	"fare-matrix/internal/fare"
	"fare-matrix/internal/rules"
)

// DefaultMaxTravelMinutes discards options slower than three hours.
const DefaultMaxTravelMinutes = 180

// Collection groups router rows by OD pair and keeps the fastest option of each.
type Collection struct {
	pairs    []fare.Pair
	selected map[fare.Pair][]fare.Row
	rejected map[fare.Pair]error

	// Discarded counts pairs whose every option exceeded the travel limit.
	Discarded int
	// SelfPairs counts pairs whose origin is their destination.
	SelfPairs int
}

type option struct {
	number int
	rows   []fare.Row
	total  float64
}

// NewCollection selects, per pair, the option with the smallest summed travel
// and wait time. Ties go to the lower option number. maxMinutes <= 0 disables
// the travel limit.
func NewCollection(rows []fare.Row, maxMinutes float64) *Collection {
	grouped := map[fare.Pair]map[int]*option{}
	self := map[fare.Pair]struct{}{}
	for _, r := range rows {
		p := r.Pair()
		if p.FromID == p.ToID {
			self[p] = struct{}{}
			continue
		}
		opts := grouped[p]
		if opts == nil {
			opts = map[int]*option{}
			grouped[p] = opts
		}
		o := opts[r.Option]
		if o == nil {
			o = &option{number: r.Option}
			opts[r.Option] = o
		}
		o.rows = append(o.rows, r)
		o.total += r.TravelMinutes + r.WaitMinutes
	}

	c := &Collection{
		selected:  make(map[fare.Pair][]fare.Row, len(grouped)),
		rejected:  map[fare.Pair]error{},
		SelfPairs: len(self),
	}
	for p, opts := range grouped {
		var best *option
		for _, o := range opts {
			if maxMinutes > 0 && o.total > maxMinutes {
				continue
			}
			if best == nil || o.total < best.total || (o.total == best.total && o.number < best.number) {
				best = o
			}
		}
		if best == nil {
			c.Discarded++
			continue
		}
		c.selected[p] = best.rows
		c.pairs = append(c.pairs, p)
	}
	sortPairs(c.pairs)
	return c
}

// Reject records pairs whose input could not be read. They are removed from
// the selection and reported by the runner as data integrity failures.
// Pairs whose origin is their destination are ignored, as in NewCollection.
func (c *Collection) Reject(bad map[fare.Pair]error) {
	if len(bad) == 0 {
		return
	}
	for p, err := range bad {
		if p.FromID == p.ToID {
			continue
		}
		if !errors.Is(err, fare.ErrDataIntegrity) {
			err = fmt.Errorf("%w: %v", fare.ErrDataIntegrity, err)
		}
		c.rejected[p] = err
		delete(c.selected, p)
	}
	kept := c.pairs[:0]
	for _, p := range c.pairs {
		if _, ok := c.rejected[p]; !ok {
			kept = append(kept, p)
		}
	}
	c.pairs = kept
}

// Rejected returns the rejected pairs sorted by origin then destination.
func (c *Collection) Rejected() []Failure {
	out := make([]Failure, 0, len(c.rejected))
	for p, err := range c.rejected {
		out = append(out, Failure{Pair: p, Err: err})
	}
	sort.Slice(out, func(i, j int) bool { return pairLess(out[i].Pair, out[j].Pair) })
	return out
}

// Size is the number of pairs with a selected option.
func (c *Collection) Size() int { return len(c.pairs) }

// Pairs returns the selected pairs sorted by origin then destination.
func (c *Collection) Pairs() []fare.Pair { return c.pairs }

// Rows returns the rows of the pair's selected option.
func (c *Collection) Rows(p fare.Pair) []fare.Row { return c.selected[p] }

// Itinerary builds the cleaned, leg-built itinerary of a selected pair.
func (c *Collection) Itinerary(p fare.Pair, store rules.Store) (*fare.Itinerary, error) {
	it, err := fare.NewItinerary(c.selected[p])
	if err != nil {
		return nil, err
	}
	it.Clean()
	if err := it.BuildLegs(store); err != nil {
		return nil, err
	}
	return it, nil
}

func sortPairs(ps []fare.Pair) {
	sort.Slice(ps, func(i, j int) bool { return pairLess(ps[i], ps[j]) })
}
