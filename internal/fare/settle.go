package fare

import (
	"fmt"
	"time"

	"fare-matrix/internal/rules"
)

// Settlement is the outcome of settling one itinerary.
type Settlement struct {
	Total     int         // cents, sum of Net over every instance
	Instances []*Instance // every instance created, in creation order
	Fallbacks int         // transfer rules that found no instance to apply to
	Expired   int         // instances deactivated by the clock
}

// ledger holds the fare instances of one settlement. It is scanned linearly;
// an itinerary only ever has a handful of instances.
type ledger struct {
	fares   []*Instance
	expired int
}

// open records f and retires any other active instance of the same feed.
func (l *ledger) open(f *Instance) {
	for _, g := range l.fares {
		if g.Active && g.Feed == f.Feed {
			g.Active = false
		}
	}
	l.fares = append(l.fares, f)
}

// active returns the active instance of feed, if any.
func (l *ledger) active(feed string) *Instance {
	for _, f := range l.fares {
		if f.Active && f.Feed == feed {
			return f
		}
	}
	return nil
}

func (l *ledger) advance(t time.Time) {
	for _, f := range l.fares {
		if f.expire(t) {
			l.expired++
		}
	}
}

// Settle computes the fare of an ordered sequence of transit legs.
func Settle(legs []Leg, store rules.Store) (*Settlement, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: itinerary has no transit legs", ErrDataIntegrity)
	}
	for i, leg := range legs {
		if IsWalk(leg.Mode) {
			return nil, fmt.Errorf("%w: leg %d is a walking leg", ErrDataIntegrity, i)
		}
	}

	var (
		l         ledger
		fallbacks int
	)
	board := func(leg Leg) (*Instance, error) {
		f, err := newInstance(leg, store)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", leg, err)
		}
		l.open(f)
		return f, nil
	}

	if _, err := board(legs[0]); err != nil {
		return nil, err
	}
	for i := 1; i < len(legs); i++ {
		from, to := legs[i-1], legs[i]
		l.advance(to.Departure)

		rule, ok := matchTransfer(from, to)
		if !ok {
			// Staying on the same feed without a rule is a free continuation.
			if from.Feed != to.Feed {
				if _, err := board(to); err != nil {
					return nil, err
				}
			}
			continue
		}

		if rule.NewFare {
			f, err := board(to)
			if err != nil {
				return nil, err
			}
			if rule.Type == rules.TransferDiscount {
				f.Discount = rule.Value
			} else {
				f.Cost = rule.Value
			}
			continue
		}

		f := l.active(from.Feed)
		if f == nil {
			fallbacks++
			if _, err := board(to); err != nil {
				return nil, err
			}
			continue
		}
		if rule.Type == rules.TransferDiscount {
			f.Discount += rule.Value
		} else {
			f.Cost += rule.Value
		}
		f.TransfersRemaining--
	}

	s := &Settlement{Instances: l.fares, Fallbacks: fallbacks, Expired: l.expired}
	for _, f := range l.fares {
		s.Total += f.Net()
	}
	return s, nil
}

// matchTransfer finds the rule governing the move from one leg to the next.
// Candidates are narrowed by from route, then to route, each preferring an
// exact id over __ANY__ over __ELSE__, then by stop, preferring an exact stop
// over a rule without one. Ties go to the earliest rule in store order.
func matchTransfer(from, to Leg) (rules.TransferRule, bool) {
	var cands []rules.TransferRule
	for _, r := range from.TransferRules() {
		if r.FromFeed == from.Feed && r.ToFeed == to.Feed {
			cands = append(cands, r)
		}
	}
	cands = narrowRoute(cands, from.RouteID, func(r rules.TransferRule) string { return r.FromRouteID })
	cands = narrowRoute(cands, to.RouteID, func(r rules.TransferRule) string { return r.ToRouteID })
	cands = narrowStop(cands, from.EndStopID, func(r rules.TransferRule) string { return r.FromStopID })
	cands = narrowStop(cands, to.StartStopID, func(r rules.TransferRule) string { return r.ToStopID })
	if len(cands) == 0 {
		return rules.TransferRule{}, false
	}
	return cands[0], true
}

func narrowRoute(cands []rules.TransferRule, routeID string, field func(rules.TransferRule) string) []rules.TransferRule {
	for _, want := range [...]string{routeID, rules.AnyRoute, rules.ElseRoute} {
		if out := filterRules(cands, func(r rules.TransferRule) bool { return field(r) == want }); len(out) > 0 {
			return out
		}
	}
	return nil
}

func narrowStop(cands []rules.TransferRule, stopID string, field func(rules.TransferRule) string) []rules.TransferRule {
	if stopID != "" {
		if out := filterRules(cands, func(r rules.TransferRule) bool { return field(r) == stopID }); len(out) > 0 {
			return out
		}
	}
	return filterRules(cands, func(r rules.TransferRule) bool { return field(r) == "" })
}

func filterRules(cands []rules.TransferRule, keep func(rules.TransferRule) bool) []rules.TransferRule {
	var out []rules.TransferRule
	for _, r := range cands {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
