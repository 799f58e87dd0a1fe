package fare

import (
	"fmt"
	"time"

	"fare-matrix/internal/rules"
)

type Variant int

const (
	FlatFare Variant = iota
	ZoneFare
)

func (v Variant) String() string {
	if v == ZoneFare {
		return "ZoneFare"
	}
	return "FlatFare"
}

// Instance is one payment made during a settlement, with the transfer and
// time allowance it still grants. Once inactive it stays inactive.
type Instance struct {
	Variant            Variant
	Feed               string
	Start              time.Time
	Active             bool
	Premium            bool
	Cost               int // cents
	Discount           int // cents
	TransfersRemaining int
	MaxSeconds         int

	// Zone fares only.
	RouteID  string
	FromZone string
	ToZone   string
}

// Net is what the rider paid for this instance. It may be negative when
// discounts exceed the cost; it is not clamped.
func (f *Instance) Net() int { return f.Cost - f.Discount }

// ValidAt reports whether t is still inside the instance's time window.
func (f *Instance) ValidAt(t time.Time) bool {
	return t.Sub(f.Start) <= time.Duration(f.MaxSeconds)*time.Second
}

// expire deactivates the instance if t is past its window and reports
// whether this call caused the transition.
func (f *Instance) expire(t time.Time) bool {
	if !f.Active || f.ValidAt(t) {
		return false
	}
	f.Active = false
	return true
}

func (f *Instance) String() string {
	state := "X"
	if f.Active {
		state = "A"
	}
	s := fmt.Sprintf("<%s %s %s | %s | %06dt | %04ds | +%04d¢ | -%04d¢", f.Variant, state, f.Feed, f.Start.Format(time.DateTime), f.TransfersRemaining, f.MaxSeconds, f.Cost, f.Discount)
	if f.Variant == ZoneFare {
		s += fmt.Sprintf(" | %s->%s", f.FromZone, f.ToZone)
	}
	return s + ">"
}

// newInstance prices a fresh payment for boarding leg.
func newInstance(leg Leg, store rules.Store) (*Instance, error) {
	p, err := store.FarePolicy(leg.Feed)
	if err != nil {
		return nil, err
	}
	f := &Instance{
		Feed:               leg.Feed,
		Start:              leg.Departure,
		Active:             true,
		TransfersRemaining: p.MaxTransfers(),
		MaxSeconds:         p.MaxSeconds(),
	}
	switch p.Kind {
	case rules.KindFlat:
		f.Variant = FlatFare
		if c, ok := store.RouteOverridePrice(leg.Feed, leg.RouteID); ok {
			f.Cost = c
			f.Premium = true
			return f, nil
		}
		c, err := store.FlatPrice(leg.Feed)
		if err != nil {
			return nil, err
		}
		f.Cost = c
	case rules.KindZone:
		from, err := store.ZoneOf(leg.Feed, leg.StartStopID)
		if err != nil {
			return nil, err
		}
		to, err := store.ZoneOf(leg.Feed, leg.EndStopID)
		if err != nil {
			return nil, err
		}
		f.Variant = ZoneFare
		f.Premium = true
		f.RouteID = leg.RouteID
		f.FromZone = from
		f.ToZone = to
		f.Cost = store.ZonePrice(leg.Feed, leg.RouteID, from, to)
	default:
		return nil, fmt.Errorf("%w: feed %q has unknown fare kind %q", rules.ErrRuleNotFound, leg.Feed, p.Kind)
	}
	return f, nil
}
