package fare

import (
	"fmt"
	"time"

	"fare-matrix/internal/rules"
)

// Leg is one continuous transit ride on a single route of a single feed.
type Leg struct {
	Mode        string
	Departure   time.Time
	Feed        string
	AgencyID    string
	RouteID     string
	StartStopID string
	EndStopID   string

	transfers []rules.TransferRule
}

// NewLeg builds a Leg from a router row and caches the transfer rules of its
// feed. Walking rows must be filtered out by the caller.
func NewLeg(r Row, store rules.Store) (Leg, error) {
	if r.IsWalk() {
		return Leg{}, fmt.Errorf("%w: segment %d of %s is a walking leg", ErrDataIntegrity, r.Segment, r.Pair())
	}
	if r.Feed == "" {
		return Leg{}, fmt.Errorf("%w: segment %d of %s has no feed", ErrDataIntegrity, r.Segment, r.Pair())
	}
	return Leg{
		Mode:        r.Mode,
		Departure:   r.Departure,
		Feed:        r.Feed,
		AgencyID:    r.AgencyID,
		RouteID:     r.RouteID,
		StartStopID: r.StartStopID,
		EndStopID:   r.EndStopID,
		transfers:   store.TransferRules(r.Feed),
	}, nil
}

// TransferRules returns the cached rules whose from feed is the leg's feed.
func (l Leg) TransferRules() []rules.TransferRule { return l.transfers }

func (l Leg) String() string {
	return fmt.Sprintf("<TransitLeg %s %s | %s:%s->%s>", l.Mode, l.Departure.Format(time.DateTime), l.RouteID, l.StartStopID, l.EndStopID)
}
