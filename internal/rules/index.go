package rules

import "fmt"

// Store is the read-only query surface the settlement engine consumes.
type Store interface {
	FarePolicy(feed string) (Policy, error)
	RouteOverridePrice(feed, routeID string) (int, bool)
	FlatPrice(feed string) (int, error)
	ZoneOf(feed, stopID string) (string, error)
	ZonePrice(feed, routeID, zoneA, zoneB string) int
	TransferRules(feed string) []TransferRule
}

type stopKey struct{ feed, stop string }

type routeKey struct{ feed, route string }

type zonePairKey struct{ feed, route, from, to string }

// Index stores fare rule tables in memory for point lookups. It is filled
// through the Set/Add methods and must be frozen before it is shared.
type Index struct {
	policies    map[string]Policy         // feed -> fare policy
	flat        map[string]int            // feed -> flat price
	routePrices map[routeKey]int          // (feed, route) -> override price
	zones       map[stopKey]string        // (feed, stop) -> zone id
	zonePrices  map[zonePairKey]int       // (feed, route, from, to) -> price
	transfers   map[string][]TransferRule // from feed -> rules in load order
	frozen      bool
}

var _ Store = (*Index)(nil)

func NewIndex() *Index {
	return &Index{
		policies:    map[string]Policy{},
		flat:        map[string]int{},
		routePrices: map[routeKey]int{},
		zones:       map[stopKey]string{},
		zonePrices:  map[zonePairKey]int{},
		transfers:   map[string][]TransferRule{},
	}
}

// Freeze marks the index read-only. Concurrent readers are safe afterwards.
func (x *Index) Freeze() { x.frozen = true }

func (x *Index) mustBeMutable() {
	if x.frozen {
		panic("rules: index is frozen")
	}
}

func (x *Index) SetPolicy(p Policy) {
	x.mustBeMutable()
	x.policies[p.Feed] = p
}

func (x *Index) SetFlatPrice(feed string, cents int) {
	x.mustBeMutable()
	x.flat[feed] = cents
}

func (x *Index) SetRoutePrice(feed, routeID string, cents int) {
	x.mustBeMutable()
	x.routePrices[routeKey{feed, routeID}] = cents
}

func (x *Index) SetZone(feed, stopID, zoneID string) {
	x.mustBeMutable()
	x.zones[stopKey{feed, stopID}] = zoneID
}

func (x *Index) SetZonePrice(feed, routeID, fromZone, toZone string, cents int) {
	x.mustBeMutable()
	x.zonePrices[zonePairKey{feed, routeID, fromZone, toZone}] = cents
}

func (x *Index) AddTransferRule(r TransferRule) {
	x.mustBeMutable()
	x.transfers[r.FromFeed] = append(x.transfers[r.FromFeed], r)
}

// Feeds returns the number of feeds with a fare policy.
func (x *Index) Feeds() int { return len(x.policies) }

func (x *Index) FarePolicy(feed string) (Policy, error) {
	p, ok := x.policies[feed]
	if !ok {
		return Policy{}, fmt.Errorf("%w: no fare policy for feed %q", ErrRuleNotFound, feed)
	}
	return p, nil
}

func (x *Index) RouteOverridePrice(feed, routeID string) (int, bool) {
	c, ok := x.routePrices[routeKey{feed, routeID}]
	return c, ok
}

func (x *Index) FlatPrice(feed string) (int, error) {
	c, ok := x.flat[feed]
	if !ok {
		return 0, fmt.Errorf("%w: no flat fare for feed %q", ErrRuleNotFound, feed)
	}
	return c, nil
}

func (x *Index) ZoneOf(feed, stopID string) (string, error) {
	z, ok := x.zones[stopKey{feed, stopID}]
	if !ok {
		return "", fmt.Errorf("%w: feed %q has no zone for stop %q", ErrRuleNotFound, feed, stopID)
	}
	return z, nil
}

// ZonePrice tries the route then __ANY__ for the zone pair as given, then the
// same for the reversed pair. Unmatched pairs cost UnknownZoneFare.
func (x *Index) ZonePrice(feed, routeID, zoneA, zoneB string) int {
	for _, pair := range [2][2]string{{zoneA, zoneB}, {zoneB, zoneA}} {
		for _, route := range [2]string{routeID, AnyRoute} {
			if c, ok := x.zonePrices[zonePairKey{feed, route, pair[0], pair[1]}]; ok {
				return c
			}
		}
	}
	return UnknownZoneFare
}

// TransferRules returns the rules whose from feed is feed. The slice is shared;
// callers must not modify it.
func (x *Index) TransferRules(feed string) []TransferRule {
	return x.transfers[feed]
}
