package rules_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fare-matrix/internal/rules"
)

func zoneIndex() *rules.Index {
	x := rules.NewIndex()
	x.SetPolicy(rules.Policy{Feed: "rail", Kind: rules.KindZone, TransfersAllowed: 0, DurationSeconds: 0})
	x.SetZone("rail", "S1", "A")
	x.SetZone("rail", "S2", "B")
	x.SetZone("rail", "S3", "C")
	x.SetZonePrice("rail", "R1", "A", "B", 350)
	x.SetZonePrice("rail", rules.AnyRoute, "A", "B", 300)
	x.SetZonePrice("rail", rules.AnyRoute, "C", "A", 425)
	x.Freeze()
	return x
}

func TestZonePrice_Order(t *testing.T) {
	x := zoneIndex()
	cases := []struct {
		name          string
		route, za, zb string
		want          int
	}{
		{"ExactRoute", "R1", "A", "B", 350},
		{"AnyRoute", "R9", "A", "B", 300},
		{"ReversedPair", "R9", "A", "C", 425},
		{"ExactRouteReversed", "R1", "B", "A", 350},
		{"Unknown", "R1", "B", "C", rules.UnknownZoneFare},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, x.ZonePrice("rail", tc.route, tc.za, tc.zb))
		})
	}
}

func TestZoneOf_Missing(t *testing.T) {
	x := zoneIndex()
	z, err := x.ZoneOf("rail", "S2")
	require.NoError(t, err)
	assert.Equal(t, "B", z)

	_, err = x.ZoneOf("rail", "nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrRuleNotFound))
}

func TestFlatLookups(t *testing.T) {
	x := rules.NewIndex()
	x.SetPolicy(rules.Policy{Feed: "bus", Kind: rules.KindFlat, TransfersAllowed: -1, DurationSeconds: 7200})
	x.SetFlatPrice("bus", 200)
	x.SetRoutePrice("bus", "EXP", 425)
	x.Freeze()

	p, err := x.FarePolicy("bus")
	require.NoError(t, err)
	assert.Equal(t, rules.Unlimited, p.MaxTransfers())
	assert.Equal(t, 7200, p.MaxSeconds())

	c, err := x.FlatPrice("bus")
	require.NoError(t, err)
	assert.Equal(t, 200, c)

	c, ok := x.RouteOverridePrice("bus", "EXP")
	assert.True(t, ok)
	assert.Equal(t, 425, c)
	_, ok = x.RouteOverridePrice("bus", "LOCAL")
	assert.False(t, ok)

	_, err = x.FarePolicy("ferry")
	assert.ErrorIs(t, err, rules.ErrRuleNotFound)
	_, err = x.FlatPrice("ferry")
	assert.ErrorIs(t, err, rules.ErrRuleNotFound)
}

func TestPolicyUnlimitedDuration(t *testing.T) {
	p := rules.Policy{TransfersAllowed: 2, DurationSeconds: 0}
	assert.Equal(t, 2, p.MaxTransfers())
	assert.Equal(t, rules.Unlimited, p.MaxSeconds())
}

func TestTransferRules_LoadOrder(t *testing.T) {
	x := rules.NewIndex()
	x.AddTransferRule(rules.TransferRule{FromFeed: "bus", ToFeed: "rail", FromRouteID: rules.AnyRoute, ToRouteID: rules.AnyRoute, Value: 1})
	x.AddTransferRule(rules.TransferRule{FromFeed: "rail", ToFeed: "bus", FromRouteID: rules.AnyRoute, ToRouteID: rules.AnyRoute, Value: 2})
	x.AddTransferRule(rules.TransferRule{FromFeed: "bus", ToFeed: "bus", FromRouteID: "10", ToRouteID: rules.ElseRoute, Value: 3})
	x.Freeze()

	got := x.TransferRules("bus")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Value)
	assert.Equal(t, 3, got[1].Value)
	for _, r := range got {
		assert.Equal(t, "bus", r.FromFeed)
	}
	assert.Empty(t, x.TransferRules("ferry"))
}

func TestFrozenIndexPanicsOnWrite(t *testing.T) {
	x := rules.NewIndex()
	x.Freeze()
	assert.Panics(t, func() { x.SetFlatPrice("bus", 1) })
}

func TestParseTransferType(t *testing.T) {
	for in, want := range map[string]rules.TransferType{
		"transfer-discount":  rules.TransferDiscount,
		"discount":           rules.TransferDiscount,
		"transfer-surcharge": rules.TransferSurcharge,
		"surcharge":          rules.TransferSurcharge,
	} {
		got, ok := rules.ParseTransferType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := rules.ParseTransferType("free")
	assert.False(t, ok)
}
