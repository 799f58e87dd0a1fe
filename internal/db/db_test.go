package db

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fare-matrix/internal/rules"
)

func TestWithDBName(t *testing.T) {
	cases := []struct {
		dsn, name, want string
	}{
		{"postgres://u:p@h:5432/postgres?sslmode=disable", "was_fares", "postgres://u:p@h:5432/was_fares?sslmode=disable"},
		{"postgresql://h/x", "/y", "postgresql://h/y"},
		{"u@h:5432/x", "z", "postgres://u@h:5432/z"},
	}
	for _, tc := range cases {
		t.Run(tc.dsn, func(t *testing.T) {
			got, err := WithDBName(tc.dsn, tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	_, err := WithDBName("", "x")
	assert.Error(t, err)
	_, err = WithDBName("mysql://h/x", "y")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://u:xxxxx@h:5432/fares", Redact("postgres://u:secret@h:5432/fares"))
	assert.Equal(t, "postgres://h/fares", Redact("h/fares"))
	assert.Equal(t, "<invalid dsn>", Redact(""))
}

func TestTransferQuery(t *testing.T) {
	q := transferQuery(map[string]bool{"id": true, "from_stop_id": true, "to_stop_id": true})
	assert.Contains(t, q, "from_route_id, to_route_id, from_stop_id, to_stop_id,")
	assert.True(t, strings.HasSuffix(q, "ORDER BY from_mdb_slug, id"), q)

	q = transferQuery(map[string]bool{"to_stop_id": true})
	assert.Contains(t, q, "from_route_id, to_route_id, NULL, to_stop_id,")
	assert.True(t, strings.HasSuffix(q, "ORDER BY from_mdb_slug, ctid"), q)
}

func TestLikePattern(t *testing.T) {
	cases := map[string]string{
		"WAS":      "%WAS%",
		"dc_metro": `%dc\_metro%`,
		"50%":      `%50\%%`,
		`a\b`:      `%a\\b%`,
		"":         "%%",
	}
	for region, want := range cases {
		assert.Equal(t, want, likePattern(region), region)
	}
	assert.Contains(t, latestFareImportQuery, "status = 'success'")
	assert.Contains(t, latestFareImportQuery, `ESCAPE '\'`)
}

func TestPolicyFromRow(t *testing.T) {
	p, err := policyFromRow("bus", "Flat", sql.NullInt64{}, sql.NullInt64{Int64: 7200, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, rules.KindFlat, p.Kind)
	assert.Equal(t, rules.Unlimited, p.MaxTransfers())
	assert.Equal(t, 7200, p.MaxSeconds())

	p, err = policyFromRow("rail", "zone", sql.NullInt64{Int64: 0, Valid: true}, sql.NullInt64{})
	require.NoError(t, err)
	assert.Equal(t, rules.KindZone, p.Kind)
	assert.Equal(t, 0, p.MaxTransfers())
	assert.Equal(t, rules.Unlimited, p.MaxSeconds())

	_, err = policyFromRow("ferry", "distance", sql.NullInt64{}, sql.NullInt64{})
	assert.Error(t, err)
}

func TestTransferRow(t *testing.T) {
	r := transferRow{
		fromFeed:  "bus",
		toFeed:    "rail",
		fromRoute: sql.NullString{String: " 10 ", Valid: true},
		toStop:    sql.NullString{String: "r1", Valid: true},
		kind:      "transfer-surcharge",
		newFare:   sql.NullInt64{Int64: 1, Valid: true},
		value:     sql.NullInt64{Int64: 75, Valid: true},
	}
	tr, err := r.rule()
	require.NoError(t, err)
	assert.Equal(t, rules.TransferRule{
		FromFeed: "bus", ToFeed: "rail",
		FromRouteID: "10", ToRouteID: rules.AnyRoute,
		ToStopID: "r1",
		Type:     rules.TransferSurcharge, NewFare: true, Value: 75,
	}, tr)

	r.kind = "rebate"
	_, err = r.rule()
	assert.Error(t, err)
}
