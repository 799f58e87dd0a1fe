package publisher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fare-matrix/internal/batch"
	"fare-matrix/internal/fare"
)

func TestSubject(t *testing.T) {
	cases := []struct {
		prefix, region, want string
	}{
		{"fares", "WAS", "fares.WAS"},
		{"fares", "New York", "fares.New_York"},
		{"fares", "a.b>*", "fares.a_b__"},
		{"fares", "", "fares"},
		{"", "LA", "_.LA"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, Subject(tc.prefix, tc.region))
		})
	}
}

func TestFareMessage_JSON(t *testing.T) {
	rep := &batch.Report{RunID: "r1", Region: "WAS"}
	msg := NewFareMessage(rep, batch.Result{Pair: fare.Pair{FromID: "A", ToID: "B"}, Option: 3, FareCents: 150})
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"runId":"r1","region":"WAS","fromId":"A","toId":"B","option":3,"fareCostCents":150}`, string(b))
}
