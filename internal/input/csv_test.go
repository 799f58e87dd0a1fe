package input

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fare-matrix/internal/fare"
)

const sample = `from_id,to_id,option,segment,mode,departure_time,feed,agency_id,route_id,start_stop_id,end_stop_id,travel_time,wait_time
A,B,1,0,WALK,,,,,,,4.5,
A,B,1,1,BUS,2020-02-26 08:05:00,wmata,WMATA,10A,s1,s2,12,3
A,B,1.0,2.0,SUBWAY,2020-02-26T08:30:00-05:00,wmata,WMATA,RED,m1,m2,20,NaN
`

func TestRead(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)

	rows, rejected, err := Read(strings.NewReader(sample), loc)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].IsWalk())
	assert.True(t, rows[0].Departure.IsZero())
	assert.Equal(t, 4.5, rows[0].TravelMinutes)

	bus := rows[1]
	assert.Equal(t, fare.Pair{FromID: "A", ToID: "B"}, bus.Pair())
	assert.Equal(t, "BUS", bus.Mode)
	assert.Equal(t, "10A", bus.RouteID)
	assert.True(t, bus.Departure.Equal(time.Date(2020, 2, 26, 8, 5, 0, 0, loc)))
	assert.Equal(t, 3.0, bus.WaitMinutes)

	sub := rows[2]
	assert.Equal(t, 1, sub.Option)
	assert.Equal(t, 2, sub.Segment)
	assert.True(t, sub.Departure.Equal(time.Date(2020, 2, 26, 13, 30, 0, 0, time.UTC)))
	assert.Zero(t, sub.WaitMinutes)
}

func TestRead_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"Empty", "", "empty input"},
		{"MissingColumn", "from_id,to_id\nA,B\n", `missing column "option"`},
		{"BrokenQuote", header + "A,B,1,0,\"BUS,2020-02-26 08:00:00,f,a,r,s,e\n", "quote"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(tc.in), time.UTC)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

const header = "from_id,to_id,option,segment,transport_mode,departure_time,feed,agency_id,route_id,start_stop_id,end_stop_id,travel_time\n"

func TestRead_MalformedRowRejectsItsPairOnly(t *testing.T) {
	in := header +
		"A,B,1,0,BUS,2020-02-26 08:00:00,f,a,r,s,e,10\n" +
		"C,D,1,0,BUS,2020-02-26 08:00:00,f,a,r,s,e,10\n" +
		"C,D,1,1,BUS,not-a-time,f,a,r,s,e,10\n" +
		"E,F,1,x,BUS,2020-02-26 08:00:00,f,a,r,s,e,10\n" +
		"G,H,1,0,BUS,,f,a,r,s,e,10\n" +
		"I,J,1,0,BUS,2020-02-26 08:00:00,f,a,r,s,e,soon\n" +
		"K,L,1,0,BUS\n"

	rows, rejected, err := Read(strings.NewReader(in), time.UTC)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fare.Pair{FromID: "A", ToID: "B"}, rows[0].Pair())

	cases := []struct {
		pair fare.Pair
		want string
	}{
		{fare.Pair{FromID: "C", ToID: "D"}, `line 4: departure_time`},
		{fare.Pair{FromID: "E", ToID: "F"}, `line 5: segment`},
		{fare.Pair{FromID: "G", ToID: "H"}, `line 6: departure_time`},
		{fare.Pair{FromID: "I", ToID: "J"}, `line 7: travel_time`},
		{fare.Pair{FromID: "K", ToID: "L"}, `line 8: departure_time`},
	}
	require.Len(t, rejected, len(cases))
	for _, tc := range cases {
		t.Run(tc.pair.String(), func(t *testing.T) {
			err := rejected[tc.pair]
			require.Error(t, err)
			assert.ErrorIs(t, err, fare.ErrDataIntegrity)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseInt(t *testing.T) {
	n, err := parseInt("3.0")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = parseInt("3.5")
	assert.ErrorIs(t, err, fare.ErrDataIntegrity)
}
