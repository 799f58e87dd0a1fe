package fare

import (
	"strings"
	"time"
)

// WalkMode is the router's transport mode for walking segments.
const WalkMode = "WALK"

// Pair identifies an origin-destination pair.
type Pair struct {
	FromID string
	ToID   string
}

func (p Pair) String() string { return p.FromID + "-" + p.ToID }

// Row is one leg of one option of one OD pair as emitted by the router.
type Row struct {
	FromID        string
	ToID          string
	Option        int
	Segment       int
	Mode          string
	Departure     time.Time
	Feed          string
	AgencyID      string
	RouteID       string
	StartStopID   string
	EndStopID     string
	TravelMinutes float64 // optional, 0 if missing
	WaitMinutes   float64 // optional, 0 if missing
}

func (r Row) Pair() Pair { return Pair{FromID: r.FromID, ToID: r.ToID} }

func (r Row) IsWalk() bool { return IsWalk(r.Mode) }

func IsWalk(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), WalkMode)
}
