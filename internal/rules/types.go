package rules

import "math"

// Wildcards used in transfer rule route columns.
const (
	AnyRoute  = "__ANY__"
	ElseRoute = "__ELSE__"
)

// UnknownZoneFare is charged when no zone price matches a zone pair in either direction.
const UnknownZoneFare = 500

// Unlimited stands in for "no limit" on transfers and fare duration.
const Unlimited = math.MaxInt32

type Kind string

const (
	KindFlat Kind = "flat"
	KindZone Kind = "zone"
)

type TransferType string

const (
	TransferDiscount  TransferType = "transfer-discount"
	TransferSurcharge TransferType = "transfer-surcharge"
)

// Policy is a feed's fare_type row.
type Policy struct {
	Feed             string
	Kind             Kind
	TransfersAllowed int // -1 = unlimited
	DurationSeconds  int // <= 0 = unlimited
}

// MaxTransfers returns the transfer allowance with the unlimited sentinel applied.
func (p Policy) MaxTransfers() int {
	if p.TransfersAllowed < 0 {
		return Unlimited
	}
	return p.TransfersAllowed
}

// MaxSeconds returns the validity window with the unlimited sentinel applied.
func (p Policy) MaxSeconds() int {
	if p.DurationSeconds <= 0 {
		return Unlimited
	}
	return p.DurationSeconds
}

type TransferRule struct {
	FromFeed    string
	ToFeed      string
	FromRouteID string // route id, AnyRoute or ElseRoute
	ToRouteID   string // route id, AnyRoute or ElseRoute
	FromStopID  string // empty matches any stop
	ToStopID    string // empty matches any stop
	Type        TransferType
	NewFare     bool
	Value       int // cents
}

// ParseTransferType accepts the long form used in the rule tables and the short
// "discount"/"surcharge" spellings.
func ParseTransferType(s string) (TransferType, bool) {
	switch s {
	case string(TransferDiscount), "discount":
		return TransferDiscount, true
	case string(TransferSurcharge), "surcharge":
		return TransferSurcharge, true
	}
	return "", false
}
