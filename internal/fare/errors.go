package fare

import "errors"

// ErrDataIntegrity indicates a malformed leg sequence, e.g. an empty
// itinerary or a walking leg where a transit leg is required.
var ErrDataIntegrity = errors.New("fare: data integrity")
