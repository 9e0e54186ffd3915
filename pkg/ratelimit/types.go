package ratelimit

// Stats is a point-in-time snapshot of limiter state.
type Stats struct {
	RequestsInWindow int64 `json:"requests_in_window"`
	RequestLimit     int64 `json:"request_limit"`
	UnitsInWindow    int64 `json:"units_in_window"`
	UnitLimit        int64 `json:"unit_limit"`

	// Remaining headroom for each ceiling. Never negative.
	RequestsRemaining int64 `json:"requests_remaining"`
	UnitsRemaining    int64 `json:"units_remaining"`
}

// LowHeadroom reports whether remaining headroom on either ceiling has
// dropped below the given fraction of its limit. Callers issuing batches
// should pace themselves when this returns true, even though Acquire
// would not yet block.
func (s Stats) LowHeadroom(fraction float64) bool {
	if float64(s.RequestsRemaining) < float64(s.RequestLimit)*fraction {
		return true
	}
	return float64(s.UnitsRemaining) < float64(s.UnitLimit)*fraction
}
