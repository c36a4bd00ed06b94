package app

import (
	"math"
	"time"

	"healthsync/internal/domain"
)

// IsDuplicate reports whether the candidate describes the same
// real-world event as any existing entry: timestamps within the
// tolerance window, values within the value tolerance, and (for
// multi-typed trackers) the same subtype.
//
// Pure function, no side effects. False positives (merging two distinct
// events) are the accepted tradeoff against duplicate clutter; the
// tolerances are configuration, not contract.
func IsDuplicate(candidate domain.Entry, existing []domain.Entry, tol domain.Tolerance) bool {
	for i := range existing {
		if SameEvent(candidate, existing[i], tol) {
			return true
		}
	}
	return false
}

// SameEvent is the pairwise comparison behind IsDuplicate.
func SameEvent(a, b domain.Entry, tol domain.Tolerance) bool {
	if a.Subtype != b.Subtype {
		return false
	}
	return absDuration(a.Timestamp.Sub(b.Timestamp)) < tol.Window &&
		math.Abs(a.Value-b.Value) < tol.Value
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
