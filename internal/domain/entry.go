// Package domain contains the core business entities and interfaces.
package domain

import (
	"time"
)

// Source records the provenance of an entry. It never changes after creation.
type Source string

const (
	// SourceManual marks an entry typed in by the user.
	SourceManual Source = "manual"
	// SourceExternal marks an entry imported from the external health store.
	SourceExternal Source = "externalSync"
)

// Kind identifies which tracker an entry belongs to.
type Kind string

const (
	KindWeight    Kind = "weight"
	KindHydration Kind = "hydration"
	KindSleep     Kind = "sleep"
)

// Kinds lists every tracker kind.
func Kinds() []Kind {
	return []Kind{KindWeight, KindHydration, KindSleep}
}

// SleepSpan is the bed/wake pair behind a sleep entry. The entry's Value
// holds the derived hours asleep; the span is kept for display and for
// mapping back to the external store's native representation.
type SleepSpan struct {
	Bed  time.Time `json:"bed"`
	Wake time.Time `json:"wake"`
}

// Hours returns the span length in hours, zero if the span is inverted.
func (s SleepSpan) Hours() float64 {
	d := s.Wake.Sub(s.Bed)
	if d < 0 {
		return 0
	}
	return d.Hours()
}

// Entry is one recorded instance of a tracked health metric. Values are
// stored in the canonical internal unit for the kind (kilograms,
// milliliters, hours); presentation-layer conversion is applied at read
// time only and never persisted.
type Entry struct {
	ID      string  `json:"id"`
	Kind    Kind    `json:"kind"`
	Subtype string  `json:"subtype,omitempty"`
	Value   float64 `json:"value"`
	// ExternalID is the record's identifier in the external store, set
	// on imported entries. Outward deletion addresses the remote record
	// by this ID, not the local one.
	ExternalID string     `json:"externalId,omitempty"`
	Sleep      *SleepSpan `json:"sleep,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Source     Source     `json:"source"`
}

// RemoteSample is one record as the external health store reports it,
// already converted to the canonical unit by the adapter. End is set for
// interval-shaped samples (sleep sessions).
type RemoteSample struct {
	ID        string     `json:"id"`
	Subtype   string     `json:"subtype,omitempty"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
	End       *time.Time `json:"end,omitempty"`
}

// Tolerance is the policy window used to decide whether two records
// describe the same real-world event. The constants are tunable
// configuration, not a contract: a tight window serves observer-triggered
// sync, a loose one absorbs unit-conversion rounding during bulk import.
type Tolerance struct {
	Window time.Duration
	Value  float64
}
