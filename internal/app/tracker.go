// Package app contains the application services: entry storage,
// duplicate detection, reconciliation, statistics and the per-tracker
// sync coordinator.
package app

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"healthsync/internal/domain"
)

// GoalMode selects how a day's entries aggregate toward the daily goal.
type GoalMode int

const (
	// GoalSum sums the day's values and compares against the threshold
	// (hydration: total milliliters, sleep: total hours).
	GoalSum GoalMode = iota
	// GoalPresence treats any recorded value as meeting the goal
	// (weight: a reading counts, regardless of its value).
	GoalPresence
)

// TrackerProfile is the thin per-tracker adapter the generic engine is
// parameterized by: canonical unit, goal semantics, and the mapping
// between entries and the external store's sample representation.
type TrackerProfile struct {
	Kind     domain.Kind
	Unit     string
	GoalMode GoalMode
	Goal     float64
}

// WeightProfile tracks weight readings in kilograms. A day meets the
// goal when any reading exists.
func WeightProfile() TrackerProfile {
	return TrackerProfile{Kind: domain.KindWeight, Unit: "kg", GoalMode: GoalPresence}
}

// HydrationProfile tracks drink amounts in milliliters against a daily
// total goal.
func HydrationProfile(goalML float64) TrackerProfile {
	return TrackerProfile{Kind: domain.KindHydration, Unit: "ml", GoalMode: GoalSum, Goal: goalML}
}

// SleepProfile tracks sleep sessions as hours asleep against a daily
// total goal.
func SleepProfile(goalHours float64) TrackerProfile {
	return TrackerProfile{Kind: domain.KindSleep, Unit: "h", GoalMode: GoalSum, Goal: goalHours}
}

// EntryFromSample converts a remote sample into a local entry tagged
// with external provenance. Sleep samples carry an interval; the entry
// is attributed to the wake time so sessions crossing midnight count
// toward the wake day.
func (p TrackerProfile) EntryFromSample(s domain.RemoteSample) domain.Entry {
	e := domain.Entry{
		ID:         NewEntryID(),
		Kind:       p.Kind,
		Subtype:    s.Subtype,
		Value:      s.Value,
		ExternalID: s.ID,
		Timestamp:  s.Timestamp,
		Source:     domain.SourceExternal,
	}
	if p.Kind == domain.KindSleep && s.End != nil {
		span := domain.SleepSpan{Bed: s.Timestamp, Wake: *s.End}
		e.Sleep = &span
		e.Value = span.Hours()
		e.Timestamp = span.Wake
	}
	return e
}

// SampleFromEntry converts a local entry into the external store's
// sample representation, used when mirroring manual entries out.
func (p TrackerProfile) SampleFromEntry(e domain.Entry) domain.RemoteSample {
	s := domain.RemoteSample{
		ID:        e.ID,
		Subtype:   e.Subtype,
		Value:     e.Value,
		Timestamp: e.Timestamp,
	}
	if e.ExternalID != "" {
		s.ID = e.ExternalID
	}
	if e.Sleep != nil {
		s.Timestamp = e.Sleep.Bed
		wake := e.Sleep.Wake
		s.End = &wake
	}
	return s
}

// GoalMet reports whether a day's aggregate value meets the profile's
// daily goal.
func (p TrackerProfile) GoalMet(dayTotal float64) bool {
	if p.GoalMode == GoalPresence {
		return dayTotal > 0
	}
	return dayTotal >= p.Goal
}

// NewEntryID returns a fresh opaque entry identifier.
func NewEntryID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
