package domain

import "time"

// SyncPhase is the coordinator's position in its lifecycle for one tracker.
type SyncPhase string

const (
	PhaseDisabled             SyncPhase = "disabled"
	PhaseAuthorizationPending SyncPhase = "authorizationPending"
	PhaseObserving            SyncPhase = "observing"
	PhaseSuppressed           SyncPhase = "suppressed"
)

// SyncState is the persisted sync bookkeeping for one tracker.
// Suppressed is true while a manual write is being mirrored to the
// external store, so that the store's own change notification does not
// re-import the event the app just wrote.
type SyncState struct {
	Enabled             bool `json:"enabled"`
	LastImportCompleted bool `json:"lastImportCompleted"`
	Suppressed          bool `json:"suppressed"`
}

// SyncStatus is the non-blocking "last sync" indicator shown to the user.
type SyncStatus struct {
	LastAttempt time.Time `json:"lastAttempt"`
	LastError   string    `json:"lastError,omitempty"`
	Added       int       `json:"added"`
	Removed     int       `json:"removed"`
}

// StreakSummary is derived from the entry collection and never edited
// directly; it can always be rebuilt from raw entries.
type StreakSummary struct {
	Current     int      `json:"current"`
	Longest     int      `json:"longest"`
	GoalMetDays int      `json:"goalMetDays"`
	Trend       *float64 `json:"trend,omitempty"`
	Average     *float64 `json:"average,omitempty"`
}
