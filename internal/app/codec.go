package app

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"healthsync/internal/domain"
)

// snapshotVersion is the current persisted snapshot format. Version 0
// (no envelope) was a bare array of loosely typed records.
const snapshotVersion = 1

// snapshot is the persisted envelope for one tracker's entries.
type snapshot struct {
	Version int            `json:"version"`
	Kind    domain.Kind    `json:"kind"`
	Entries []domain.Entry `json:"entries"`
}

// legacyRecord is the shape of pre-envelope persisted data: a flat
// dictionary per entry with no id or source. Migration is best-effort;
// records missing required fields are skipped rather than failing the
// load.
type legacyRecord struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
	Subtype   string   `json:"subtype"`
}

func encodeSnapshot(kind domain.Kind, entries []domain.Entry) ([]byte, error) {
	blob, err := json.Marshal(snapshot{Version: snapshotVersion, Kind: kind, Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	return blob, nil
}

// decodeSnapshot parses a persisted blob. Legacy flat-array data is
// imported in place: surviving records come back as manual entries with
// fresh IDs, and migrated reports true so the caller can persist the
// upgraded envelope.
func decodeSnapshot(kind domain.Kind, blob []byte) (entries []domain.Entry, migrated bool, err error) {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err == nil && snap.Version >= snapshotVersion {
		return snap.Entries, false, nil
	}

	var legacy []legacyRecord
	if err := json.Unmarshal(blob, &legacy); err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	out := make([]domain.Entry, 0, len(legacy))
	for _, rec := range legacy {
		if rec.Timestamp == "" || rec.Value == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			continue
		}
		out = append(out, domain.Entry{
			ID:        NewEntryID(),
			Kind:      kind,
			Subtype:   rec.Subtype,
			Value:     *rec.Value,
			Timestamp: ts,
			Source:    domain.SourceManual,
		})
	}
	return out, true, nil
}
