package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"healthsync/internal/domain"
)

// EntryStore is the ordered, persisted entry collection for one tracker.
// It is always sorted descending by timestamp after any mutation, and
// every mutation persists synchronously before returning. Entries are
// never mutated in place; updates are modeled as remove+append.
type EntryStore struct {
	mu       sync.Mutex
	kind     domain.Kind
	kv       domain.KeyValue
	entries  []domain.Entry
	gen      uint64
	onChange func()
	log      zerolog.Logger
}

func entriesKey(kind domain.Kind) string { return "entries/" + string(kind) }

// NewEntryStore loads any persisted snapshot for the kind, running the
// one-time legacy import if the stored data predates the envelope
// format.
func NewEntryStore(kind domain.Kind, kv domain.KeyValue, log zerolog.Logger) (*EntryStore, error) {
	s := &EntryStore{
		kind: kind,
		kv:   kv,
		log:  log.With().Str("tracker", string(kind)).Logger(),
	}

	blob, err := kv.Load(entriesKey(kind))
	if err != nil {
		return nil, fmt.Errorf("load %s entries: %w", kind, err)
	}
	if blob == nil {
		return s, nil
	}

	entries, migrated, err := decodeSnapshot(kind, blob)
	if err != nil {
		return nil, fmt.Errorf("load %s entries: %w", kind, err)
	}
	s.entries = entries
	s.sortLocked()

	if migrated {
		s.log.Info().Int("entries", len(entries)).Msg("migrated legacy snapshot")
		if err := s.persistLocked(); err != nil {
			// Keep serving the migrated data; the next successful
			// mutation persists the upgraded envelope.
			s.log.Warn().Err(err).Msg("could not persist migrated snapshot")
		}
	}
	return s, nil
}

// SetOnChange registers a hook fired asynchronously after every
// successful mutation. Used to trigger statistics recomputation.
func (s *EntryStore) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Kind returns the tracker kind this store holds entries for.
func (s *EntryStore) Kind() domain.Kind { return s.kind }

// Append inserts an entry, re-sorts, and persists. On persistence
// failure the in-memory state is rolled back and the error returned.
func (s *EntryStore) Append(e domain.Entry) error {
	_, _, err := s.Apply([]domain.Entry{e}, nil)
	return err
}

// RemoveMatching removes all entries the predicate matches, persisting
// the result. It reports how many entries were removed.
func (s *EntryStore) RemoveMatching(pred func(domain.Entry) bool) (int, error) {
	_, removed, err := s.Apply(nil, pred)
	return removed, err
}

// Apply performs removals and additions as one mutation with a single
// persist, which is what reconciliation needs to avoid torn snapshots.
// Either both take effect or neither does.
func (s *EntryStore) Apply(add []domain.Entry, removePred func(domain.Entry) bool) (added, removed int, err error) {
	s.mu.Lock()

	prev := s.entries
	next := make([]domain.Entry, 0, len(prev)+len(add))
	for _, e := range prev {
		if removePred != nil && removePred(e) {
			removed++
			continue
		}
		next = append(next, e)
	}
	next = append(next, add...)
	added = len(add)

	if added == 0 && removed == 0 {
		s.mu.Unlock()
		return 0, 0, nil
	}

	s.entries = next
	s.sortLocked()
	if err := s.persistLocked(); err != nil {
		s.entries = prev
		s.mu.Unlock()
		return 0, 0, err
	}
	s.gen++
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		go fn()
	}
	return added, removed, nil
}

// All returns a read-only copy of the current ordered sequence.
func (s *EntryStore) All() []domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of stored entries.
func (s *EntryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Generation increments on every successful mutation. Derived-state
// caches key off it.
func (s *EntryStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *EntryStore) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Timestamp.After(s.entries[j].Timestamp)
	})
}

func (s *EntryStore) persistLocked() error {
	blob, err := encodeSnapshot(s.kind, s.entries)
	if err != nil {
		return err
	}
	if err := s.kv.Save(entriesKey(s.kind), blob); err != nil {
		return fmt.Errorf("persist %s entries: %w", s.kind, err)
	}
	return nil
}
