// Package healthfile implements the external health-store port over a
// local directory of JSON sample files, one subdirectory per tracker
// kind and one file per sample. Changes on disk drive the observe
// callback through fsnotify, which makes the adapter double as an
// integration surface: drop a sample file in, incremental sync fires.
package healthfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"healthsync/internal/domain"
)

// Ensure interface is met.
var _ domain.HealthStore = (*Store)(nil)

// Store is a file-backed health-data provider rooted at one directory.
type Store struct {
	root string
	log  zerolog.Logger

	mu         sync.Mutex
	authorized map[domain.Kind]bool
	watchers   map[domain.Kind]*fsnotify.Watcher
}

// New creates a store rooted at dir. Directories are created lazily on
// authorization.
func New(dir string, log zerolog.Logger) *Store {
	return &Store{
		root:       dir,
		log:        log.With().Str("adapter", "healthfile").Logger(),
		authorized: make(map[domain.Kind]bool),
		watchers:   make(map[domain.Kind]*fsnotify.Watcher),
	}
}

func (s *Store) kindDir(kind domain.Kind) string {
	return filepath.Join(s.root, string(kind))
}

// RequestAuthorization grants access by ensuring the per-kind sample
// directories exist and are writable.
func (s *Store) RequestAuthorization(ctx context.Context, kinds []domain.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range kinds {
		dir := s.kindDir(kind)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		probe := filepath.Join(dir, ".probe")
		if err := os.WriteFile(probe, nil, 0o644); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		_ = os.Remove(probe)
		s.authorized[kind] = true
	}
	return nil
}

// FetchSamples reads every sample file of the kind and filters to
// [start, end).
func (s *Store) FetchSamples(ctx context.Context, kind domain.Kind, start, end time.Time) ([]domain.RemoteSample, error) {
	if err := s.checkAuthorized(kind); err != nil {
		return nil, err
	}
	names, err := os.ReadDir(s.kindDir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	out := make([]domain.RemoteSample, 0, len(names))
	for _, entry := range names {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(s.kindDir(kind), entry.Name()))
		if err != nil {
			continue
		}
		var sample domain.RemoteSample
		if err := json.Unmarshal(blob, &sample); err != nil {
			// Malformed sample files are skipped, not fatal.
			s.log.Warn().Str("file", entry.Name()).Err(err).Msg("skipping malformed sample")
			continue
		}
		if sample.Timestamp.Before(start) || !sample.Timestamp.Before(end) {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// SaveSample writes the sample as <id>.json in the kind's directory.
func (s *Store) SaveSample(ctx context.Context, kind domain.Kind, sample domain.RemoteSample) error {
	if err := s.checkAuthorized(kind); err != nil {
		return err
	}
	blob, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	path := filepath.Join(s.kindDir(kind), sample.ID+".json")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteSample removes the sample file. Deleting an absent sample is
// not an error.
func (s *Store) DeleteSample(ctx context.Context, kind domain.Kind, id string) error {
	if err := s.checkAuthorized(kind); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.kindDir(kind), id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ObserveChanges watches the kind's directory and forwards every
// create/write/remove of a sample file to fn. The caller debounces.
func (s *Store) ObserveChanges(kind domain.Kind, fn func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watchers[kind]; ok {
		return nil, fmt.Errorf("observer already registered for %s", kind)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := s.kindDir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watchers[kind] = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(ev.Name, ".json") {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					fn()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("watcher error")
			}
		}
	}()

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[kind]; ok {
			_ = w.Close()
			delete(s.watchers, kind)
		}
	}
	return stop, nil
}

func (s *Store) checkAuthorized(kind domain.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorized[kind] {
		return domain.ErrUnauthorized
	}
	return nil
}
