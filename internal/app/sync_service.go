package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"healthsync/internal/domain"
)

// SyncService coordinates synchronization for one tracker. It owns the
// persisted sync-enabled flag, suppresses feedback loops while manual
// writes are mirrored out, debounces external change notifications, and
// drives the Reconciler on demand or on notification.
//
// Lifecycle: Disabled → AuthorizationPending → Observing ⇄ Suppressed.
// Failures are returned and logged, never thrown; a failed
// reconciliation leaves the entry store in its pre-call state.
type SyncService struct {
	mu      sync.Mutex
	profile TrackerProfile
	store   *EntryStore
	remote  domain.HealthStore
	rec     *Reconciler
	kv      domain.KeyValue
	log     zerolog.Logger

	state domain.SyncState
	phase domain.SyncPhase

	suppressionDelay time.Duration
	debounce         time.Duration
	lookbackDays     int

	stopObserve   func()
	suppressTimer *time.Timer
	debounceTimer *time.Timer
	inFlight      bool
}

func syncStateKey(kind domain.Kind) string  { return "syncstate/" + string(kind) }
func syncStatusKey(kind domain.Kind) string { return "syncstatus/" + string(kind) }

// NewSyncService loads the tracker's persisted sync state. Observation
// does not resume automatically; callers that want a previously enabled
// tracker syncing again call Enable after construction.
func NewSyncService(profile TrackerProfile, store *EntryStore, remote domain.HealthStore,
	rec *Reconciler, kv domain.KeyValue, suppressionDelay, debounce time.Duration,
	lookbackDays int, log zerolog.Logger) (*SyncService, error) {

	s := &SyncService{
		profile:          profile,
		store:            store,
		remote:           remote,
		rec:              rec,
		kv:               kv,
		phase:            domain.PhaseDisabled,
		suppressionDelay: suppressionDelay,
		debounce:         debounce,
		lookbackDays:     lookbackDays,
		log:              log.With().Str("tracker", string(profile.Kind)).Logger(),
	}

	blob, err := kv.Load(syncStateKey(profile.Kind))
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}
	if blob != nil {
		if err := json.Unmarshal(blob, &s.state); err != nil {
			return nil, fmt.Errorf("%w: sync state: %v", domain.ErrDecode, err)
		}
	}
	// Suppression never survives a restart.
	s.state.Suppressed = false
	return s, nil
}

// Phase reports the coordinator's current lifecycle phase.
func (s *SyncService) Phase() domain.SyncPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Enabled reports the persisted sync flag.
func (s *SyncService) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Enabled
}

// Enable requests authorization from the external store and, when
// granted, runs an initial reconciliation (plus the one-time historical
// import if it never completed) and registers the change observer.
// Denied authorization reverts the flag and returns ErrUnauthorized.
func (s *SyncService) Enable(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == domain.PhaseObserving || s.phase == domain.PhaseSuppressed {
		s.mu.Unlock()
		return nil
	}
	s.phase = domain.PhaseAuthorizationPending
	s.mu.Unlock()

	if err := s.remote.RequestAuthorization(ctx, []domain.Kind{s.profile.Kind}); err != nil {
		s.mu.Lock()
		s.phase = domain.PhaseDisabled
		s.state.Enabled = false
		s.persistStateLocked()
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("authorization denied")
		return fmt.Errorf("enable sync: %w", err)
	}

	s.mu.Lock()
	s.state.Enabled = true
	s.persistStateLocked()
	s.mu.Unlock()

	// Initial reconciliation. A failure here is reported in the status
	// indicator but does not roll back enablement.
	if res, err := s.runGuarded(ctx, s.rec.Sync); err != nil {
		s.log.Warn().Err(err).Msg("initial sync failed")
	} else {
		s.log.Info().Int("added", res.Added).Msg("initial sync complete")
	}

	s.mu.Lock()
	importDone := s.state.LastImportCompleted
	s.mu.Unlock()
	if !importDone {
		since := time.Now().AddDate(0, 0, -s.lookbackDays)
		if res, err := s.runGuarded(ctx, func(ctx context.Context) (ReconcileResult, error) {
			return s.rec.ImportAll(ctx, since)
		}); err != nil {
			s.log.Warn().Err(err).Msg("historical import failed")
		} else {
			s.mu.Lock()
			s.state.LastImportCompleted = true
			s.persistStateLocked()
			s.mu.Unlock()
			s.log.Info().Int("added", res.Added).Msg("historical import complete")
		}
	}

	stop, err := s.remote.ObserveChanges(s.profile.Kind, s.onRemoteChange)
	if err != nil {
		s.mu.Lock()
		s.phase = domain.PhaseDisabled
		s.state.Enabled = false
		s.persistStateLocked()
		s.mu.Unlock()
		return fmt.Errorf("enable sync: observe: %w", err)
	}

	s.mu.Lock()
	s.stopObserve = stop
	s.phase = domain.PhaseObserving
	s.mu.Unlock()
	s.log.Info().Msg("sync enabled")
	return nil
}

// Resume re-requests authorization for a tracker whose sync flag was
// persisted enabled, without registering the change observer. One-shot
// commands use it before SyncNow; long-running observers use Enable.
func (s *SyncService) Resume(ctx context.Context) error {
	s.mu.Lock()
	enabled := s.state.Enabled
	s.mu.Unlock()
	if !enabled {
		return domain.ErrSyncDisabled
	}
	if err := s.remote.RequestAuthorization(ctx, []domain.Kind{s.profile.Kind}); err != nil {
		return fmt.Errorf("resume sync: %w", err)
	}
	return nil
}

// Disable unregisters the change observer and clears the flag. Existing
// entries are untouched; no further automatic syncs occur.
func (s *SyncService) Disable() {
	s.mu.Lock()
	stop := s.stopObserve
	s.stopObserve = nil
	if s.suppressTimer != nil {
		s.suppressTimer.Stop()
		s.suppressTimer = nil
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.phase = domain.PhaseDisabled
	s.state.Enabled = false
	s.state.Suppressed = false
	s.persistStateLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.log.Info().Msg("sync disabled")
}

// Shutdown stops the observer and any pending timers without touching
// the persisted sync flag. Process exit path; a later Enable resumes
// where the tracker left off.
func (s *SyncService) Shutdown() {
	s.mu.Lock()
	stop := s.stopObserve
	s.stopObserve = nil
	if s.suppressTimer != nil {
		s.suppressTimer.Stop()
		s.suppressTimer = nil
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.phase = domain.PhaseDisabled
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// SyncNow runs an incremental sync on demand. It is skipped while
// suppressed, refused while disabled, and coalesced when another
// reconciliation for this tracker is already in flight.
func (s *SyncService) SyncNow(ctx context.Context) (ReconcileResult, error) {
	if err := s.checkRunnable(); err != nil {
		return ReconcileResult{}, err
	}
	return s.runGuarded(ctx, s.rec.Sync)
}

// FullReconcile runs reconciliation with deletion detection.
func (s *SyncService) FullReconcile(ctx context.Context) (ReconcileResult, error) {
	if err := s.checkRunnable(); err != nil {
		return ReconcileResult{}, err
	}
	return s.runGuarded(ctx, s.rec.ReconcileWithDeletions)
}

// ImportHistory runs the bulk historical import over the configured
// lookback window. Idempotent if re-run.
func (s *SyncService) ImportHistory(ctx context.Context) (ReconcileResult, error) {
	if err := s.checkRunnable(); err != nil {
		return ReconcileResult{}, err
	}
	since := time.Now().AddDate(0, 0, -s.lookbackDays)
	res, err := s.runGuarded(ctx, func(ctx context.Context) (ReconcileResult, error) {
		return s.rec.ImportAll(ctx, since)
	})
	if err == nil {
		s.mu.Lock()
		s.state.LastImportCompleted = true
		s.persistStateLocked()
		s.mu.Unlock()
	}
	return res, err
}

// RecordManual stores a manually entered entry and, when sync is
// enabled, mirrors it to the external store under a suppression window
// so the store's own change notification does not re-import it.
func (s *SyncService) RecordManual(ctx context.Context, e domain.Entry) error {
	e.Source = domain.SourceManual
	if e.ID == "" {
		e.ID = NewEntryID()
	}
	if err := s.store.Append(e); err != nil {
		return err
	}

	s.mu.Lock()
	enabled := s.state.Enabled
	s.mu.Unlock()
	if !enabled {
		return nil
	}

	s.beginSuppression()
	if err := s.remote.SaveSample(ctx, s.profile.Kind, s.profile.SampleFromEntry(e)); err != nil {
		// Entry stays local; the mirror can be retried by a later sync
		// cycle on the store's side.
		s.log.Warn().Err(err).Msg("mirror to health store failed")
		return nil
	}
	return nil
}

// RemoveEntry deletes one entry by explicit user action, the only path
// that may remove a manual entry. A mirrored copy in the external store
// is deleted best-effort.
func (s *SyncService) RemoveEntry(ctx context.Context, id string) (bool, error) {
	// Imported entries are addressed in the external store by the ID it
	// assigned, not by the local one.
	remoteID := id
	for _, e := range s.store.All() {
		if e.ID == id {
			if e.ExternalID != "" {
				remoteID = e.ExternalID
			}
			break
		}
	}

	removed, err := s.store.RemoveMatching(func(e domain.Entry) bool { return e.ID == id })
	if err != nil {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}

	s.mu.Lock()
	enabled := s.state.Enabled
	s.mu.Unlock()
	if enabled {
		s.beginSuppression()
		if err := s.remote.DeleteSample(ctx, s.profile.Kind, remoteID); err != nil {
			s.log.Warn().Err(err).Msg("remote delete failed")
		}
	}
	return true, nil
}

// Status returns the persisted last-sync indicator.
func (s *SyncService) Status() domain.SyncStatus {
	var st domain.SyncStatus
	blob, err := s.kv.Load(syncStatusKey(s.profile.Kind))
	if err != nil || blob == nil {
		return st
	}
	_ = json.Unmarshal(blob, &st)
	return st
}

// onRemoteChange handles an external change notification: debounced,
// then an incremental sync unless suppressed.
func (s *SyncService) onRemoteChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Enabled {
		return
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		res, err := s.SyncNow(context.Background())
		switch {
		case err == nil:
			if res.Added > 0 {
				s.log.Info().Int("added", res.Added).Msg("observer sync applied")
			}
		case isSkip(err):
			s.log.Debug().Err(err).Msg("observer sync skipped")
		default:
			s.log.Warn().Err(err).Msg("observer sync failed")
		}
	})
}

// beginSuppression enters the suppressed phase and arms the cooldown
// timer that lifts it. A superseding write resets the timer.
func (s *SyncService) beginSuppression() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Suppressed = true
	if s.phase == domain.PhaseObserving {
		s.phase = domain.PhaseSuppressed
	}
	s.persistStateLocked()

	if s.suppressTimer != nil {
		s.suppressTimer.Stop()
	}
	s.suppressTimer = time.AfterFunc(s.suppressionDelay, s.endSuppression)
}

func (s *SyncService) endSuppression() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Suppressed = false
	if s.phase == domain.PhaseSuppressed {
		s.phase = domain.PhaseObserving
	}
	s.persistStateLocked()
}

func (s *SyncService) checkRunnable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Enabled {
		return domain.ErrSyncDisabled
	}
	if s.state.Suppressed {
		return domain.ErrSuppressed
	}
	return nil
}

// runGuarded serializes reconciliations for this tracker: a second call
// while one is outstanding returns ErrSyncInFlight instead of risking a
// duplicate import. Every outcome is recorded in the status indicator.
func (s *SyncService) runGuarded(ctx context.Context, op func(context.Context) (ReconcileResult, error)) (ReconcileResult, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ReconcileResult{}, domain.ErrSyncInFlight
	}
	s.inFlight = true
	s.mu.Unlock()

	res, err := op(ctx)

	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()

	s.recordStatus(res, err)
	return res, err
}

func (s *SyncService) recordStatus(res ReconcileResult, err error) {
	st := domain.SyncStatus{
		LastAttempt: time.Now(),
		Added:       res.Added,
		Removed:     res.Removed,
	}
	if err != nil {
		st.LastError = err.Error()
	}
	blob, merr := json.Marshal(st)
	if merr != nil {
		return
	}
	if err := s.kv.Save(syncStatusKey(s.profile.Kind), blob); err != nil {
		s.log.Warn().Err(err).Msg("could not persist sync status")
	}
}

func (s *SyncService) persistStateLocked() {
	blob, err := json.Marshal(s.state)
	if err != nil {
		return
	}
	if err := s.kv.Save(syncStateKey(s.profile.Kind), blob); err != nil {
		s.log.Warn().Err(err).Msg("could not persist sync state")
	}
}

func isSkip(err error) bool {
	return errors.Is(err, domain.ErrSuppressed) ||
		errors.Is(err, domain.ErrSyncInFlight) ||
		errors.Is(err, domain.ErrSyncDisabled)
}
