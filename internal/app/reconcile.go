package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"healthsync/internal/domain"
)

// ReconcileResult reports what a reconciliation changed.
type ReconcileResult struct {
	Added   int
	Removed int
}

// Reconciler merges remote snapshots into one tracker's entry store.
// All three modes are idempotent: re-running against an unchanged
// remote snapshot changes nothing. Manual entries are never removed.
type Reconciler struct {
	profile     TrackerProfile
	store       *EntryStore
	remote      domain.HealthStore
	observerTol domain.Tolerance
	importTol   domain.Tolerance
	windowDays  int
	log         zerolog.Logger
}

// NewReconciler builds the engine for one tracker. observerTol is the
// tight tolerance used for incremental syncs; importTol the loose one
// absorbing unit-conversion rounding during bulk import. windowDays
// bounds the remote snapshot fetched for incremental and full
// reconciliation.
func NewReconciler(profile TrackerProfile, store *EntryStore, remote domain.HealthStore,
	observerTol, importTol domain.Tolerance, windowDays int, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		profile:     profile,
		store:       store,
		remote:      remote,
		observerTol: observerTol,
		importTol:   importTol,
		windowDays:  windowDays,
		log:         log.With().Str("tracker", string(profile.Kind)).Logger(),
	}
}

// Reconcile is the incremental mode: every remote sample not matched
// against the full local store is appended tagged with external
// provenance. Nothing is ever removed.
func (r *Reconciler) Reconcile(remote []domain.RemoteSample) (ReconcileResult, error) {
	return r.addUnseen(remote, r.observerTol)
}

// Sync fetches the recent remote window and reconciles it additively.
func (r *Reconciler) Sync(ctx context.Context) (ReconcileResult, error) {
	samples, err := r.fetchWindow(ctx, r.windowDays)
	if err != nil {
		return ReconcileResult{}, err
	}
	return r.addUnseen(samples, r.observerTol)
}

// ImportAll is the one-time historical catch-up: additive like Sync,
// but over a long lookback and with the loose tolerance. Safe to re-run.
func (r *Reconciler) ImportAll(ctx context.Context, since time.Time) (ReconcileResult, error) {
	samples, err := r.remote.FetchSamples(ctx, r.profile.Kind, since, time.Now())
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("import %s: %w", r.profile.Kind, err)
	}
	return r.addUnseen(samples, r.importTol)
}

// ReconcileWithDeletions fetches the full remote snapshot over the
// window, removes externally-sourced local entries in that window with
// no remote counterpart (modeling an external deletion), and adds
// remote samples with no local counterpart. Manual entries are excluded
// from removal entirely; only explicit user action deletes those.
func (r *Reconciler) ReconcileWithDeletions(ctx context.Context) (ReconcileResult, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -r.windowDays)

	samples, err := r.remote.FetchSamples(ctx, r.profile.Kind, start, end)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile %s: %w", r.profile.Kind, err)
	}

	remote := make([]domain.Entry, 0, len(samples))
	for _, s := range samples {
		remote = append(remote, r.profile.EntryFromSample(s))
	}

	local := r.store.All()

	toAdd := make([]domain.Entry, 0)
	seen := local
	for _, cand := range remote {
		if IsDuplicate(cand, seen, r.observerTol) {
			continue
		}
		toAdd = append(toAdd, cand)
		seen = append(seen, cand)
	}

	removePred := func(e domain.Entry) bool {
		if e.Source != domain.SourceExternal {
			return false
		}
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			return false
		}
		return !IsDuplicate(e, remote, r.observerTol)
	}

	added, removed, err := r.store.Apply(toAdd, removePred)
	if err != nil {
		return ReconcileResult{}, err
	}
	res := ReconcileResult{Added: added, Removed: removed}
	if added > 0 || removed > 0 {
		r.log.Info().Int("added", added).Int("removed", removed).Msg("full reconciliation applied")
	}
	return res, nil
}

func (r *Reconciler) fetchWindow(ctx context.Context, days int) ([]domain.RemoteSample, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)
	samples, err := r.remote.FetchSamples(ctx, r.profile.Kind, start, end)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", r.profile.Kind, err)
	}
	return samples, nil
}

// addUnseen appends every remote sample with no duplicate in the local
// store. Candidates already accepted in this batch join the comparison
// set, so a duplicated sample within one snapshot imports once.
func (r *Reconciler) addUnseen(samples []domain.RemoteSample, tol domain.Tolerance) (ReconcileResult, error) {
	seen := r.store.All()
	toAdd := make([]domain.Entry, 0)
	for _, s := range samples {
		cand := r.profile.EntryFromSample(s)
		if IsDuplicate(cand, seen, tol) {
			continue
		}
		toAdd = append(toAdd, cand)
		seen = append(seen, cand)
	}
	if len(toAdd) == 0 {
		return ReconcileResult{}, nil
	}
	added, _, err := r.store.Apply(toAdd, nil)
	if err != nil {
		return ReconcileResult{}, err
	}
	r.log.Debug().Int("added", added).Msg("incremental sync applied")
	return ReconcileResult{Added: added}, nil
}
