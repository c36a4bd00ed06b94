package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsync/internal/adapter/memory"
	"healthsync/internal/app"
	"healthsync/internal/domain"
)

var (
	tightTol = domain.Tolerance{Window: 60 * time.Second, Value: 0.1}
	looseTol = domain.Tolerance{Window: 10 * time.Minute, Value: 0.5}
)

type reconcileFixture struct {
	store  *app.EntryStore
	remote *memory.HealthStore
	rec    *app.Reconciler
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	store, err := app.NewEntryStore(domain.KindWeight, memory.NewKV(), zerolog.Nop())
	require.NoError(t, err)

	remote := memory.NewHealthStore()
	require.NoError(t, remote.RequestAuthorization(context.Background(), []domain.Kind{domain.KindWeight}))

	rec := app.NewReconciler(app.WeightProfile(), store, remote, tightTol, looseTol, 30, zerolog.Nop())
	return &reconcileFixture{store: store, remote: remote, rec: rec}
}

func sampleAt(ts time.Time, value float64) domain.RemoteSample {
	return domain.RemoteSample{ID: app.NewEntryID(), Value: value, Timestamp: ts}
}

func TestSync_AddsUnseenRemoteEntries(t *testing.T) {
	f := newReconcileFixture(t)
	now := time.Now()
	f.remote.Seed(domain.KindWeight,
		sampleAt(now.Add(-48*time.Hour), 81.0),
		sampleAt(now.Add(-24*time.Hour), 80.6),
	)

	res, err := f.rec.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 0, res.Removed)

	for _, e := range f.store.All() {
		assert.Equal(t, domain.SourceExternal, e.Source)
		assert.NotEmpty(t, e.ID)
	}
}

func TestSync_Idempotent(t *testing.T) {
	f := newReconcileFixture(t)
	now := time.Now()
	f.remote.Seed(domain.KindWeight,
		sampleAt(now.Add(-48*time.Hour), 81.0),
		sampleAt(now.Add(-24*time.Hour), 80.6),
	)

	first, err := f.rec.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, first.Added)

	second, err := f.rec.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added, "unchanged remote snapshot must add nothing")
	assert.Equal(t, 2, f.store.Len())
}

func TestReconcile_DuplicateSuppressionWindows(t *testing.T) {
	f := newReconcileFixture(t)
	base := time.Now().Add(-24 * time.Hour)

	local := domain.Entry{
		ID: app.NewEntryID(), Kind: domain.KindWeight,
		Value: 82.0, Timestamp: base, Source: domain.SourceExternal,
	}
	require.NoError(t, f.store.Append(local))

	// 30s and 0.05 off: inside the tight window, merged.
	res, err := f.rec.Reconcile(
		[]domain.RemoteSample{sampleAt(base.Add(30*time.Second), 82.05)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, f.store.Len())

	// One hour apart, same value: a distinct event.
	res, err = f.rec.Reconcile(
		[]domain.RemoteSample{sampleAt(base.Add(time.Hour), 82.0)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 2, f.store.Len())
}

func TestReconcile_DuplicatedSampleWithinBatchImportsOnce(t *testing.T) {
	f := newReconcileFixture(t)
	ts := time.Now().Add(-24 * time.Hour)

	res, err := f.rec.Reconcile([]domain.RemoteSample{
		sampleAt(ts, 80.0),
		sampleAt(ts.Add(5*time.Second), 80.0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
}

func TestImportAll_UsesLooseTolerance(t *testing.T) {
	f := newReconcileFixture(t)
	base := time.Now().Add(-30 * 24 * time.Hour)

	local := domain.Entry{
		ID: app.NewEntryID(), Kind: domain.KindWeight,
		Value: 81.6, Timestamp: base, Source: domain.SourceManual,
	}
	require.NoError(t, f.store.Append(local))

	// Five minutes and 0.3 kg off: outside the tight window, inside the
	// import window that absorbs unit-conversion rounding.
	f.remote.Seed(domain.KindWeight, sampleAt(base.Add(5*time.Minute), 81.9))

	res, err := f.rec.ImportAll(context.Background(), time.Now().AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)

	// Re-running the import stays a no-op.
	res, err = f.rec.ImportAll(context.Background(), time.Now().AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
}

func TestReconcileWithDeletions_PropagatesExternalDeletion(t *testing.T) {
	f := newReconcileFixture(t)
	now := time.Now()

	kept := sampleAt(now.Add(-48*time.Hour), 81.0)
	doomed := sampleAt(now.Add(-24*time.Hour), 80.5)
	f.remote.Seed(domain.KindWeight, kept, doomed)

	_, err := f.rec.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, f.store.Len())

	f.remote.Remove(domain.KindWeight, doomed.ID)

	res, err := f.rec.ReconcileWithDeletions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Removed)

	require.Equal(t, 1, f.store.Len())
	assert.InDelta(t, 81.0, f.store.All()[0].Value, 0.001)
}

func TestReconcileWithDeletions_ManualEntriesImmutable(t *testing.T) {
	f := newReconcileFixture(t)
	ts := time.Now().Add(-24 * time.Hour)

	// A manual entry with the same value/timestamp as a remote record
	// that is about to disappear. Only the external twin may go.
	manual := domain.Entry{
		ID: app.NewEntryID(), Kind: domain.KindWeight,
		Value: 80.5, Timestamp: ts, Source: domain.SourceManual,
	}
	require.NoError(t, f.store.Append(manual))
	external := domain.Entry{
		ID: app.NewEntryID(), Kind: domain.KindWeight,
		Value: 80.5, Timestamp: ts, Source: domain.SourceExternal,
	}
	require.NoError(t, f.store.Append(external))

	// Remote snapshot is empty: the external entry was deleted upstream.
	res, err := f.rec.ReconcileWithDeletions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	all := f.store.All()
	require.Len(t, all, 1)
	assert.Equal(t, manual.ID, all[0].ID)
	assert.Equal(t, domain.SourceManual, all[0].Source)
}

func TestReconcileWithDeletions_Idempotent(t *testing.T) {
	f := newReconcileFixture(t)
	f.remote.Seed(domain.KindWeight, sampleAt(time.Now().Add(-24*time.Hour), 81.0))

	first, err := f.rec.ReconcileWithDeletions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Added)

	second, err := f.rec.ReconcileWithDeletions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, app.ReconcileResult{}, second)
}

func TestReconciler_UnreachableStoreIsNoOp(t *testing.T) {
	f := newReconcileFixture(t)
	require.NoError(t, f.store.Append(entryAt(t, "2025-06-01T08:00:00Z", 81)))
	f.remote.FailFetches = domain.ErrStoreUnavailable

	ctx := context.Background()
	for name, op := range map[string]func() (app.ReconcileResult, error){
		"sync":      func() (app.ReconcileResult, error) { return f.rec.Sync(ctx) },
		"import":    func() (app.ReconcileResult, error) { return f.rec.ImportAll(ctx, time.Now().AddDate(-1, 0, 0)) },
		"deletions": func() (app.ReconcileResult, error) { return f.rec.ReconcileWithDeletions(ctx) },
	} {
		res, err := op()
		assert.Error(t, err, name)
		assert.True(t, errors.Is(err, domain.ErrStoreUnavailable), name)
		assert.Equal(t, app.ReconcileResult{}, res, name)
	}
	// The store is untouched by failed operations.
	assert.Equal(t, 1, f.store.Len())
}
