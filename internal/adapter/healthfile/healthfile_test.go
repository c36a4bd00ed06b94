package healthfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"healthsync/internal/adapter/healthfile"
	"healthsync/internal/domain"
)

func newStore(t *testing.T) *healthfile.Store {
	t.Helper()
	return healthfile.New(t.TempDir(), zerolog.Nop())
}

func authorize(t *testing.T, s *healthfile.Store, kinds ...domain.Kind) {
	t.Helper()
	if err := s.RequestAuthorization(context.Background(), kinds); err != nil {
		t.Fatalf("authorize: %v", err)
	}
}

func TestUnauthorizedAccess(t *testing.T) {
	s := newStore(t)
	_, err := s.FetchSamples(context.Background(), domain.KindWeight, time.Time{}, time.Now())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("fetch = %v; want ErrUnauthorized", err)
	}
	sample := domain.RemoteSample{ID: "a", Value: 80, Timestamp: time.Now()}
	if err := s.SaveSample(context.Background(), domain.KindWeight, sample); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("save = %v; want ErrUnauthorized", err)
	}
}

func TestSaveFetchDelete(t *testing.T) {
	s := newStore(t)
	authorize(t, s, domain.KindWeight)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		sample := domain.RemoteSample{ID: id, Value: 80 + float64(i), Timestamp: base.AddDate(0, 0, i)}
		if err := s.SaveSample(context.Background(), domain.KindWeight, sample); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	// End-exclusive window keeps a and b only.
	got, err := s.FetchSamples(context.Background(), domain.KindWeight, base, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fetch returned %d samples; want 2", len(got))
	}

	if err := s.DeleteSample(context.Background(), domain.KindWeight, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.FetchSamples(context.Background(), domain.KindWeight, base, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("fetch after delete: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("fetch after delete = %+v; want [b]", got)
	}

	// Deleting an absent sample is not an error.
	if err := s.DeleteSample(context.Background(), domain.KindWeight, "gone"); err != nil {
		t.Errorf("delete absent: %v", err)
	}
}

func TestFetchSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	s := healthfile.New(dir, zerolog.Nop())
	authorize(t, s, domain.KindHydration)

	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	good, err := json.Marshal(domain.RemoteSample{ID: "ok", Value: 250, Timestamp: ts})
	if err != nil {
		t.Fatal(err)
	}
	kindDir := filepath.Join(dir, string(domain.KindHydration))
	if err := os.WriteFile(filepath.Join(kindDir, "ok.json"), good, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(kindDir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(kindDir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.FetchSamples(context.Background(), domain.KindHydration, ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ok" {
		t.Errorf("fetch = %+v; want the one well-formed sample", got)
	}
}

func TestObserveChanges(t *testing.T) {
	s := newStore(t)
	authorize(t, s, domain.KindWeight)

	fired := make(chan struct{}, 8)
	stop, err := s.ObserveChanges(domain.KindWeight, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	defer stop()

	// A second observer for the same kind is rejected.
	if _, err := s.ObserveChanges(domain.KindWeight, func() {}); err == nil {
		t.Error("second observer registered; want error")
	}

	sample := domain.RemoteSample{ID: "w1", Value: 80, Timestamp: time.Now()}
	if err := s.SaveSample(context.Background(), domain.KindWeight, sample); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not fire after sample write")
	}
}
