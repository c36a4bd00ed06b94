package app

import (
	"fmt"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"

	"healthsync/internal/config"
	"healthsync/internal/domain"
)

// Tracker bundles the services for one tracker kind: its entry store,
// statistics calculator and sync coordinator.
type Tracker struct {
	Profile TrackerProfile
	Store   *EntryStore
	Stats   *StatsService
	Sync    *SyncService
}

// BuildTrackers wires the weight, hydration and sleep trackers against
// a shared key-value store and a shared external health store. The
// health store connection is shared read-only infrastructure; each
// coordinator operates on its own disjoint data type.
func BuildTrackers(conf *config.Config, kv domain.KeyValue, remote domain.HealthStore, log zerolog.Logger) (map[domain.Kind]*Tracker, error) {
	profiles := []TrackerProfile{
		WeightProfile(),
		HydrationProfile(conf.Goals.HydrationML),
		SleepProfile(conf.Goals.SleepHours),
	}

	var cache *freecache.Cache
	if conf.Stats.CacheBytes > 0 {
		cache = freecache.NewCache(conf.Stats.CacheBytes)
	}

	observerTol := domain.Tolerance{Window: conf.Sync.ObserverWindow, Value: conf.Sync.ObserverValueDelta}
	importTol := domain.Tolerance{Window: conf.Sync.ImportWindow, Value: conf.Sync.ImportValueDelta}
	loc := conf.Location()

	trackers := make(map[domain.Kind]*Tracker, len(profiles))
	for _, profile := range profiles {
		store, err := NewEntryStore(profile.Kind, kv, log)
		if err != nil {
			return nil, fmt.Errorf("build %s tracker: %w", profile.Kind, err)
		}

		stats := NewStatsService(profile, store, loc, cache, conf.Stats.CacheTTL, log)
		store.SetOnChange(func() { stats.Summary() })

		rec := NewReconciler(profile, store, remote, observerTol, importTol, conf.Sync.ReconcileDays, log)
		syncSvc, err := NewSyncService(profile, store, remote, rec, kv,
			conf.Sync.SuppressionDelay, conf.Sync.Debounce, conf.Sync.ImportLookbackDays, log)
		if err != nil {
			return nil, fmt.Errorf("build %s tracker: %w", profile.Kind, err)
		}

		trackers[profile.Kind] = &Tracker{
			Profile: profile,
			Store:   store,
			Stats:   stats,
			Sync:    syncSvc,
		}
	}
	return trackers, nil
}
