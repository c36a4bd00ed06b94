package app

import (
	"sort"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"healthsync/internal/domain"
)

const dayFormat = "2006-01-02"

// StatsService derives streaks, trend and average from one tracker's
// entry collection. Everything is a pure function of the entry snapshot
// and can always be rebuilt; the freecache layer only exists for
// display performance and is keyed by store generation.
type StatsService struct {
	profile TrackerProfile
	store   *EntryStore
	loc     *time.Location
	cache   *freecache.Cache
	ttl     int
	log     zerolog.Logger
}

// NewStatsService builds the calculator for one tracker. cache may be
// shared across trackers and may be nil to disable caching.
func NewStatsService(profile TrackerProfile, store *EntryStore, loc *time.Location,
	cache *freecache.Cache, ttlSeconds int, log zerolog.Logger) *StatsService {
	return &StatsService{
		profile: profile,
		store:   store,
		loc:     loc,
		cache:   cache,
		ttl:     ttlSeconds,
		log:     log.With().Str("tracker", string(profile.Kind)).Logger(),
	}
}

// Summary computes (or serves from cache) the current streak summary.
func (s *StatsService) Summary() domain.StreakSummary {
	return s.SummaryAt(time.Now())
}

// SummaryAt computes the summary as of the given "today", which tests
// pin to a fixed instant.
func (s *StatsService) SummaryAt(now time.Time) domain.StreakSummary {
	key := s.cacheKey(now)
	if s.cache != nil {
		if blob, err := s.cache.Get(key); err == nil {
			var cached domain.StreakSummary
			if err := json.Unmarshal(blob, &cached); err == nil {
				return cached
			}
		}
	}

	entries := s.store.All()
	totals := DayTotals(entries, s.loc)
	goalDays := make([]string, 0, len(totals))
	for day, total := range totals {
		if s.profile.GoalMet(total) {
			goalDays = append(goalDays, day)
		}
	}

	sum := domain.StreakSummary{
		Current:     CurrentStreak(goalDays, now.In(s.loc)),
		Longest:     LongestStreak(goalDays),
		GoalMetDays: len(goalDays),
		Trend:       Trend(entries),
		Average:     Average(entries),
	}

	if s.cache != nil {
		if blob, err := json.Marshal(sum); err == nil {
			_ = s.cache.Set(key, blob, s.ttl)
		}
	}
	return sum
}

func (s *StatsService) cacheKey(now time.Time) []byte {
	gen := s.store.Generation()
	day := now.In(s.loc).Format(dayFormat)
	key := make([]byte, 0, 48)
	key = append(key, "stats/"...)
	key = append(key, s.profile.Kind...)
	key = append(key, '/')
	key = append(key, day...)
	key = append(key, '/')
	key = appendUint(key, gen)
	return key
}

func appendUint(b []byte, v uint64) []byte {
	if v == 0 {
		return append(b, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(b, tmp[i:]...)
}

// DayTotals groups entries by calendar day in the given location and
// sums each day's values.
func DayTotals(entries []domain.Entry, loc *time.Location) map[string]float64 {
	totals := make(map[string]float64, len(entries))
	for _, e := range entries {
		day := e.Timestamp.In(loc).Format(dayFormat)
		totals[day] += e.Value
	}
	return totals
}

// CurrentStreak counts consecutive goal-met days walking back from
// today. Today not yet having data is not a break: the walk may anchor
// on yesterday instead. A gap of more than one day breaks the streak.
func CurrentStreak(goalDays []string, today time.Time) int {
	met := make(map[string]bool, len(goalDays))
	for _, d := range goalDays {
		met[d] = true
	}

	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if !met[day.Format(dayFormat)] {
		day = day.AddDate(0, 0, -1)
		if !met[day.Format(dayFormat)] {
			return 0
		}
	}

	streak := 0
	for met[day.Format(dayFormat)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// LongestStreak finds the longest run of consecutive calendar days in
// the goal-met set.
func LongestStreak(goalDays []string) int {
	if len(goalDays) == 0 {
		return 0
	}
	days := make([]string, len(goalDays))
	copy(days, goalDays)
	sort.Strings(days)

	longest, run := 1, 1
	prev, err := time.Parse(dayFormat, days[0])
	if err != nil {
		return 0
	}
	for _, d := range days[1:] {
		cur, err := time.Parse(dayFormat, d)
		if err != nil {
			continue
		}
		if cur.Sub(prev) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = cur
	}
	return longest
}

// Trend returns the most recent value minus the value seven data points
// back (or the oldest, with fewer points), nil below two data points.
// Entries are expected sorted descending by timestamp.
func Trend(entries []domain.Entry) *float64 {
	if len(entries) < 2 {
		return nil
	}
	back := 7
	if back > len(entries)-1 {
		back = len(entries) - 1
	}
	t := entries[0].Value - entries[back].Value
	return &t
}

// Average returns the arithmetic mean of all recorded values, nil on an
// empty collection.
func Average(entries []domain.Entry) *float64 {
	if len(entries) == 0 {
		return nil
	}
	var sum float64
	for _, e := range entries {
		sum += e.Value
	}
	avg := sum / float64(len(entries))
	return &avg
}
