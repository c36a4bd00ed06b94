package app_test

import (
	"testing"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsync/internal/adapter/memory"
	"healthsync/internal/app"
	"healthsync/internal/domain"
)

// today is the fixed anchor all streak tests pin "now" to.
var today = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func hydrationEntry(dayOffset int, value float64) domain.Entry {
	return domain.Entry{
		ID:        app.NewEntryID(),
		Kind:      domain.KindHydration,
		Subtype:   "water",
		Value:     value,
		Timestamp: today.AddDate(0, 0, -dayOffset),
		Source:    domain.SourceManual,
	}
}

func goalDaysFor(entries []domain.Entry, profile app.TrackerProfile) []string {
	totals := app.DayTotals(entries, time.UTC)
	days := make([]string, 0, len(totals))
	for day, total := range totals {
		if profile.GoalMet(total) {
			days = append(days, day)
		}
	}
	return days
}

func TestStreaks_SpecScenario(t *testing.T) {
	// Day totals [70, 65, 0, 80, 90], today first, goal 64:
	// today and yesterday meet the goal, the 0 day breaks the run.
	profile := app.HydrationProfile(64)
	entries := []domain.Entry{
		hydrationEntry(0, 70),
		hydrationEntry(1, 65),
		hydrationEntry(2, 0),
		hydrationEntry(3, 80),
		hydrationEntry(4, 90),
	}
	goalDays := goalDaysFor(entries, profile)

	assert.Equal(t, 2, app.CurrentStreak(goalDays, today))
	assert.Equal(t, 2, app.LongestStreak(goalDays))
}

func TestCurrentStreak_TodayWithoutDataIsNotABreak(t *testing.T) {
	profile := app.HydrationProfile(64)
	entries := []domain.Entry{
		hydrationEntry(1, 70),
		hydrationEntry(2, 70),
		hydrationEntry(3, 70),
	}
	goalDays := goalDaysFor(entries, profile)

	// No entry for today yet: the walk anchors on yesterday.
	assert.Equal(t, 3, app.CurrentStreak(goalDays, today))
}

func TestStreak_BreakOnGap(t *testing.T) {
	// Goal met on D, D-1 and D-3; D-2 missing.
	profile := app.HydrationProfile(64)
	entries := []domain.Entry{
		hydrationEntry(0, 70),
		hydrationEntry(1, 70),
		hydrationEntry(3, 70),
	}
	goalDays := goalDaysFor(entries, profile)

	assert.Equal(t, 2, app.CurrentStreak(goalDays, today))
	assert.Equal(t, 2, app.LongestStreak(goalDays))

	// Two days later neither today nor yesterday met the goal: streak 0.
	assert.Equal(t, 0, app.CurrentStreak(goalDays, today.AddDate(0, 0, 2)))
}

func TestLongestStreak_FindsMiddleRun(t *testing.T) {
	profile := app.HydrationProfile(64)
	entries := []domain.Entry{
		hydrationEntry(0, 70),
		hydrationEntry(5, 70),
		hydrationEntry(6, 70),
		hydrationEntry(7, 70),
		hydrationEntry(9, 70),
	}
	goalDays := goalDaysFor(entries, profile)

	assert.Equal(t, 3, app.LongestStreak(goalDays))
	assert.Equal(t, 1, app.CurrentStreak(goalDays, today))
}

func TestAverage(t *testing.T) {
	entries := []domain.Entry{
		{Value: 150, Timestamp: today},
		{Value: 152, Timestamp: today.AddDate(0, 0, -1)},
		{Value: 148, Timestamp: today.AddDate(0, 0, -2)},
	}
	avg := app.Average(entries)
	require.NotNil(t, avg)
	assert.InDelta(t, 150.0, *avg, 1e-9)

	assert.Nil(t, app.Average(nil))
}

func TestTrend(t *testing.T) {
	assert.Nil(t, app.Trend(nil))
	assert.Nil(t, app.Trend([]domain.Entry{{Value: 80}}))

	// Fewer than eight points: compare against the oldest.
	short := []domain.Entry{{Value: 79}, {Value: 80}, {Value: 81}}
	trend := app.Trend(short)
	require.NotNil(t, trend)
	assert.InDelta(t, -2.0, *trend, 1e-9)

	// Nine points descending by time: most recent minus seven back.
	long := make([]domain.Entry, 9)
	for i := range long {
		long[i] = domain.Entry{Value: float64(80 + i), Timestamp: today.AddDate(0, 0, -i)}
	}
	trend = app.Trend(long)
	require.NotNil(t, trend)
	assert.InDelta(t, -7.0, *trend, 1e-9)
}

func TestWeightProfile_GoalIsPresence(t *testing.T) {
	p := app.WeightProfile()
	assert.True(t, p.GoalMet(81.5))
	assert.False(t, p.GoalMet(0))
}

func TestStatsService_SummaryAt(t *testing.T) {
	store, err := app.NewEntryStore(domain.KindHydration, memory.NewKV(), zerolog.Nop())
	require.NoError(t, err)
	for _, e := range []domain.Entry{
		hydrationEntry(0, 40), hydrationEntry(0, 30), // today: 70 in two drinks
		hydrationEntry(1, 65),
		hydrationEntry(3, 80),
	} {
		require.NoError(t, store.Append(e))
	}

	svc := app.NewStatsService(app.HydrationProfile(64), store, time.UTC,
		freecache.NewCache(256*1024), 60, zerolog.Nop())

	sum := svc.SummaryAt(today)
	assert.Equal(t, 2, sum.Current)
	assert.Equal(t, 2, sum.Longest)
	assert.Equal(t, 3, sum.GoalMetDays)
	require.NotNil(t, sum.Average)

	// Cached result matches a recompute.
	again := svc.SummaryAt(today)
	assert.Equal(t, sum, again)

	// A mutation invalidates the cache via the generation key.
	require.NoError(t, store.Append(hydrationEntry(2, 90)))
	updated := svc.SummaryAt(today)
	assert.Equal(t, 4, updated.Current)
}
