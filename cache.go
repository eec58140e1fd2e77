package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StatsCache keeps one stored payload per year and recomputes it only when
// the fingerprint of the underlying data changes. There is no timer: an
// entry stays valid for as long as nothing it depends on moves.
type StatsCache struct {
	store  *Store
	engine *StatsEngine
}

func NewStatsCache(store *Store, engine *StatsEngine) *StatsCache {
	return &StatsCache{store: store, engine: engine}
}

// Get returns the statistics payload for a year, serving the stored copy on
// a fingerprint match and recomputing otherwise. The returned bytes are the
// exact stored serialization, so repeated hits are byte-identical. hit
// reports whether the stored entry was served.
func (c *StatsCache) Get(year int, today time.Time) (payload json.RawMessage, hit bool, err error) {
	fingerprint, err := c.fingerprint(year, today)
	if err != nil {
		return nil, false, err
	}

	stored, storedFP, found, err := c.store.GetStatsCache(year)
	if err != nil {
		return nil, false, err
	}
	if found && storedFP == fingerprint {
		return json.RawMessage(stored), true, nil
	}

	stats, err := c.engine.ComputeStats(year, today)
	if err != nil {
		return nil, false, err
	}
	buf, err := json.Marshal(stats)
	if err != nil {
		return nil, false, fmt.Errorf("marshal stats for %d: %w", year, err)
	}
	if err := c.store.PutStatsCache(year, string(buf), fingerprint); err != nil {
		return nil, false, err
	}
	return buf, false, nil
}

// fingerprint summarizes every input the engine reads for a year:
// the year's aggregate signature, per-day values in the trailing 30-day
// window (streaks react to edits there regardless of year), all-time totals
// (position and ETA react to any historical edit), the recent-weeks sum
// (week comparison crosses year boundaries), and today's date, because the
// same data yields different streak/week/ETA output on different days.
func (c *StatsCache) fingerprint(year int, today time.Time) (string, error) {
	agg, err := c.store.YearAggregates(year, c.engine.cfg.DailyGoal)
	if err != nil {
		return "", err
	}

	windowStart := formatDate(today.AddDate(0, 0, -30))
	daily, err := c.store.RecentDailyFingerprint(windowStart)
	if err != nil {
		return "", err
	}

	allTimeSteps, allTimeDays, err := c.store.AllTimeTotals()
	if err != nil {
		return "", err
	}

	twoWeeksAgo := mondayOf(today).AddDate(0, 0, -7)
	recentWeeks, err := c.store.SumStepsSince(formatDate(twoWeeksAgo))
	if err != nil {
		return "", err
	}

	input := strings.Join([]string{
		agg.MaxDate,
		fmt.Sprintf("%d", agg.TotalSteps),
		fmt.Sprintf("%d", agg.TotalDays),
		daily,
		fmt.Sprintf("%d", allTimeSteps),
		fmt.Sprintf("%d", allTimeDays),
		fmt.Sprintf("%d", recentWeeks),
		formatDate(today),
	}, "|")

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16], nil
}
