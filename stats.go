package main

import (
	"fmt"
	"math"
	"time"
)

// StatsEngine derives the dashboard statistics object from the step store
// and the route model. It holds no state of its own; given the same store
// contents, year and day it always produces the same payload.
type StatsEngine struct {
	store *Store
	route Route
	cfg   *Config
}

func NewStatsEngine(store *Store, route Route, cfg *Config) *StatsEngine {
	return &StatsEngine{store: store, route: route, cfg: cfg}
}

func (e *StatsEngine) ComputeStats(year int, today time.Time) (*StatsPayload, error) {
	agg, err := e.store.YearAggregates(year, e.cfg.DailyGoal)
	if err != nil {
		return nil, err
	}

	weekStart := mondayOf(today)
	lastWeekStart := weekStart.AddDate(0, 0, -7)
	thisWeek, err := e.store.SumStepsRange(formatDate(weekStart), formatDate(today))
	if err != nil {
		return nil, err
	}
	lastWeek, err := e.store.SumStepsRange(formatDate(lastWeekStart), formatDate(weekStart.AddDate(0, 0, -1)))
	if err != nil {
		return nil, err
	}

	goalMet, err := e.store.GoalMetDates(year, e.cfg.DailyGoal)
	if err != nil {
		return nil, err
	}

	allTimeSteps, _, err := e.store.AllTimeTotals()
	if err != nil {
		return nil, err
	}

	stepsPerMile := float64(e.cfg.StepsPerMile)
	avgSteps := 0
	if agg.TotalDays > 0 {
		avgSteps = agg.TotalSteps / agg.TotalDays
	}
	avgDailyMiles := float64(avgSteps) / stepsPerMile
	allTimeMiles := float64(allTimeSteps) / stepsPerMile

	position := e.route.Position(allTimeMiles)
	position.MilesTraveled = round2(position.MilesTraveled)
	position.EffectiveMiles = round2(position.EffectiveMiles)
	position.MilesToNext = round1(position.MilesToNext)
	position.PercentComplete = round1(position.PercentComplete)

	payload := &StatsPayload{
		Year:                 year,
		TotalSteps:           agg.TotalSteps,
		TotalDays:            agg.TotalDays,
		AvgDailySteps:        avgSteps,
		BestDaySteps:         agg.BestSteps,
		BestDayDate:          agg.BestDayDate,
		DaysGoalMet:          agg.DaysGoalMet,
		CurrentStreak:        currentStreak(goalMet, today),
		ThisWeekSteps:        thisWeek,
		LastWeekSteps:        lastWeek,
		TotalDistanceMiles:   round2(float64(agg.TotalSteps) / stepsPerMile),
		AvgDailyMiles:        round2(avgDailyMiles),
		AllTimeSteps:         allTimeSteps,
		AllTimeDistanceMiles: round2(allTimeMiles),
		CrossingsCompleted:   position.CrossingsCompleted,
		CurrentPosition:      position,
	}

	if agg.TotalDays > 0 {
		payload.GoalMetPercentage = round1(float64(agg.DaysGoalMet) / float64(agg.TotalDays) * 100)
	}

	if lastWeek > 0 {
		comparison := round1(float64(thisWeek-lastWeek) / float64(lastWeek) * 100)
		payload.WeekComparison = &comparison
	}

	// ETA tracks the first arrival in Boston, so it measures against raw
	// all-time miles rather than the wrapped lap position.
	milesRemaining := e.route.TotalMiles - allTimeMiles
	payload.MilesRemaining = round1(milesRemaining)
	if avgDailyMiles > 0 && milesRemaining > 0 {
		days := int(milesRemaining / avgDailyMiles)
		eta := formatDate(today.AddDate(0, 0, days))
		payload.DaysToBoston = &days
		payload.ETADate = &eta
	}

	return payload, nil
}

// currentStreak counts consecutive goal-met days ending at today or, when
// today has not met the goal yet, at yesterday. A run whose last goal-met
// day is older than yesterday is not current and reports 0.
func currentStreak(goalMetDates []string, today time.Time) int {
	met := make(map[string]bool, len(goalMetDates))
	for _, d := range goalMetDates {
		met[d] = true
	}

	anchor := today
	if !met[formatDate(anchor)] {
		anchor = today.AddDate(0, 0, -1)
		if !met[formatDate(anchor)] {
			return 0
		}
	}

	streak := 0
	for d := anchor; met[formatDate(d)]; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// mondayOf returns the Monday of the calendar week containing day.
func mondayOf(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
