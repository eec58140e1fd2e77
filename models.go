package main

import (
	"time"
)

// Dates are carried as "2006-01-02" strings end to end: that is how they are
// stored in sqlite, how they sort, and how the API exposes them.
const dateLayout = "2006-01-02"

type DailyStepRecord struct {
	ID            int64     `json:"id"`
	Date          string    `json:"date"`
	Steps         int       `json:"steps"`
	Goal          int       `json:"goal"`
	DistanceMiles *float64  `json:"distance_miles,omitempty"`
	FloorsClimbed *int      `json:"floors_climbed,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ActivityRecord struct {
	ID                 int64    `json:"id"`
	ExternalActivityID int64    `json:"external_activity_id"`
	Date               string   `json:"activity_date"`
	Name               string   `json:"name"`
	DistanceMiles      float64  `json:"distance_miles"`
	DurationSeconds    int      `json:"duration_seconds"`
	StartLat           *float64 `json:"start_lat,omitempty"`
	StartLon           *float64 `json:"start_lon,omitempty"`
	EndLat             *float64 `json:"end_lat,omitempty"`
	EndLon             *float64 `json:"end_lon,omitempty"`
	AverageSpeedMph    *float64 `json:"average_speed_mph,omitempty"`
	Calories           *int     `json:"calories,omitempty"`
}

type SyncType string

const (
	SyncSteps      SyncType = "steps"
	SyncActivities SyncType = "activities"
	SyncFull       SyncType = "full"
)

type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

type SyncRun struct {
	ID             string     `json:"id"`
	Type           SyncType   `json:"type"`
	Status         SyncStatus `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	RecordsFetched int        `json:"records_fetched"`
	Error          string     `json:"error,omitempty"`
}

// StatsPayload is the full dashboard statistics object. Year aggregates and
// the streak are scoped to the requested year; position, ETA and the week
// comparison use all-time / cross-year data.
type StatsPayload struct {
	Year              int     `json:"year"`
	TotalSteps        int     `json:"total_steps"`
	TotalDays         int     `json:"total_days"`
	AvgDailySteps     int     `json:"avg_daily_steps"`
	BestDaySteps      int     `json:"best_day_steps"`
	BestDayDate       string  `json:"best_day_date,omitempty"`
	DaysGoalMet       int     `json:"days_goal_met"`
	GoalMetPercentage float64 `json:"goal_met_percentage"`
	CurrentStreak     int     `json:"current_streak"`

	ThisWeekSteps  int      `json:"this_week_steps"`
	LastWeekSteps  int      `json:"last_week_steps"`
	WeekComparison *float64 `json:"week_comparison"`

	TotalDistanceMiles   float64 `json:"total_distance_miles"`
	AvgDailyMiles        float64 `json:"avg_daily_miles"`
	AllTimeSteps         int     `json:"all_time_steps"`
	AllTimeDistanceMiles float64 `json:"all_time_distance_miles"`
	CrossingsCompleted   int     `json:"crossings_completed"`

	MilesRemaining float64 `json:"miles_remaining"`
	DaysToBoston   *int    `json:"days_to_boston"`
	ETADate        *string `json:"eta_date"`

	CurrentPosition Position `json:"current_position"`
}

type StepsInput struct {
	Date  string `json:"date"`
	Steps int    `json:"steps"`
}

type StepsResponse struct {
	Status string `json:"status"`
	Date   string `json:"date"`
	Steps  int    `json:"steps"`
}
