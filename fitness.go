package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	metersToMiles = 0.000621371
	mpsToMph      = 2.23694
)

// StepSource is the boundary to the external fitness service. Implementations
// return normalized records ready for the store; the sync runner does not
// care where they came from.
type StepSource interface {
	DailySteps(ctx context.Context, start, end time.Time) ([]DailyStepRecord, error)
	Activities(ctx context.Context, start, end time.Time) ([]ActivityRecord, error)
}

// fitnessClient talks to the fitness-service proxy, which exposes the
// tracker data as plain JSON. Raw metric units are converted here so the
// rest of the system only ever sees miles and mph.
type fitnessClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newFitnessClient(baseURL, token string) *fitnessClient {
	return &fitnessClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type feedDailySummary struct {
	Date                string  `json:"date"`
	TotalSteps          int     `json:"total_steps"`
	StepGoal            int     `json:"step_goal"`
	TotalDistanceMeters float64 `json:"total_distance_meters"`
	FloorsClimbed       int     `json:"floors_climbed"`
}

type feedActivity struct {
	ActivityID     int64    `json:"activity_id"`
	StartTimeLocal string   `json:"start_time_local"`
	Name           string   `json:"name"`
	DistanceMeters float64  `json:"distance_meters"`
	DurationSecs   float64  `json:"duration_seconds"`
	StartLat       *float64 `json:"start_lat"`
	StartLon       *float64 `json:"start_lon"`
	EndLat         *float64 `json:"end_lat"`
	EndLon         *float64 `json:"end_lon"`
	AvgSpeedMps    *float64 `json:"average_speed_mps"`
	Calories       *int     `json:"calories"`
}

func (c *fitnessClient) DailySteps(ctx context.Context, start, end time.Time) ([]DailyStepRecord, error) {
	var raw []feedDailySummary
	if err := c.get(ctx, "/daily-summaries", start, end, &raw); err != nil {
		return nil, err
	}

	records := make([]DailyStepRecord, 0, len(raw))
	for _, day := range raw {
		goal := day.StepGoal
		if goal <= 0 {
			goal = 10000
		}
		miles := round2(day.TotalDistanceMeters * metersToMiles)
		floors := day.FloorsClimbed
		records = append(records, DailyStepRecord{
			Date:          day.Date,
			Steps:         day.TotalSteps,
			Goal:          goal,
			DistanceMiles: &miles,
			FloorsClimbed: &floors,
		})
	}
	return records, nil
}

func (c *fitnessClient) Activities(ctx context.Context, start, end time.Time) ([]ActivityRecord, error) {
	var raw []feedActivity
	if err := c.get(ctx, "/activities", start, end, &raw); err != nil {
		return nil, err
	}

	activities := make([]ActivityRecord, 0, len(raw))
	for _, act := range raw {
		if len(act.StartTimeLocal) < len(dateLayout) {
			return nil, fmt.Errorf("activity %d: malformed start time %q", act.ActivityID, act.StartTimeLocal)
		}
		rec := ActivityRecord{
			ExternalActivityID: act.ActivityID,
			Date:               act.StartTimeLocal[:len(dateLayout)],
			Name:               act.Name,
			DistanceMiles:      round2(act.DistanceMeters * metersToMiles),
			DurationSeconds:    int(act.DurationSecs),
			StartLat:           act.StartLat,
			StartLon:           act.StartLon,
			EndLat:             act.EndLat,
			EndLon:             act.EndLon,
			Calories:           act.Calories,
		}
		if act.AvgSpeedMps != nil {
			mph := round2(*act.AvgSpeedMps * mpsToMph)
			rec.AverageSpeedMph = &mph
		}
		activities = append(activities, rec)
	}
	return activities, nil
}

func (c *fitnessClient) get(ctx context.Context, path string, start, end time.Time, out interface{}) error {
	query := url.Values{
		"start": {formatDate(start)},
		"end":   {formatDate(end)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build fitness request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fitness request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fitness request %s: status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode fitness response %s: %w", path, err)
	}
	return nil
}
