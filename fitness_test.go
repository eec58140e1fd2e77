package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFitnessClientDailySteps(t *testing.T) {
	var gotAuth, gotStart, gotEnd string
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/daily-summaries" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date": "2024-03-01", "total_steps": 10000, "step_goal": 12000,
			 "total_distance_meters": 8046.7, "floors_climbed": 9},
			{"date": "2024-03-02", "total_steps": 4000, "step_goal": 0,
			 "total_distance_meters": 0, "floors_climbed": 0}
		]`))
	}))
	defer feed.Close()

	client := newFitnessClient(feed.URL, "tok123")
	records, err := client.DailySteps(context.Background(), date(2024, 3, 1), date(2024, 3, 2))
	if err != nil {
		t.Fatalf("DailySteps: %v", err)
	}

	if gotAuth != "Bearer tok123" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if gotStart != "2024-03-01" || gotEnd != "2024-03-02" {
		t.Fatalf("unexpected range: %s..%s", gotStart, gotEnd)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.Date != "2024-03-01" || first.Steps != 10000 || first.Goal != 12000 {
		t.Fatalf("unexpected record: %#v", first)
	}
	// 8046.7 meters is 5 miles.
	if first.DistanceMiles == nil || *first.DistanceMiles != 5.0 {
		t.Fatalf("expected 5 miles, got %v", first.DistanceMiles)
	}
	// Missing goal falls back to the default.
	if records[1].Goal != 10000 {
		t.Fatalf("expected fallback goal, got %d", records[1].Goal)
	}
}

func TestFitnessClientActivities(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"activity_id": 99, "start_time_local": "2024-03-01 07:15:00",
			 "name": "Morning Walk", "distance_meters": 4828.02,
			 "duration_seconds": 3600.5, "average_speed_mps": 1.34112,
			 "calories": 250}
		]`))
	}))
	defer feed.Close()

	client := newFitnessClient(feed.URL, "")
	activities, err := client.Activities(context.Background(), date(2024, 3, 1), date(2024, 3, 1))
	if err != nil {
		t.Fatalf("Activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}
	act := activities[0]
	if act.ExternalActivityID != 99 || act.Date != "2024-03-01" || act.Name != "Morning Walk" {
		t.Fatalf("unexpected activity: %#v", act)
	}
	// 4828.02 meters is 3 miles; 1.34112 m/s is 3 mph.
	if act.DistanceMiles != 3.0 {
		t.Fatalf("expected 3 miles, got %v", act.DistanceMiles)
	}
	if act.AverageSpeedMph == nil || *act.AverageSpeedMph != 3.0 {
		t.Fatalf("expected 3 mph, got %v", act.AverageSpeedMph)
	}
	if act.DurationSeconds != 3600 {
		t.Fatalf("expected duration truncated to 3600, got %d", act.DurationSeconds)
	}
	if act.Calories == nil || *act.Calories != 250 {
		t.Fatalf("expected 250 calories, got %v", act.Calories)
	}
}

func TestFitnessClientErrorStatus(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream auth expired", http.StatusBadGateway)
	}))
	defer feed.Close()

	client := newFitnessClient(feed.URL, "tok")
	if _, err := client.DailySteps(context.Background(), date(2024, 3, 1), date(2024, 3, 2)); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
