package main

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := initDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("initDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func testConfig() *Config {
	return &Config{
		Timezone:     time.UTC,
		DailyGoal:    10000,
		StepsPerMile: 2000,
	}
}

func mustUpsertSteps(t *testing.T, store *Store, date string, steps int) {
	t.Helper()
	if err := store.UpsertDailySteps(DailyStepRecord{Date: date, Steps: steps, Goal: 10000}); err != nil {
		t.Fatalf("upsert %s: %v", date, err)
	}
}

func TestUpsertDailyStepsKeepsMax(t *testing.T) {
	store := newTestStore(t)

	mustUpsertSteps(t, store, "2024-03-01", 5000)
	mustUpsertSteps(t, store, "2024-03-01", 4000) // lower: ignored
	mustUpsertSteps(t, store, "2024-03-01", 6000) // higher: wins

	records, err := store.StepsInRange("2024-03-01", "2024-03-01")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Steps != 6000 {
		t.Fatalf("expected 6000 steps, got %d", records[0].Steps)
	}
}

func TestUpsertDailyStepsIdempotent(t *testing.T) {
	store := newTestStore(t)

	mustUpsertSteps(t, store, "2024-03-01", 5000)
	before, err := store.StepsInRange("2024-03-01", "2024-03-01")
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	mustUpsertSteps(t, store, "2024-03-01", 5000)
	after, err := store.StepsInRange("2024-03-01", "2024-03-01")
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(after) != 1 || after[0].ID != before[0].ID || after[0].Steps != before[0].Steps {
		t.Fatalf("replay changed state: before %#v after %#v", before, after)
	}
}

func TestStepsInRangeOrderedAscending(t *testing.T) {
	store := newTestStore(t)

	mustUpsertSteps(t, store, "2024-03-03", 3000)
	mustUpsertSteps(t, store, "2024-03-01", 1000)
	mustUpsertSteps(t, store, "2024-03-02", 2000)

	records, err := store.StepsInRange("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Date <= records[i-1].Date {
			t.Fatalf("records out of order: %s before %s", records[i-1].Date, records[i].Date)
		}
	}
}

func TestUpsertActivityOverwritesMutableFields(t *testing.T) {
	store := newTestStore(t)

	act := ActivityRecord{
		ExternalActivityID: 42,
		Date:               "2024-03-01",
		Name:               "Morning Walk",
		DistanceMiles:      2.5,
		DurationSeconds:    2400,
	}
	if err := store.UpsertActivity(act); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	act.Name = "Morning Walk (edited)"
	act.DistanceMiles = 2.75
	if err := store.UpsertActivity(act); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	activities, err := store.Activities(2024, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}
	got := activities[0]
	if got.Name != "Morning Walk (edited)" || got.DistanceMiles != 2.75 {
		t.Fatalf("mutable fields not overwritten: %#v", got)
	}
	if got.ExternalActivityID != 42 {
		t.Fatalf("identity changed: %#v", got)
	}
}

func TestActivitiesYearFilterAndOrder(t *testing.T) {
	store := newTestStore(t)

	for _, act := range []ActivityRecord{
		{ExternalActivityID: 1, Date: "2023-12-31", Name: "Old", DistanceMiles: 1},
		{ExternalActivityID: 2, Date: "2024-01-02", Name: "A", DistanceMiles: 1},
		{ExternalActivityID: 3, Date: "2024-05-01", Name: "B", DistanceMiles: 1},
	} {
		if err := store.UpsertActivity(act); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	activities, err := store.Activities(2024, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activities for 2024, got %d", len(activities))
	}
	if activities[0].Name != "B" || activities[1].Name != "A" {
		t.Fatalf("expected newest first, got %s then %s", activities[0].Name, activities[1].Name)
	}

	all, err := store.Activities(0, 10)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 activities unfiltered, got %d", len(all))
	}
}

func TestYearAggregatesBestDayTieBreak(t *testing.T) {
	store := newTestStore(t)

	mustUpsertSteps(t, store, "2024-02-10", 12000)
	mustUpsertSteps(t, store, "2024-02-05", 12000)
	mustUpsertSteps(t, store, "2024-02-07", 8000)

	agg, err := store.YearAggregates(2024, 10000)
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if agg.BestSteps != 12000 {
		t.Fatalf("expected best 12000, got %d", agg.BestSteps)
	}
	if agg.BestDayDate != "2024-02-05" {
		t.Fatalf("tie should break to earliest date, got %s", agg.BestDayDate)
	}
	if agg.TotalSteps != 32000 || agg.TotalDays != 3 || agg.DaysGoalMet != 2 {
		t.Fatalf("unexpected aggregates: %#v", agg)
	}
	if agg.MaxDate != "2024-02-10" {
		t.Fatalf("expected max date 2024-02-10, got %s", agg.MaxDate)
	}
}

func TestYearAggregatesEmptyYear(t *testing.T) {
	store := newTestStore(t)

	agg, err := store.YearAggregates(2024, 10000)
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if agg.TotalSteps != 0 || agg.TotalDays != 0 || agg.BestSteps != 0 || agg.BestDayDate != "" {
		t.Fatalf("expected zero aggregates, got %#v", agg)
	}
}

func TestLatestSyncRunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run, err := store.LatestSyncRun()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if run != nil {
		t.Fatalf("expected no runs, got %#v", run)
	}

	if err := store.InsertSyncRun("run-1", SyncSteps); err != nil {
		t.Fatalf("insert: %v", err)
	}
	run, err = store.LatestSyncRun()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if run == nil || run.Status != SyncRunning || run.CompletedAt != nil {
		t.Fatalf("expected running run, got %#v", run)
	}

	if err := store.CompleteSyncRun("run-1", SyncFailed, 3, "feed unreachable"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	run, err = store.LatestSyncRun()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if run.Status != SyncFailed || run.RecordsFetched != 3 || run.Error != "feed unreachable" {
		t.Fatalf("unexpected terminal run: %#v", run)
	}
	if run.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
}
