package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubSource struct {
	steps    []DailyStepRecord
	acts     []ActivityRecord
	stepsErr error
	actsErr  error
	// block, when set, holds DailySteps until closed.
	block chan struct{}
}

func (s *stubSource) DailySteps(ctx context.Context, start, end time.Time) ([]DailyStepRecord, error) {
	if s.block != nil {
		<-s.block
	}
	if s.stepsErr != nil {
		return nil, s.stepsErr
	}
	return s.steps, nil
}

func (s *stubSource) Activities(ctx context.Context, start, end time.Time) ([]ActivityRecord, error) {
	if s.actsErr != nil {
		return nil, s.actsErr
	}
	return s.acts, nil
}

func waitForRun(t *testing.T, store *Store, id string) *SyncRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := store.LatestSyncRun()
		if err != nil {
			t.Fatalf("latest run: %v", err)
		}
		if run != nil && run.ID == id && run.Status != SyncRunning {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("sync run %s did not reach a terminal state", id)
	return nil
}

func TestSyncRunSuccess(t *testing.T) {
	store := newTestStore(t)
	source := &stubSource{
		steps: []DailyStepRecord{
			{Date: "2024-03-01", Steps: 9000, Goal: 10000},
			{Date: "2024-03-02", Steps: 11000, Goal: 10000},
		},
		acts: []ActivityRecord{
			{ExternalActivityID: 7, Date: "2024-03-02", Name: "Walk", DistanceMiles: 3.1},
		},
	}
	runner := NewSyncRunner(store, source, nil)

	// Pre-seed a cached entry for the affected year; a successful run
	// must drop it.
	if err := store.PutStatsCache(2024, "{}", "stale"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	id, err := runner.Start(SyncFull, date(2024, 3, 1), date(2024, 3, 2))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	run := waitForRun(t, store, id)
	if run.Status != SyncSuccess {
		t.Fatalf("expected success, got %#v", run)
	}
	if run.RecordsFetched != 3 {
		t.Fatalf("expected 3 records fetched, got %d", run.RecordsFetched)
	}
	if run.Error != "" {
		t.Fatalf("unexpected error detail: %q", run.Error)
	}

	records, err := store.StepsInRange("2024-03-01", "2024-03-02")
	if err != nil {
		t.Fatalf("query steps: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 step records, got %d", len(records))
	}
	activities, err := store.Activities(2024, 10)
	if err != nil {
		t.Fatalf("query activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}

	_, _, found, err := store.GetStatsCache(2024)
	if err != nil {
		t.Fatalf("get cache: %v", err)
	}
	if found {
		t.Fatal("expected cached stats for affected year to be invalidated")
	}
}

func TestSyncRunFailureKeepsPartialProgress(t *testing.T) {
	store := newTestStore(t)
	source := &stubSource{
		steps: []DailyStepRecord{
			{Date: "2024-03-01", Steps: 9000, Goal: 10000},
		},
		actsErr: errors.New("fitness feed returned 502"),
	}
	runner := NewSyncRunner(store, source, nil)

	id, err := runner.Start(SyncFull, date(2024, 3, 1), date(2024, 3, 2))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	run := waitForRun(t, store, id)
	if run.Status != SyncFailed {
		t.Fatalf("expected failed run, got %#v", run)
	}
	if run.Error == "" {
		t.Fatal("expected error detail on failed run")
	}
	if run.CompletedAt == nil {
		t.Fatal("expected completion timestamp on failed run")
	}

	// Step upserts from before the failure stay committed.
	records, err := store.StepsInRange("2024-03-01", "2024-03-01")
	if err != nil {
		t.Fatalf("query steps: %v", err)
	}
	if len(records) != 1 || records[0].Steps != 9000 {
		t.Fatalf("expected committed partial progress, got %#v", records)
	}
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	store := newTestStore(t)
	source := &stubSource{block: make(chan struct{})}
	runner := NewSyncRunner(store, source, nil)

	id, err := runner.Start(SyncSteps, date(2024, 3, 1), date(2024, 3, 2))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := runner.Start(SyncSteps, date(2024, 3, 1), date(2024, 3, 2)); err != errSyncInProgress {
		t.Fatalf("expected errSyncInProgress, got %v", err)
	}

	close(source.block)
	waitForRun(t, store, id)

	// A new run is allowed once the previous one reached a terminal state.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := runner.Start(SyncSteps, date(2024, 3, 1), date(2024, 3, 2)); err == nil {
			break
		} else if err != errSyncInProgress {
			t.Fatalf("start after completion: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("runner never accepted a new run after completion")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
