package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errSyncInProgress = errors.New("a sync run is already in progress")

// SyncRunner executes sync runs against the external source. One run at a
// time: a run is a single logical unit that goes to completion or terminal
// failure, and a failed run is re-triggered externally, never retried here.
type SyncRunner struct {
	store  *Store
	source StepSource
	// notify, when set, pushes an update to connected dashboards.
	notify func(updateType string, data interface{})

	mu     sync.Mutex
	active bool
}

func NewSyncRunner(store *Store, source StepSource, notify func(string, interface{})) *SyncRunner {
	return &SyncRunner{store: store, source: source, notify: notify}
}

// Start records a running sync_runs row, kicks off the run in the
// background and returns its id immediately. Returns errSyncInProgress if a
// run is already in flight.
func (r *SyncRunner) Start(syncType SyncType, start, end time.Time) (string, error) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return "", errSyncInProgress
	}
	r.active = true
	r.mu.Unlock()

	id := uuid.NewString()
	if err := r.store.InsertSyncRun(id, syncType); err != nil {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		return "", err
	}

	go r.run(id, syncType, start, end)
	return id, nil
}

func (r *SyncRunner) LatestRun() (*SyncRun, error) {
	return r.store.LatestSyncRun()
}

// run fetches and upserts, then records the terminal status. Errors stop
// the run but leave already-upserted records committed: partial progress is
// visible and the failed run says so.
func (r *SyncRunner) run(id string, syncType SyncType, start, end time.Time) {
	defer func() {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
	}()

	ctx := context.Background()
	fetched := 0
	years := map[int]bool{}
	var runErr error

	if syncType == SyncSteps || syncType == SyncFull {
		fetched, runErr = r.syncSteps(ctx, start, end, years)
	}
	if runErr == nil && (syncType == SyncActivities || syncType == SyncFull) {
		var n int
		n, runErr = r.syncActivities(ctx, start, end)
		fetched += n
	}

	if runErr != nil {
		log.Printf("Sync run %s failed after %d records: %v", id, fetched, runErr)
		if err := r.store.CompleteSyncRun(id, SyncFailed, fetched, runErr.Error()); err != nil {
			log.Printf("Error recording failed sync run %s: %v", id, err)
		}
		r.broadcastStatus()
		return
	}

	// Drop cached stats for the touched years; the fingerprint would catch
	// the change on the next read anyway, but there is no point keeping
	// entries known to be stale.
	for year := range years {
		if err := r.store.DeleteStatsCache(year); err != nil {
			log.Printf("Error invalidating stats cache for %d: %v", year, err)
		}
	}

	log.Printf("Sync run %s finished: %d records", id, fetched)
	if err := r.store.CompleteSyncRun(id, SyncSuccess, fetched, ""); err != nil {
		log.Printf("Error recording sync run %s: %v", id, err)
	}
	r.broadcastStatus()
}

func (r *SyncRunner) syncSteps(ctx context.Context, start, end time.Time, years map[int]bool) (int, error) {
	records, err := r.source.DailySteps(ctx, start, end)
	if err != nil {
		return 0, err
	}
	for i, rec := range records {
		if err := r.store.UpsertDailySteps(rec); err != nil {
			return i, err
		}
		if day, err := time.Parse(dateLayout, rec.Date); err == nil {
			years[day.Year()] = true
		}
	}
	return len(records), nil
}

func (r *SyncRunner) syncActivities(ctx context.Context, start, end time.Time) (int, error) {
	activities, err := r.source.Activities(ctx, start, end)
	if err != nil {
		return 0, err
	}
	for i, act := range activities {
		if err := r.store.UpsertActivity(act); err != nil {
			return i, err
		}
	}
	return len(activities), nil
}

func (r *SyncRunner) broadcastStatus() {
	if r.notify == nil {
		return
	}
	run, err := r.store.LatestSyncRun()
	if err != nil || run == nil {
		return
	}
	r.notify("sync-update", run)
}
