package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func initDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		step_date TEXT NOT NULL UNIQUE,
		steps INTEGER NOT NULL DEFAULT 0,
		goal INTEGER NOT NULL DEFAULT 10000,
		distance_miles REAL,
		floors_climbed INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_activity_id INTEGER NOT NULL UNIQUE,
		activity_date TEXT NOT NULL,
		activity_name TEXT,
		distance_miles REAL NOT NULL DEFAULT 0,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		start_lat REAL,
		start_lon REAL,
		end_lat REAL,
		end_lon REAL,
		average_speed_mph REAL,
		calories INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats_cache (
		year INTEGER PRIMARY KEY,
		stats_json TEXT NOT NULL,
		data_fingerprint TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		sync_type TEXT NOT NULL CHECK(sync_type IN ('steps', 'activities', 'full')),
		status TEXT NOT NULL DEFAULT 'running' CHECK(status IN ('running', 'success', 'failed')),
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME,
		records_fetched INTEGER NOT NULL DEFAULT 0,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_steps_date ON daily_steps(step_date);
	CREATE INDEX IF NOT EXISTS idx_activities_date ON activities(activity_date);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Store wraps the sqlite handle with the queries the rest of the system
// needs. Every upsert is a single INSERT ... ON CONFLICT statement, so
// concurrent writers for the same key cannot lose updates.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertDailySteps inserts or updates the record for a date.
//
// Conflict policy: keep-max. Step counts arrive as whole-day totals from
// devices that can race (watch vs phone, replayed shortcuts); the higher
// total is always the more complete reading, so an existing higher count is
// never lowered. Repeated delivery of the same record is a no-op.
func (s *Store) UpsertDailySteps(rec DailyStepRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_steps (step_date, steps, goal, distance_miles, floors_climbed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(step_date) DO UPDATE SET
			steps = MAX(daily_steps.steps, excluded.steps),
			goal = excluded.goal,
			distance_miles = COALESCE(excluded.distance_miles, daily_steps.distance_miles),
			floors_climbed = COALESCE(excluded.floors_climbed, daily_steps.floors_climbed)
	`, rec.Date, rec.Steps, rec.Goal, rec.DistanceMiles, rec.FloorsClimbed)
	if err != nil {
		return fmt.Errorf("upsert daily steps for %s: %w", rec.Date, err)
	}
	return nil
}

func (s *Store) StepsInRange(start, end string) ([]DailyStepRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, step_date, steps, goal, distance_miles, floors_climbed, created_at
		FROM daily_steps
		WHERE step_date >= ? AND step_date <= ?
		ORDER BY step_date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query steps range: %w", err)
	}
	defer rows.Close()

	records := []DailyStepRecord{}
	for rows.Next() {
		var rec DailyStepRecord
		var distance sql.NullFloat64
		var floors sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Steps, &rec.Goal, &distance, &floors, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step record: %w", err)
		}
		if distance.Valid {
			rec.DistanceMiles = &distance.Float64
		}
		if floors.Valid {
			f := int(floors.Int64)
			rec.FloorsClimbed = &f
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertActivity inserts or overwrites the record for an external activity
// id. Identity fields stay fixed, mutable fields take the new values.
func (s *Store) UpsertActivity(act ActivityRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO activities (
			external_activity_id, activity_date, activity_name, distance_miles,
			duration_seconds, start_lat, start_lon, end_lat, end_lon,
			average_speed_mph, calories
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_activity_id) DO UPDATE SET
			activity_date = excluded.activity_date,
			activity_name = excluded.activity_name,
			distance_miles = excluded.distance_miles,
			duration_seconds = excluded.duration_seconds,
			start_lat = excluded.start_lat,
			start_lon = excluded.start_lon,
			end_lat = excluded.end_lat,
			end_lon = excluded.end_lon,
			average_speed_mph = excluded.average_speed_mph,
			calories = excluded.calories,
			updated_at = CURRENT_TIMESTAMP
	`, act.ExternalActivityID, act.Date, act.Name, act.DistanceMiles,
		act.DurationSeconds, act.StartLat, act.StartLon, act.EndLat, act.EndLon,
		act.AverageSpeedMph, act.Calories)
	if err != nil {
		return fmt.Errorf("upsert activity %d: %w", act.ExternalActivityID, err)
	}
	return nil
}

// Activities lists activities newest first. year == 0 means no year filter.
func (s *Store) Activities(year, limit int) ([]ActivityRecord, error) {
	query := `
		SELECT id, external_activity_id, activity_date, activity_name,
		       distance_miles, duration_seconds, start_lat, start_lon,
		       end_lat, end_lon, average_speed_mph, calories
		FROM activities
	`
	args := []interface{}{}
	if year != 0 {
		start, end := yearBounds(year)
		query += " WHERE activity_date >= ? AND activity_date <= ?"
		args = append(args, start, end)
	}
	query += " ORDER BY activity_date DESC, external_activity_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	activities := []ActivityRecord{}
	for rows.Next() {
		var act ActivityRecord
		var name sql.NullString
		var startLat, startLon, endLat, endLon, speed sql.NullFloat64
		var calories sql.NullInt64
		if err := rows.Scan(&act.ID, &act.ExternalActivityID, &act.Date, &name,
			&act.DistanceMiles, &act.DurationSeconds, &startLat, &startLon,
			&endLat, &endLon, &speed, &calories); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		act.Name = name.String
		act.StartLat = nullFloat(startLat)
		act.StartLon = nullFloat(startLon)
		act.EndLat = nullFloat(endLat)
		act.EndLon = nullFloat(endLon)
		act.AverageSpeedMph = nullFloat(speed)
		if calories.Valid {
			c := int(calories.Int64)
			act.Calories = &c
		}
		activities = append(activities, act)
	}
	return activities, rows.Err()
}

// YearAggregates holds the single-pass aggregates for one year of records.
type YearAggregates struct {
	TotalSteps  int
	TotalDays   int
	BestSteps   int
	BestDayDate string
	DaysGoalMet int
	MaxDate     string
}

func (s *Store) YearAggregates(year, goal int) (YearAggregates, error) {
	start, end := yearBounds(year)

	var agg YearAggregates
	var bestDate, maxDate sql.NullString
	err := s.db.QueryRow(`
		SELECT
			COALESCE(SUM(steps), 0),
			COUNT(*),
			COALESCE(MAX(steps), 0),
			(SELECT step_date FROM daily_steps
			 WHERE step_date >= ? AND step_date <= ?
			 ORDER BY steps DESC, step_date ASC LIMIT 1),
			COALESCE(SUM(CASE WHEN steps >= ? THEN 1 ELSE 0 END), 0),
			MAX(step_date)
		FROM daily_steps
		WHERE step_date >= ? AND step_date <= ?
	`, start, end, goal, start, end).Scan(
		&agg.TotalSteps, &agg.TotalDays, &agg.BestSteps, &bestDate, &agg.DaysGoalMet, &maxDate)
	if err != nil {
		return YearAggregates{}, fmt.Errorf("year aggregates for %d: %w", year, err)
	}
	agg.BestDayDate = bestDate.String
	agg.MaxDate = maxDate.String
	return agg, nil
}

// GoalMetDates returns, ascending, the dates within a year whose steps met
// the goal. Input for the streak scan.
func (s *Store) GoalMetDates(year, goal int) ([]string, error) {
	start, end := yearBounds(year)
	rows, err := s.db.Query(`
		SELECT step_date FROM daily_steps
		WHERE step_date >= ? AND step_date <= ? AND steps >= ?
		ORDER BY step_date
	`, start, end, goal)
	if err != nil {
		return nil, fmt.Errorf("query goal-met dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *Store) SumStepsRange(start, end string) (int, error) {
	var sum int
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(steps), 0) FROM daily_steps
		WHERE step_date >= ? AND step_date <= ?
	`, start, end).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum steps %s..%s: %w", start, end, err)
	}
	return sum, nil
}

func (s *Store) SumStepsSince(start string) (int, error) {
	var sum int
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(steps), 0) FROM daily_steps WHERE step_date >= ?
	`, start).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum steps since %s: %w", start, err)
	}
	return sum, nil
}

func (s *Store) AllTimeTotals() (steps, days int, err error) {
	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(steps), 0), COUNT(*) FROM daily_steps
	`).Scan(&steps, &days)
	if err != nil {
		return 0, 0, fmt.Errorf("all-time totals: %w", err)
	}
	return steps, days, nil
}

// RecentDailyFingerprint concatenates date:steps pairs for every record on
// or after start, in date order. Any edit inside the window changes it.
func (s *Store) RecentDailyFingerprint(start string) (string, error) {
	var fp sql.NullString
	err := s.db.QueryRow(`
		SELECT GROUP_CONCAT(step_date || ':' || steps)
		FROM (SELECT step_date, steps FROM daily_steps
		      WHERE step_date >= ? ORDER BY step_date)
	`, start).Scan(&fp)
	if err != nil {
		return "", fmt.Errorf("recent daily fingerprint: %w", err)
	}
	return fp.String, nil
}

func (s *Store) GetStatsCache(year int) (payload, fingerprint string, found bool, err error) {
	err = s.db.QueryRow(`
		SELECT stats_json, data_fingerprint FROM stats_cache WHERE year = ?
	`, year).Scan(&payload, &fingerprint)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("get stats cache for %d: %w", year, err)
	}
	return payload, fingerprint, true, nil
}

func (s *Store) PutStatsCache(year int, payload, fingerprint string) error {
	_, err := s.db.Exec(`
		INSERT INTO stats_cache (year, stats_json, data_fingerprint)
		VALUES (?, ?, ?)
		ON CONFLICT(year) DO UPDATE SET
			stats_json = excluded.stats_json,
			data_fingerprint = excluded.data_fingerprint,
			updated_at = CURRENT_TIMESTAMP
	`, year, payload, fingerprint)
	if err != nil {
		return fmt.Errorf("put stats cache for %d: %w", year, err)
	}
	return nil
}

func (s *Store) DeleteStatsCache(year int) error {
	if _, err := s.db.Exec(`DELETE FROM stats_cache WHERE year = ?`, year); err != nil {
		return fmt.Errorf("delete stats cache for %d: %w", year, err)
	}
	return nil
}

func (s *Store) InsertSyncRun(id string, syncType SyncType) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (id, sync_type, status) VALUES (?, ?, 'running')
	`, id, string(syncType))
	if err != nil {
		return fmt.Errorf("insert sync run %s: %w", id, err)
	}
	return nil
}

func (s *Store) CompleteSyncRun(id string, status SyncStatus, fetched int, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE sync_runs
		SET status = ?, records_fetched = ?, error_message = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(status), fetched, errMsg, id)
	if err != nil {
		return fmt.Errorf("complete sync run %s: %w", id, err)
	}
	return nil
}

// LatestSyncRun returns the most recently started run, or nil if there has
// never been one.
func (s *Store) LatestSyncRun() (*SyncRun, error) {
	var run SyncRun
	var completed sql.NullTime
	var errMsg sql.NullString
	err := s.db.QueryRow(`
		SELECT id, sync_type, status, started_at, completed_at, records_fetched, error_message
		FROM sync_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&run.ID, &run.Type, &run.Status, &run.StartedAt, &completed, &run.RecordsFetched, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest sync run: %w", err)
	}
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	run.Error = errMsg.String
	return &run, nil
}

func yearBounds(year int) (start, end string) {
	return fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year)
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
