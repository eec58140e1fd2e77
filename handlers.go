package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	maxDailySteps        = 500000
	defaultActivityLimit = 50
	maxActivityLimit     = 500
	defaultStepsWindow   = 30 // days
	defaultSyncWindow    = 7  // days
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// requireAPIKey guards mutating endpoints. A server without a configured
// key refuses with a 500 rather than letting everything through.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.apiKeyConfigured() {
			http.Error(w, "API key not configured on server", http.StatusInternalServerError)
			return
		}
		key := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if key == "" {
			http.Error(w, "Missing X-API-Key header", http.StatusUnauthorized)
			return
		}
		if !s.cfg.verifyAPIKey(key) {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	today := s.cfg.Today()
	year := today.Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	payload, hit, err := s.cache.Get(year, today)
	if err != nil {
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		log.Printf("Error computing stats for %d: %v", year, err)
		return
	}
	if !hit {
		log.Printf("Stats cache miss for year %d, recomputed", year)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (s *Server) handleGetSteps(w http.ResponseWriter, r *http.Request) {
	today := s.cfg.Today()
	start := formatDate(today.AddDate(0, 0, -defaultStepsWindow))
	end := formatDate(today)

	if raw := r.URL.Query().Get("start"); raw != "" {
		day, err := parseDate(raw, s.cfg.Timezone)
		if err != nil {
			http.Error(w, "Invalid start date", http.StatusBadRequest)
			return
		}
		start = formatDate(day)
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		day, err := parseDate(raw, s.cfg.Timezone)
		if err != nil {
			http.Error(w, "Invalid end date", http.StatusBadRequest)
			return
		}
		end = formatDate(day)
	}

	records, err := s.store.StepsInRange(start, end)
	if err != nil {
		http.Error(w, "Failed to get steps", http.StatusInternalServerError)
		log.Printf("Error querying steps %s..%s: %v", start, end, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUpsertSteps(w http.ResponseWriter, r *http.Request) {
	var input StepsInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	day, err := parseDate(input.Date, s.cfg.Timezone)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if input.Steps < 0 || input.Steps > maxDailySteps {
		http.Error(w, "Steps must be between 0 and 500000", http.StatusBadRequest)
		return
	}

	err = s.store.UpsertDailySteps(DailyStepRecord{
		Date:  formatDate(day),
		Steps: input.Steps,
		Goal:  s.cfg.DailyGoal,
	})
	if err != nil {
		http.Error(w, "Failed to save steps", http.StatusInternalServerError)
		log.Printf("Error upserting steps: %v", err)
		return
	}

	log.Printf("Upserted steps: %s -> %d", input.Date, input.Steps)
	s.broadcastStats(day.Year())

	writeJSON(w, http.StatusOK, StepsResponse{
		Status: "ok",
		Date:   formatDate(day),
		Steps:  input.Steps,
	})
}

func (s *Server) handleGetActivities(w http.ResponseWriter, r *http.Request) {
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxActivityLimit {
			http.Error(w, "Limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	activities, err := s.store.Activities(year, limit)
	if err != nil {
		http.Error(w, "Failed to get activities", http.StatusInternalServerError)
		log.Printf("Error querying activities: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_distance": int(s.route.TotalMiles),
		"waypoints":      s.route.Waypoints,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"steps_per_mile": s.cfg.StepsPerMile,
		"daily_goal":     s.cfg.DailyGoal,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		http.Error(w, "Fitness source not configured", http.StatusServiceUnavailable)
		return
	}

	var input struct {
		Type  SyncType `json:"type"`
		Start string   `json:"start"`
		End   string   `json:"end"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
	}
	if input.Type == "" {
		input.Type = SyncFull
	}
	switch input.Type {
	case SyncSteps, SyncActivities, SyncFull:
	default:
		http.Error(w, "Invalid sync type", http.StatusBadRequest)
		return
	}

	today := s.cfg.Today()
	start := today.AddDate(0, 0, -defaultSyncWindow)
	end := today
	var err error
	if input.Start != "" {
		if start, err = parseDate(input.Start, s.cfg.Timezone); err != nil {
			http.Error(w, "Invalid start date", http.StatusBadRequest)
			return
		}
	}
	if input.End != "" {
		if end, err = parseDate(input.End, s.cfg.Timezone); err != nil {
			http.Error(w, "Invalid end date", http.StatusBadRequest)
			return
		}
	}
	if end.Before(start) {
		http.Error(w, "End date before start date", http.StatusBadRequest)
		return
	}

	id, err := s.syncer.Start(input.Type, start, end)
	if err == errSyncInProgress {
		http.Error(w, "A sync is already running", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Failed to start sync", http.StatusInternalServerError)
		log.Printf("Error starting sync: %v", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":     id,
		"type":   input.Type,
		"status": SyncRunning,
	})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestSyncRun()
	if err != nil {
		http.Error(w, "Failed to get sync status", http.StatusInternalServerError)
		log.Printf("Error querying sync status: %v", err)
		return
	}
	if run == nil {
		http.Error(w, "No sync has run yet", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// broadcastStats pushes the fresh stats payload for a year to connected
// dashboards after a data change.
func (s *Server) broadcastStats(year int) {
	payload, _, err := s.cache.Get(year, s.cfg.Today())
	if err != nil {
		log.Printf("Error computing stats for broadcast: %v", err)
		return
	}
	s.broadcastUpdate("stats-update", payload)
}
