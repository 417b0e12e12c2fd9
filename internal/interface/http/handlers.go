package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":           "Createathon Challenge Hub API",
		"version":        "v1",
		"challenge_days": s.deps.Engine.ChallengeLength(),
		"endpoints": map[string]string{
			"health":       "/health",
			"leaderboard":  "/api/v1/leaderboard",
			"user":         "/api/v1/users/{id}",
			"evaluation":   "/api/v1/users/{id}/evaluation",
			"jobs":         "/api/v1/jobs",
			"dead_letters": "/api/v1/reminders/dead-letters",
			"metrics":      "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// leaderboardRow is one ranked participant.
type leaderboardRow struct {
	Rank            int    `json:"rank"`
	Medal           string `json:"medal,omitempty"`
	UserID          int64  `json:"user_id"`
	DisplayName     string `json:"display_name"`
	EngagementScore int64  `json:"engagement_score"`
	TotalDays       int    `json:"total_days"`
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, s.config.LeaderboardLimit)
	if !ok {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return
	}

	entries, err := s.deps.Engine.OnLeaderboardRequest(r.Context())
	if err != nil {
		s.logger.Error("failed to build leaderboard", "error", err)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Failed to get leaderboard")
		return
	}

	top := challenge.Top(entries, limit)
	rows := make([]leaderboardRow, 0, len(top))
	for _, e := range top {
		rows = append(rows, leaderboardRow{
			Rank:            e.Rank.Int(),
			Medal:           e.Rank.Medal(),
			UserID:          e.UserID.Int64(),
			DisplayName:     e.DisplayName,
			EngagementScore: e.EngagementScore,
			TotalDays:       e.TotalDays,
		})
	}

	writeJSONWithMeta(w, r, http.StatusOK, rows, &ResponseMeta{
		TotalCount: len(entries),
		Limit:      limit,
		HasMore:    len(entries) > len(top),
	})
}

// parseLimit reads ?limit, clamped to maxLeaderboardLimit.
func parseLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxLeaderboardLimit), true
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

type dayResponse struct {
	Day         int               `json:"day"`
	Metrics     challenge.Metrics `json:"metrics"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

type userResponse struct {
	ID           int64                    `json:"id"`
	DisplayName  string                   `json:"display_name"`
	SocialHandle string                   `json:"social_handle,omitempty"`
	ViralContent string                   `json:"viral_content,omitempty"`
	Eligible     bool                     `json:"eligible"`
	RegisteredAt time.Time                `json:"registered_at"`
	State        challenge.ChallengeState `json:"state"`
	Engagement   int64                    `json:"engagement_score"`
	Days         []dayResponse            `json:"days"`
}

type evaluationResponse struct {
	UserID  int64                    `json:"user_id"`
	State   challenge.ChallengeState `json:"state"`
	Verdict challenge.Verdict        `json:"verdict"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	user, state, err := s.deps.Engine.UserState(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	days := make([]dayResponse, 0, len(user.Progress))
	for _, d := range user.Days() {
		entry := user.Progress[d]
		days = append(days, dayResponse{Day: d, Metrics: entry.Metrics, SubmittedAt: entry.SubmittedAt})
	}

	writeJSON(w, r, http.StatusOK, userResponse{
		ID:           user.ID.Int64(),
		DisplayName:  user.DisplayName,
		SocialHandle: user.SocialHandle,
		ViralContent: user.ViralContent,
		Eligible:     user.Eligible,
		RegisteredAt: user.RegisteredAt,
		State:        state,
		Engagement:   state.Engagement(),
		Days:         days,
	})
}

// handleGetEvaluation computes a verdict without recording eligibility.
func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	ev, err := s.deps.Engine.Evaluate(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, evaluationResponse{
		UserID:  ev.User.ID.Int64(),
		State:   ev.State,
		Verdict: ev.Verdict,
	})
}

func (s *Server) userIDParam(w http.ResponseWriter, r *http.Request) (challenge.UserID, bool) {
	id, err := challenge.ParseUserID(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_user_id", "User ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, challenge.ErrUserNotFound) {
		writeJSONError(w, r, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	s.logger.Error("engine request failed", "path", r.URL.Path, "error", err)
	writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKGROUND JOBS
// ══════════════════════════════════════════════════════════════════════════════

type jobRunResponse struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

type jobResponse struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	State       string          `json:"state"`
	Schedule    string          `json:"schedule"`
	LastRun     *time.Time      `json:"last_run,omitempty"`
	NextRun     *time.Time      `json:"next_run,omitempty"`
	RunCount    int64           `json:"run_count"`
	FailCount   int64           `json:"fail_count"`
	SkipCount   int64           `json:"skip_count"`
	LastResult  *jobRunResponse `json:"last_result,omitempty"`
}

type jobsResponse struct {
	Running bool             `json:"running"`
	Jobs    []jobResponse    `json:"jobs"`
	History []jobRunResponse `json:"history"`
}

// handleListJobs lists registered jobs and the most recent runs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, s.config.LeaderboardLimit)
	if !ok {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return
	}

	sched := s.deps.Scheduler
	infos := sched.ListJobs()
	jobs := make([]jobResponse, 0, len(infos))
	for _, info := range infos {
		jobs = append(jobs, toJobResponse(info))
	}

	results := sched.GetHistory(limit)
	history := make([]jobRunResponse, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		history = append(history, toJobRunResponse(results[i]))
	}

	writeJSON(w, r, http.StatusOK, jobsResponse{
		Running: sched.IsRunning(),
		Jobs:    jobs,
		History: history,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Scheduler.GetJobInfo(mux.Vars(r)["name"])
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeJSONError(w, r, http.StatusNotFound, "job_not_found", "Job not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to read job", "error", err)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	writeJSON(w, r, http.StatusOK, toJobResponse(info))
}

func toJobResponse(info scheduler.JobInfo) jobResponse {
	resp := jobResponse{
		Name:        info.Name,
		Description: info.Description,
		State:       info.State,
		Schedule:    info.Schedule,
		RunCount:    info.RunCount,
		FailCount:   info.FailCount,
		SkipCount:   info.SkipCount,
	}
	if !info.LastRun.IsZero() {
		resp.LastRun = &info.LastRun
	}
	if !info.NextRun.IsZero() {
		resp.NextRun = &info.NextRun
	}
	if info.LastResult != nil {
		last := toJobRunResponse(*info.LastResult)
		resp.LastResult = &last
	}
	return resp
}

func toJobRunResponse(res scheduler.JobResult) jobRunResponse {
	out := jobRunResponse{
		Job:        res.JobName,
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
		Success:    res.Success,
	}
	if res.Error != nil {
		out.Error = res.Error.Error()
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// UNDELIVERED REMINDERS
// ══════════════════════════════════════════════════════════════════════════════

type deadLetterResponse struct {
	ID       string    `json:"id"`
	UserID   int64     `json:"user_id"`
	CycleID  string    `json:"cycle_id"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// handleListDeadLetters lists reminders that could not be delivered,
// newest first, so an operator can follow up by hand.
func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, s.config.LeaderboardLimit)
	if !ok {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return
	}

	entries := s.deps.Dispatcher.DeadLetterQueue().Entries()
	rows := make([]deadLetterResponse, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(rows) < limit; i-- {
		e := entries[i]
		row := deadLetterResponse{
			ID:       e.ID,
			UserID:   e.Event.UserID.Int64(),
			CycleID:  e.Event.CycleID,
			FailedAt: e.FailedAt,
		}
		if e.Error != nil {
			row.Error = e.Error.Error()
		}
		rows = append(rows, row)
	}

	writeJSONWithMeta(w, r, http.StatusOK, rows, &ResponseMeta{
		TotalCount: len(entries),
		Limit:      limit,
		HasMore:    len(entries) > len(rows),
	})
}
