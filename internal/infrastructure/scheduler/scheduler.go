// Package scheduler drives periodic background work such as challenge
// reminders. Each registered job cycles Idle -> Firing -> Idle; a tick that
// finds a job still Firing skips it, so cycles of one job never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes one cycle of the job.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobState is the per-job firing state.
type JobState int

const (
	StateIdle JobState = iota
	StateFiring
)

// String returns the state name.
func (s JobState) String() string {
	if s == StateFiring {
		return "firing"
	}
	return "idle"
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	logger         *slog.Logger
	timezone       *time.Location
	tick           time.Duration
	drainTimeout   time.Duration
	maxHistory     int
	now            func() time.Time
	runImmediately bool

	jobs      map[string]*scheduledJob
	running   bool
	loopCtx   context.Context
	stopLoop  context.CancelFunc
	jobCtx    context.Context
	cancelJob context.CancelFunc
	loopWG    sync.WaitGroup
	jobWG     sync.WaitGroup
	startedAt time.Time

	metrics    *SchedulerMetrics
	lastRuns   map[string]*JobResult
	runHistory []JobResult
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	state     JobState
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
	skipCount int64
}

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location

	// TickInterval is how often due jobs are checked (default: 1s).
	TickInterval time.Duration

	// DrainTimeout bounds how long Stop waits for in-flight jobs before
	// cancelling their context (default: 30s).
	DrainTimeout time.Duration

	// MaxHistorySize is the maximum number of job results to keep.
	MaxHistorySize int

	// RunOnStart fires every job on the first tick.
	RunOnStart bool

	// Clock overrides time.Now.
	Clock func() time.Time
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Timezone:       time.UTC,
		TickInterval:   time.Second,
		DrainTimeout:   30 * time.Second,
		MaxHistorySize: 1000,
	}
}

// NewScheduler creates a new Scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	if config.Timezone == nil {
		config.Timezone = def.Timezone
	}
	if config.TickInterval <= 0 {
		config.TickInterval = def.TickInterval
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = def.DrainTimeout
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = def.MaxHistorySize
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Scheduler{
		logger:         config.Logger.With("component", "scheduler"),
		timezone:       config.Timezone,
		tick:           config.TickInterval,
		drainTimeout:   config.DrainTimeout,
		maxHistory:     config.MaxHistorySize,
		now:            config.Clock,
		runImmediately: config.RunOnStart,
		jobs:           make(map[string]*scheduledJob),
		metrics:        NewSchedulerMetrics(),
		lastRuns:       make(map[string]*JobResult),
		runHistory:     make([]JobResult, 0, 64),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(s.now().In(s.timezone)),
	}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", sj.nextRun.Format(time.RFC3339),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop. Jobs run with a context derived from ctx
// that outlives Stop by at most the drain timeout.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}

	s.loopCtx, s.stopLoop = context.WithCancel(ctx)
	s.jobCtx, s.cancelJob = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	s.startedAt = s.now()

	if s.runImmediately {
		now := s.now().In(s.timezone)
		for _, sj := range s.jobs {
			sj.nextRun = now
		}
	}
	jobsCount := len(s.jobs)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", jobsCount, "tick", s.tick.String())

	s.loopWG.Add(1)
	go s.runLoop()
	return nil
}

// Stop stops accepting new ticks and waits for in-flight jobs to drain.
// Jobs still running after the drain timeout see their context cancelled.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.stopLoop()
	s.mu.Unlock()

	s.loopWG.Wait()

	drained := make(chan struct{})
	go func() {
		s.jobWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(s.drainTimeout):
		s.logger.Warn("drain timeout exceeded, cancelling jobs", "timeout", s.drainTimeout.String())
		s.cancelJob()
		<-drained
	}
	s.cancelJob()

	s.logger.Info("scheduler stopped", "uptime", s.now().Sub(s.startedAt).String())
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) runLoop() {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.loopCtx.Done():
			return
		case <-ticker.C:
			s.checkAndRunJobs()
		}
	}
}

// checkAndRunJobs claims due Idle jobs under the lock and runs them.
func (s *Scheduler) checkAndRunJobs() {
	now := s.now().In(s.timezone)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	due := make([]*scheduledJob, 0, len(s.jobs))
	for name, sj := range s.jobs {
		if sj.nextRun.IsZero() || now.Before(sj.nextRun) {
			continue
		}
		if sj.state == StateFiring {
			sj.skipCount++
			sj.nextRun = sj.schedule.Next(now)
			s.metrics.RecordSkip()
			s.logger.Warn("job still firing, tick skipped", "job", name)
			continue
		}
		sj.state = StateFiring
		sj.lastRun = now
		sj.nextRun = sj.schedule.Next(now)
		sj.runCount++
		due = append(due, sj)
	}
	// Add under the lock so Stop cannot observe a zero counter mid-claim.
	s.jobWG.Add(len(due))
	s.mu.Unlock()

	for _, sj := range due {
		go func(sj *scheduledJob) {
			defer s.jobWG.Done()
			s.execute(s.jobCtx, sj)
		}(sj)
	}
}

// execute runs one cycle of a claimed job and returns it to Idle.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) {
	name := sj.job.Name()
	startedAt := s.now()
	s.logger.Info("job started", "job", name)

	err := s.safeRun(ctx, sj.job)
	completedAt := s.now()

	result := JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
	}
	s.metrics.RecordExecution(name, result.Duration, err == nil)

	s.mu.Lock()
	sj.state = StateIdle
	if err != nil {
		sj.failCount++
	}
	s.lastRuns[name] = &result
	s.addToHistory(result)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", err)
	} else {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String())
	}
}

// safeRun converts a panicking job into an error so the loop survives.
func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) addToHistory(result JobResult) {
	s.runHistory = append(s.runHistory, result)
	if len(s.runHistory) > s.maxHistory {
		s.runHistory = s.runHistory[len(s.runHistory)-s.maxHistory:]
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	Schedule    string     `json:"schedule"`
	LastRun     time.Time  `json:"last_run"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	SkipCount   int64      `json:"skip_count"`
	LastResult  *JobResult `json:"-"`
}

// ListJobs returns information about all registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, s.infoLocked(name, sj))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetJobInfo returns information about a specific job.
func (s *Scheduler) GetJobInfo(jobName string) (JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sj, exists := s.jobs[jobName]
	if !exists {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	return s.infoLocked(jobName, sj), nil
}

func (s *Scheduler) infoLocked(name string, sj *scheduledJob) JobInfo {
	return JobInfo{
		Name:        name,
		Description: sj.job.Description(),
		State:       sj.state.String(),
		Schedule:    sj.schedule.String(),
		LastRun:     sj.lastRun,
		NextRun:     sj.nextRun,
		RunCount:    sj.runCount,
		FailCount:   sj.failCount,
		SkipCount:   sj.skipCount,
		LastResult:  s.lastRuns[name],
	}
}

// GetHistory returns up to limit most recent results.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.runHistory) {
		limit = len(s.runHistory)
	}
	out := make([]JobResult, limit)
	copy(out, s.runHistory[len(s.runHistory)-limit:])
	return out
}

// Metrics returns scheduler metrics.
func (s *Scheduler) Metrics() *SchedulerMetrics {
	return s.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerMetrics tracks scheduler performance metrics.
type SchedulerMetrics struct {
	mu sync.RWMutex

	totalExecutions int64
	totalSuccesses  int64
	totalFailures   int64
	totalSkipped    int64
	totalDuration   time.Duration
	lastExecution   time.Time
}

// NewSchedulerMetrics creates a new metrics tracker.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{}
}

// RecordExecution records a job execution.
func (m *SchedulerMetrics) RecordExecution(_ string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalExecutions++
	m.totalDuration += duration
	m.lastExecution = time.Now()
	if success {
		m.totalSuccesses++
	} else {
		m.totalFailures++
	}
}

// RecordSkip records a tick skipped because the job was still firing.
func (m *SchedulerMetrics) RecordSkip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSkipped++
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.totalExecutions,
		TotalSuccesses:  m.totalSuccesses,
		TotalFailures:   m.totalFailures,
		TotalSkipped:    m.totalSkipped,
		LastExecution:   m.lastExecution,
	}
	if m.totalExecutions > 0 {
		snap.AverageDuration = m.totalDuration / time.Duration(m.totalExecutions)
		snap.SuccessRate = float64(m.totalSuccesses) / float64(m.totalExecutions)
	}
	return snap
}

// MetricsSnapshot is a point-in-time snapshot of scheduler metrics.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	TotalSkipped    int64
	SuccessRate     float64
	AverageDuration time.Duration
	LastExecution   time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobPanicked             = errors.New("job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
