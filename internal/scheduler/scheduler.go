// Package scheduler drives periodic ingestion runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"

	"github.com/mx-pai/rss-recommendation-platform/internal/metrics"
	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

const (
	FetchJobID   = "fetch_rss_sources"
	FetchJobName = "Fetch active sources"
)

// Run triggers, used as the trigger label on logs and metrics
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Errors
var (
	ErrJobNotFound = errors.New("job not found")
	ErrNotRunning  = errors.New("scheduler not running")
)

// Runner is the batch the scheduler drives
type Runner interface {
	FetchAllActiveSources(ctx context.Context) models.BatchResult
}

// Config holds scheduler settings
type Config struct {
	Interval     time.Duration `json:"interval" mapstructure:"interval"`          // time between periodic runs
	MisfireGrace time.Duration `json:"misfireGrace" mapstructure:"misfire_grace"` // how late a tick may start
}

// DefaultConfig runs hourly with a five minute grace window
func DefaultConfig() *Config {
	return &Config{
		Interval:     time.Hour,
		MisfireGrace: 5 * time.Minute,
	}
}

// JobStatus describes the registered job
type JobStatus struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run"`
	Trigger string     `json:"trigger"`
	Paused  bool       `json:"paused"`
}

// Status is a read-only snapshot of the scheduler
type Status struct {
	Running  bool        `json:"running"`
	Jobs     []JobStatus `json:"jobs"`
	JobCount int         `json:"job_count"`
}

// Scheduler runs the fetch batch on a fixed interval. The periodic job never
// overlaps itself; a tick that arrives while a run is in flight is skipped.
type Scheduler struct {
	config  *Config
	runner  Runner
	metrics *metrics.Metrics
	logger  logr.Logger
	now     func() time.Time

	mu        sync.Mutex
	cron      *cron.Cron
	entryID   cron.EntryID
	running   bool
	paused    bool
	triggered sync.WaitGroup
}

// NewScheduler creates a stopped scheduler
func NewScheduler(config *Config, runner Runner, m *metrics.Metrics, logger logr.Logger) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		config:  config,
		runner:  runner,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the periodic job and starts ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info("Scheduler already running")
		return nil
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("invalid scheduler interval %s", s.config.Interval)
	}

	cronLogger := s.logger.WithName("cron")
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	s.entryID = c.Schedule(cron.Every(s.config.Interval), cron.FuncJob(s.runScheduled))
	c.Start()

	s.cron = c
	s.running = true
	s.paused = false
	s.logger.Info("Scheduler started", "job", FetchJobID, "interval", s.config.Interval.String(), "misfireGrace", s.config.MisfireGrace.String())
	return nil
}

// Stop stops ticking and waits for in-flight runs, periodic or triggered, to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Info("Scheduler not running")
		return
	}
	c := s.cron
	s.cron = nil
	s.entryID = 0
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.triggered.Wait()
	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether the scheduler is started
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PauseJob stops the job from firing while keeping its schedule.
func (s *Scheduler) PauseJob(id string) error {
	return s.setPaused(id, true)
}

// ResumeJob lets a paused job fire again.
func (s *Scheduler) ResumeJob(id string) error {
	return s.setPaused(id, false)
}

func (s *Scheduler) setPaused(id string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || id != FetchJobID {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.paused = paused
	s.logger.Info("Job state changed", "job", id, "paused", paused)
	return nil
}

// TriggerNow starts an immediate run without touching the periodic cadence.
// Triggered runs are not covered by the periodic job's overlap guard; callers
// should avoid triggering while a run is in flight.
func (s *Scheduler) TriggerNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	s.triggered.Add(1)
	go func() {
		defer s.triggered.Done()
		s.run(TriggerManual)
	}()
	return nil
}

// Status reports the running flag and, while running, the registered job.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running, paused, c, id := s.running, s.paused, s.cron, s.entryID
	s.mu.Unlock()

	status := Status{Running: running, Jobs: []JobStatus{}}
	if !running {
		return status
	}

	job := JobStatus{
		ID:      FetchJobID,
		Name:    FetchJobName,
		Trigger: fmt.Sprintf("interval[%s]", s.config.Interval),
		Paused:  paused,
	}
	if entry := c.Entry(id); entry.Valid() && !paused && !entry.Next.IsZero() {
		next := entry.Next
		job.NextRun = &next
	}
	status.Jobs = append(status.Jobs, job)
	status.JobCount = len(status.Jobs)
	return status
}

// runScheduled is the periodic job body.
func (s *Scheduler) runScheduled() {
	s.mu.Lock()
	paused, c, id := s.paused, s.cron, s.entryID
	s.mu.Unlock()

	if paused {
		s.logger.Info("Job paused, skipping tick", "job", FetchJobID)
		s.metrics.ObserveSchedulerRun(TriggerSchedule, "skipped", 0)
		return
	}
	if c != nil {
		if entry := c.Entry(id); entry.Valid() && misfired(entry.Prev, s.now(), s.config.MisfireGrace) {
			s.logger.Info("Tick missed its grace window, dropping", "job", FetchJobID, "scheduled", entry.Prev, "grace", s.config.MisfireGrace.String())
			s.metrics.ObserveSchedulerRun(TriggerSchedule, "misfired", 0)
			return
		}
	}
	s.run(TriggerSchedule)
}

func (s *Scheduler) run(trigger string) {
	start := time.Now()
	log := s.logger.WithValues("job", FetchJobID, "trigger", trigger)

	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("panic: %v", r), "Fetch run panicked")
			s.metrics.ObserveSchedulerRun(trigger, "failure", time.Since(start))
		}
	}()

	log.Info("Fetch run started")
	result := s.runner.FetchAllActiveSources(context.Background())
	elapsed := time.Since(start)

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		log.Error(errors.New(result.Error), "Fetch run failed", "message", result.Message)
	}
	s.metrics.ObserveSchedulerRun(trigger, outcome, elapsed)
	log.Info("Fetch run finished", "runID", result.RunID, "message", result.Message, "duration", elapsed.String())
}

// misfired reports whether a tick scheduled for scheduled started too late.
// A zero scheduled time or grace never misfires.
func misfired(scheduled, now time.Time, grace time.Duration) bool {
	if scheduled.IsZero() || grace <= 0 {
		return false
	}
	return now.Sub(scheduled) > grace
}
