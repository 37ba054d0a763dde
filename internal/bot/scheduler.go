package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/relaybot/internal/bot/tasks"
	"github.com/edgard/relaybot/internal/config"
)

// Scheduler runs the configured maintenance tasks on their cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler for the tasks in taskMap. Extra gocron
// options (a fake clock in tests) are passed through.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	opts = append([]gocron.SchedulerOption{
		gocron.WithLogger(log),
		gocron.WithLocation(time.UTC),
	}, opts...)
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules every enabled task and starts the scheduler. Tasks that are
// unknown or fail to parse are logged and skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduled := 0
	if s.cfg != nil {
		names := make([]string, 0, len(s.cfg.Tasks))
		for name := range s.cfg.Tasks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if s.schedule(name, s.cfg.Tasks[name]) {
				scheduled++
			}
		}
	}
	if scheduled == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduled)
	return nil
}

func (s *Scheduler) schedule(name string, taskCfg config.TaskConfig) bool {
	if !taskCfg.Enabled {
		s.logger.Info("Skipping disabled task", "task_name", name)
		return false
	}
	taskFunc, ok := s.taskMap[name]
	if !ok {
		s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", name)
		return false
	}

	_, err := s.scheduler.NewJob(
		gocron.CronJob(taskCfg.Schedule, true),
		gocron.NewTask(s.run, name, taskFunc),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.logger.Error("Failed to schedule task", "task_name", name, "schedule", taskCfg.Schedule, "error", err)
		return false
	}
	s.logger.Info("Scheduled task", "task_name", name, "schedule", taskCfg.Schedule)
	return true
}

// run wraps one task execution with timing and error logging. gocron injects
// ctx, which is cancelled on shutdown.
func (s *Scheduler) run(ctx context.Context, name string, task tasks.ScheduledTaskFunc) {
	s.logger.DebugContext(ctx, "Running scheduled task", "task_name", name)
	start := time.Now()
	if err := task(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", name, "error", err)
	}
	s.logger.DebugContext(ctx, "Finished scheduled task", "task_name", name, "duration", time.Since(start))
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	sort.Strings(names)
	return names
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}
	s.running = false
	return err
}
