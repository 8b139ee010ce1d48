package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/happybot/internal/bot/tasks"
	"github.com/edgard/happybot/internal/config"
)

const checkinTag = "checkin"

// Scheduler runs the configured maintenance tasks and the per-chat weekly
// check-in jobs on top of gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler. Tasks in taskMap are scheduled on Start
// according to cfg; tasks without configuration are ignored.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// wrap adds start/finish logging around a task.
func (s *Scheduler) wrap(taskFunc tasks.ScheduledTaskFunc) func(ctx context.Context, name string) {
	return func(ctx context.Context, name string) {
		s.logger.Info("Running scheduled task", "task_name", name)
		startTime := time.Now()
		if err := taskFunc(ctx); err != nil {
			s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
		}
		s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
	}
}

// Start schedules all enabled tasks and starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduledCount := 0
	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	} else {
		for taskName, taskConfig := range s.cfg.Tasks {
			if !taskConfig.Enabled {
				s.logger.Info("Skipping disabled task", "task_name", taskName)
				continue
			}

			taskFunc, exists := s.taskMap[taskName]
			if !exists {
				s.logger.Warn("Scheduled task configured but not registered, skipping", "task_name", taskName)
				continue
			}

			if taskConfig.Schedule == "" {
				s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
				continue
			}

			_, err := s.scheduler.NewJob(
				gocron.CronJob(taskConfig.Schedule, true),
				gocron.NewTask(s.wrap(taskFunc), taskName),
				gocron.WithName(taskName),
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
			)
			if err != nil {
				s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
				continue
			}

			s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
			scheduledCount++
		}
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduledCount)

	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
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

func checkinJobName(chatID int64) string {
	return checkinTag + ":" + strconv.FormatInt(chatID, 10)
}

// ScheduleCheckin runs send on schedule for chatID, replacing any check-in
// already scheduled for that chat. Jobs may be added before Start.
func (s *Scheduler) ScheduleCheckin(chatID int64, schedule string, send tasks.ScheduledTaskFunc) error {
	name := checkinJobName(chatID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.RemoveByTags(name)

	_, err := s.scheduler.NewJob(
		gocron.CronJob(schedule, true),
		gocron.NewTask(s.wrap(send), name),
		gocron.WithName(name),
		gocron.WithTags(checkinTag, name),
	)
	if err != nil {
		return fmt.Errorf("schedule check-in for chat %d: %w", chatID, err)
	}

	s.logger.Info("Scheduled weekly check-in", "chat_id", chatID, "schedule", schedule)
	return nil
}

// CheckinJobs returns the names of the scheduled check-in jobs.
func (s *Scheduler) CheckinJobs() []string {
	var names []string
	for _, j := range s.scheduler.Jobs() {
		if slices.Contains(j.Tags(), checkinTag) {
			names = append(names, j.Name())
		}
	}
	slices.Sort(names)
	return names
}

// jobNames returns the names of all scheduled jobs.
func (s *Scheduler) jobNames() []string {
	var names []string
	for _, j := range s.scheduler.Jobs() {
		names = append(names, j.Name())
	}
	slices.Sort(names)
	return names
}
