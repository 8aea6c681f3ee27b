package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// Janitor task names handled by the worker's maintenance handlers.
const (
	TaskResetStuck  = "reset_stuck_jobs"
	TaskCleanupOld  = "cleanup_old_jobs"
	TaskCheckHealth = "check_job_health"
)

// Service is the control-plane janitor scheduler. It only produces: on each
// cron tick it enqueues a maintenance task, and the worker executes it. The
// task handlers are idempotent so overlapping ticks after a slow sweep are
// harmless.
type Service struct {
	cron   *cron.Cron
	broker interfaces.Broker
	config *common.Config
	logger arbor.ILogger
}

func NewService(logger arbor.ILogger, config *common.Config, broker interfaces.Broker) *Service {
	return &Service{
		cron:   cron.New(),
		broker: broker,
		config: config,
		logger: logger,
	}
}

// Start registers the janitor entries and starts the cron loop.
func (s *Service) Start() error {
	entries := []struct {
		spec string
		task string
	}{
		{s.config.Scheduler.ResetStuckInterval, TaskResetStuck},
		{s.config.Scheduler.CleanupInterval, TaskCleanupOld},
		{s.config.Scheduler.HealthInterval, TaskCheckHealth},
	}

	for _, entry := range entries {
		task := entry.task
		if _, err := s.cron.AddFunc(entry.spec, func() { s.enqueue(task) }); err != nil {
			return fmt.Errorf("failed to schedule %s (%s): %w", task, entry.spec, err)
		}
		s.logger.Info().Str("task", task).Str("schedule", entry.spec).Msg("Janitor task scheduled")
	}

	s.cron.Start()
	return nil
}

func (s *Service) enqueue(task string) {
	payload := interfaces.TaskPayload{TaskName: task}
	if err := s.broker.Enqueue(context.Background(), interfaces.QueueMaintenance, payload, 2, 0); err != nil {
		s.logger.Warn().Str("task", task).Err(err).Msg("Failed to enqueue janitor task")
	}
}

// Stop halts the cron loop, waiting for a running tick to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
