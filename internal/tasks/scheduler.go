package tasks

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Scheduler enqueues the daily generation task on a cron schedule. It
// is an explicit object constructed at startup and stopped on shutdown;
// nothing here is process-global.
type Scheduler struct {
	inner *asynq.Scheduler
}

// NewScheduler registers TypeGenerate under cronSpec (standard five
// field cron, e.g. "0 4 * * *").
func NewScheduler(redisOpt asynq.RedisClientOpt, cronSpec string, logger zerolog.Logger) (*Scheduler, error) {
	inner := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("enqueue generation task failed")
			}
		},
	})
	task, err := NewGenerateTask("")
	if err != nil {
		return nil, err
	}
	if _, err := inner.Register(cronSpec, task, asynq.MaxRetry(3)); err != nil {
		return nil, fmt.Errorf("tasks: register cron %q: %w", cronSpec, err)
	}
	return &Scheduler{inner: inner}, nil
}

// Start launches the cron loop in the background.
func (s *Scheduler) Start() error {
	if s == nil || s.inner == nil {
		return fmt.Errorf("tasks: scheduler not configured")
	}
	return s.inner.Start()
}

// Stop shuts the cron loop down and waits for in-flight enqueues.
func (s *Scheduler) Stop() {
	if s == nil || s.inner == nil {
		return
	}
	s.inner.Shutdown()
}
