package scheduler

import (
	"context"
	"fmt"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	cycleInterval = "@every 10m"
	pollInterval  = "@every 30m"
	sendInterval  = "@every 5m"
)

// Periodic registers the recurring outreach triggers with asynq's
// scheduler. It runs alongside the worker in the scheduler binary.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	scheduler := asynq.NewScheduler(opt, nil)

	cycleTask, err := NewOutreachCycleTask(OutreachCyclePayload{TriggeredBy: "periodic"})
	if err != nil {
		return nil, err
	}

	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{cycleInterval, cycleTask},
		{pollInterval, NewConnectionPollTask()},
		{sendInterval, NewSendApprovedTask()},
	}
	for _, entry := range entries {
		if _, err := scheduler.Register(entry.spec, entry.task, asynq.Queue(queue)); err != nil {
			return nil, err
		}
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run starts the periodic scheduler and blocks until the context ends.
func (p *Periodic) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
