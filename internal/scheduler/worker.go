package scheduler

import (
	"context"
	"fmt"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ConnectionPoller reconciles provider-side connection state.
type ConnectionPoller interface {
	Poll(ctx context.Context) error
}

// ApprovedSender dispatches approved drafts.
type ApprovedSender interface {
	SendApproved(ctx context.Context) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	cycle  *Cycle
	poller ConnectionPoller
	sender ApprovedSender
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, cycle *Cycle, poller ConnectionPoller, sender ApprovedSender, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		cycle:  cycle,
		poller: poller,
		sender: sender,
		log:    log,
	}

	mux.HandleFunc(TaskOutreachCycle, w.handleOutreachCycle)
	mux.HandleFunc(TaskConnectionPoll, w.handleConnectionPoll)
	mux.HandleFunc(TaskSendApproved, w.handleSendApproved)

	return w, nil
}

func (w *Worker) handleOutreachCycle(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutreachCyclePayload(task)
	if err != nil {
		return err
	}

	w.log.Info("outreach cycle starting", "triggered_by", payload.TriggeredBy)
	return w.cycle.Run(ctx)
}

func (w *Worker) handleConnectionPoll(ctx context.Context, _ *asynq.Task) error {
	return w.poller.Poll(ctx)
}

func (w *Worker) handleSendApproved(ctx context.Context, _ *asynq.Task) error {
	return w.sender.SendApproved(ctx)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
