package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"outreach_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// uniqueWindow suppresses re-enqueueing a trigger that is already queued.
const uniqueWindow = time.Minute

type Client struct {
	client *asynq.Client
	queue  string
}

// JobEnqueuer is the trigger surface the HTTP jobs endpoints use.
type JobEnqueuer interface {
	EnqueueOutreachCycle(ctx context.Context, triggeredBy string) error
	EnqueueConnectionPoll(ctx context.Context) error
	EnqueueSendApproved(ctx context.Context) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueOutreachCycle(ctx context.Context, triggeredBy string) error {
	task, err := NewOutreachCycleTask(OutreachCyclePayload{TriggeredBy: triggeredBy})
	if err != nil {
		return err
	}
	// A cycle already waiting in the queue makes a second one redundant.
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(uniqueWindow))
	return c.ignoreDuplicate(err)
}

func (c *Client) EnqueueConnectionPoll(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewConnectionPollTask(), asynq.Queue(c.queue), asynq.Unique(uniqueWindow))
	return c.ignoreDuplicate(err)
}

func (c *Client) EnqueueSendApproved(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewSendApprovedTask(), asynq.Queue(c.queue), asynq.Unique(uniqueWindow))
	return c.ignoreDuplicate(err)
}

func (c *Client) ignoreDuplicate(err error) error {
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
