package executor

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Quota enforces the per-account daily send limit in Redis. The counter
// keys on the UTC day so every account resets at the same wall-clock
// moment regardless of which worker increments it.
type Quota struct {
	client *redis.Client
	limit  int
	log    *logger.Logger
	now    func() time.Time
}

func NewQuota(client *redis.Client, cfg config.OutreachConfig, log *logger.Logger) *Quota {
	return &Quota{
		client: client,
		limit:  cfg.GetDailySendLimit(),
		log:    log,
		now:    time.Now,
	}
}

// NewRedisClient builds the Redis client the quota store uses.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// Allow consumes one send from the account's daily budget. INCR first,
// compare after: two workers racing on the last slot cannot both pass.
func (q *Quota) Allow(ctx context.Context, accountID string) (bool, error) {
	now := q.now().UTC()
	key := fmt.Sprintf("outreach:quota:%s:%s", accountID, now.Format("2006-01-02"))

	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		if err := q.client.ExpireAt(ctx, key, midnight).Err(); err != nil {
			return false, err
		}
	}

	if count > int64(q.limit) {
		q.log.QuotaExceeded(accountID, q.limit)
		return false, nil
	}
	return true, nil
}
