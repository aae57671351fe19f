package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bunn/bunn/internal/model"
)

const (
	// usageKeyPrefix is the Redis key prefix for daily token counters.
	usageKeyPrefix = "token:"
	// usageTTL is how long counters outlive their day before expiring.
	// Refreshed on every increment.
	usageTTL = 48 * time.Hour

	// fieldInput and fieldOutput are the hash fields inside a usage key.
	fieldInput  = "input"
	fieldOutput = "output"
)

// usageDayKey builds the per-(user, day) counter key.
func usageDayKey(userID, day string) string {
	return usageKeyPrefix + userID + ":" + day
}

// usageModelKey builds the per-(user, day, model) counter key.
func usageModelKey(userID, day, model string) string {
	return usageKeyPrefix + userID + ":" + day + ":" + model
}

// IncrementUsage adds token counts to the user's daily counters: the day
// total hash and the per-model hash, input and output fields each. All four
// increments plus the TTL refreshes go through one pipeline so a concurrent
// reader never observes a partial update. Counters only ever grow; there is
// no decrement path.
func (c *Cache) IncrementUsage(ctx context.Context, userID, modelName string, input, output int64, day string) error {
	dayKey := usageDayKey(userID, day)
	modelKey := usageModelKey(userID, day, modelName)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, dayKey, fieldInput, input)
		pipe.HIncrBy(ctx, dayKey, fieldOutput, output)
		pipe.HIncrBy(ctx, modelKey, fieldInput, input)
		pipe.HIncrBy(ctx, modelKey, fieldOutput, output)
		pipe.Expire(ctx, dayKey, usageTTL)
		pipe.Expire(ctx, modelKey, usageTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

// DailyUsage reads the user's counters for one day. Missing keys read as
// zero usage.
func (c *Cache) DailyUsage(ctx context.Context, userID, day string) (model.DailyUsage, error) {
	vals, err := c.client.HMGet(ctx, usageDayKey(userID, day), fieldInput, fieldOutput).Result()
	if err != nil {
		return model.DailyUsage{}, fmt.Errorf("read usage: %w", err)
	}

	return model.DailyUsage{
		InputTokens:  parseCounter(vals[0]),
		OutputTokens: parseCounter(vals[1]),
	}, nil
}

// ModelUsage reads the user's counters for one day and model.
func (c *Cache) ModelUsage(ctx context.Context, userID, day, modelName string) (model.DailyUsage, error) {
	vals, err := c.client.HMGet(ctx, usageModelKey(userID, day, modelName), fieldInput, fieldOutput).Result()
	if err != nil {
		return model.DailyUsage{}, fmt.Errorf("read model usage: %w", err)
	}

	return model.DailyUsage{
		InputTokens:  parseCounter(vals[0]),
		OutputTokens: parseCounter(vals[1]),
	}, nil
}

// parseCounter converts an HMGET result value to an int64 count.
// Absent fields (nil) read as 0.
func parseCounter(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < '0' || ch > '9' {
			return 0
		}
		n = n*10 + int64(ch-'0')
	}
	return n
}
