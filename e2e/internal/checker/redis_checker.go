package checker

import (
	"context"
	"fmt"

	"github.com/saaga0h/sleep-tracker/e2e/internal/scenario"
	"github.com/saaga0h/sleep-tracker/pkg/redis"
)

// CheckRedisExpectation validates a Redis hash expectation
func CheckRedisExpectation(ctx context.Context, client redis.Client, exp scenario.Expectation) (bool, string, interface{}) {
	if exp.RedisKey == "" {
		return false, "redis_key is empty", nil
	}

	hash, err := client.HGetAll(ctx, exp.RedisKey)
	if err != nil {
		return false, fmt.Sprintf("Redis error: %v", err), nil
	}

	if exp.RedisAbsent {
		if len(hash) > 0 {
			return false, fmt.Sprintf("key %q still exists", exp.RedisKey), hash
		}
		return true, "", nil
	}

	value, ok := hash[exp.RedisField]
	if !ok {
		return false, fmt.Sprintf("key %q field %q not found in Redis", exp.RedisKey, exp.RedisField), nil
	}

	// Redis hands back strings, so numeric expectations need a matcher (>=3) or exact text
	if matches, reason := MatchesExpectation(value, exp.Expected); !matches {
		return false, reason, value
	}

	return true, "", value
}
