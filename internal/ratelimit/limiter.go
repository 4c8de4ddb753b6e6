// Package ratelimit throttles HTTP traffic per tenant and client IP
// using a Redis-backed sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rate is a request budget over a window, e.g. 300 requests per minute.
type Rate struct {
	Max    int
	Window time.Duration
}

// ParseRate parses a "limit-period" string such as "300-M" (300 per
// minute), "10-S" or "5000-H".
func ParseRate(s string) (Rate, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return Rate{}, fmt.Errorf("ratelimit: invalid rate %q", s)
	}
	max, err := strconv.Atoi(parts[0])
	if err != nil || max <= 0 {
		return Rate{}, fmt.Errorf("ratelimit: invalid limit in %q", s)
	}
	var window time.Duration
	switch strings.ToUpper(parts[1]) {
	case "S":
		window = time.Second
	case "M":
		window = time.Minute
	case "H":
		window = time.Hour
	case "D":
		window = 24 * time.Hour
	default:
		return Rate{}, fmt.Errorf("ratelimit: invalid period in %q", s)
	}
	return Rate{Max: max, Window: window}, nil
}

// Limiter is a sliding window counter backed by Redis sorted sets.
// A nil client disables limiting entirely.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow records one hit for key and reports whether it stays within the
// budget, plus the remaining quota and window reset time.
func (l Limiter) Allow(ctx context.Context, key string, rate Rate) (allowed bool, remaining int, reset time.Time, err error) {
	if l.Client == nil || rate.Max <= 0 || rate.Window <= 0 {
		return true, rate.Max, time.Now().Add(rate.Window), nil
	}

	now := time.Now()
	until := now.Add(rate.Window)
	cutoff := float64(now.Add(-rate.Window).UnixNano())

	redisKey := l.Prefix + key
	member := key + ":" + uuid.NewString()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rate.Window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, until, err
	}

	current := int(countCmd.Val())
	remaining = rate.Max - current
	if remaining < 0 {
		remaining = 0
	}
	return current <= rate.Max, remaining, until, nil
}
