// Package redis provides a RateWindowStore backed by Redis sorted sets.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"parserator/internal/domain"
	"parserator/internal/port"
)

// hitScript trims the set, counts the trailing window and appends now when
// under limit. Scores are unix milliseconds.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local retention = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - retention)
local floor = '(' .. (now - window)
local count = redis.call('ZCOUNT', key, floor, '+inf')
if count >= limit then
  local oldest = redis.call('ZRANGEBYSCORE', key, floor, '+inf', 'WITHSCORES', 'LIMIT', 0, 1)
  local retry = 0
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, count, retry}
end
redis.call('ZADD', key, now, ARGV[5])
redis.call('PEXPIRE', key, retention)
return {1, count + 1, 0}
`)

type rateWindowStore struct {
	client *redis.Client
	prefix string
}

// NewClient parses url and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRateWindowStore creates a RateWindowStore on client.
func NewRateWindowStore(client *redis.Client) port.RateWindowStore {
	return &rateWindowStore{client: client, prefix: "parserator:rate:"}
}

// Key returns the sorted set holding an account's request timestamps.
func (s *rateWindowStore) Key(accountID uuid.UUID) string {
	return s.prefix + accountID.String()
}

func (s *rateWindowStore) Hit(ctx context.Context, accountID uuid.UUID, limit int, window, retention time.Duration, now time.Time) (*domain.RateDecision, error) {
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := hitScript.Run(ctx, s.client, []string{s.Key(accountID)},
		nowMs, window.Milliseconds(), retention.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis.RateWindowStore.Hit: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("redis.RateWindowStore.Hit: unexpected script reply %v", res)
	}
	return &domain.RateDecision{
		Allowed:    res[0] == 1,
		Count:      int(res[1]),
		Limit:      limit,
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

func (s *rateWindowStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
