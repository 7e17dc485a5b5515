package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
)

// Usage is the state of a demo IP's quota. Used never exceeds Limit.
type Usage struct {
	Allowed  bool
	Used     int64
	Limit    int64
	ResetsAt time.Time
}

// DemoLimiter caps demo research requests per IP over a rolling window.
type DemoLimiter interface {
	// Consume counts one request for ip and reports whether it fits the quota.
	Consume(ctx context.Context, ip string) (Usage, error)
	// Release returns a consumed slot, used when the request fails after Consume.
	Release(ctx context.Context, ip string) error
	// Peek reports the current quota for ip without consuming it.
	Peek(ctx context.Context, ip string) (Usage, error)
}

const demoKeyPrefix = "reseich:demo:research:"

// Rejected attempts do not count against the quota.
var consumeScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[2]) then
  return {n, redis.call('PTTL', KEYS[1]), 0}
end
n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1]), 1}
`)

var releaseScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n > 0 then
  return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisDemoLimiter keeps one counter per IP that expires a window after the first request.
type RedisDemoLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisDemoLimiter(client *redis.Client, limit int, window time.Duration) *RedisDemoLimiter {
	return &RedisDemoLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (l *RedisDemoLimiter) Consume(ctx context.Context, ip string) (Usage, error) {
	res, err := consumeScript.Run(ctx, l.client, []string{demoKeyPrefix + ip}, l.window.Milliseconds(), l.limit).Int64Slice()
	if err != nil {
		return Usage{}, fmt.Errorf("failed to consume demo quota: %w", err)
	}
	if len(res) != 3 {
		return Usage{}, fmt.Errorf("unexpected demo quota reply %v", res)
	}

	return Usage{
		Allowed:  res[2] == 1,
		Used:     min(res[0], l.limit),
		Limit:    l.limit,
		ResetsAt: l.resetsAt(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

func (l *RedisDemoLimiter) Peek(ctx context.Context, ip string) (Usage, error) {
	key := demoKeyPrefix + ip
	pipe := l.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Usage{}, fmt.Errorf("failed to read demo quota: %w", err)
	}

	used, err := getCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Usage{}, fmt.Errorf("failed to read demo quota: %w", err)
	}

	return Usage{
		Allowed:  used < l.limit,
		Used:     min(used, l.limit),
		Limit:    l.limit,
		ResetsAt: l.resetsAt(ttlCmd.Val()),
	}, nil
}

// resetsAt turns a PTTL reply into a wall-clock time. Missing keys reset a full window from now.
func (l *RedisDemoLimiter) resetsAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = l.window
	}
	return l.now().Add(ttl).UTC()
}

func (l *RedisDemoLimiter) Release(ctx context.Context, ip string) error {
	if err := releaseScript.Run(ctx, l.client, []string{demoKeyPrefix + ip}).Err(); err != nil {
		return fmt.Errorf("failed to release demo quota: %w", err)
	}
	return nil
}

// PostgresDemoLimiter stores the window per IP in demo_usage. Used when Redis is not configured.
type PostgresDemoLimiter struct {
	queries pgdb.Querier
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewPostgresDemoLimiter(queries pgdb.Querier, limit int, window time.Duration) *PostgresDemoLimiter {
	return &PostgresDemoLimiter{
		queries: queries,
		limit:   int64(limit),
		window:  window,
		now:     time.Now,
	}
}

func (l *PostgresDemoLimiter) Consume(ctx context.Context, ip string) (Usage, error) {
	usage, err := l.queries.ConsumeDemoUsage(ctx, pgdb.ConsumeDemoUsageParams{
		Ip:            ip,
		WindowSeconds: l.window.Seconds(),
	})
	if err != nil {
		return Usage{}, fmt.Errorf("failed to consume demo quota: %w", err)
	}

	used := int64(usage.ResearchCount)
	return Usage{
		Allowed:  used <= l.limit,
		Used:     min(used, l.limit),
		Limit:    l.limit,
		ResetsAt: usage.WindowStartedAt.Add(l.window).UTC(),
	}, nil
}

func (l *PostgresDemoLimiter) Peek(ctx context.Context, ip string) (Usage, error) {
	now := l.now()
	usage, err := l.queries.GetDemoUsage(ctx, ip)
	if errors.Is(err, sql.ErrNoRows) {
		return Usage{Allowed: l.limit > 0, Limit: l.limit, ResetsAt: now.Add(l.window).UTC()}, nil
	}
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read demo quota: %w", err)
	}

	resetsAt := usage.WindowStartedAt.Add(l.window)
	used := int64(usage.ResearchCount)
	if !resetsAt.After(now) {
		// Window elapsed; the next Consume starts a fresh one.
		used = 0
		resetsAt = now.Add(l.window)
	}

	return Usage{
		Allowed:  used < l.limit,
		Used:     min(used, l.limit),
		Limit:    l.limit,
		ResetsAt: resetsAt.UTC(),
	}, nil
}

func (l *PostgresDemoLimiter) Release(ctx context.Context, ip string) error {
	return l.queries.ReleaseDemoUsage(ctx, pgdb.ReleaseDemoUsageParams{
		Ip:    ip,
		Since: l.now().Add(-l.window),
	})
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
