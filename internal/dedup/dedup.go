package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pair-dashboard:"

// Deduplicator remembers one-shot alerts in Redis so they survive restarts.
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a Deduplicator backed by Redis. Keys expire after ttl; zero
// keeps them until cleared.
func New(redisURL, password string, ttl time.Duration) (*Deduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Deduplicator{rdb: rdb, ttl: ttl}, nil
}

// Close shuts down the Redis connection.
func (d *Deduplicator) Close() error {
	return d.rdb.Close()
}

// Ping reports whether Redis is reachable.
func (d *Deduplicator) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}

// AlreadySent reports whether key was recorded. It fails closed: when Redis
// cannot answer, the alert is treated as already sent.
func (d *Deduplicator) AlreadySent(ctx context.Context, key string) bool {
	exists, err := d.rdb.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return true
	}
	return exists > 0
}

// Record marks key as sent.
func (d *Deduplicator) Record(ctx context.Context, key string) {
	d.rdb.Set(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), d.ttl) //nolint:errcheck
}

// Clear removes a dedup key so the alert can fire again when the condition resets.
func (d *Deduplicator) Clear(ctx context.Context, key string) {
	d.rdb.Del(ctx, keyPrefix+key) //nolint:errcheck
}

// ClearByPattern removes every key matching a glob pattern, e.g. "exit_low:*".
func (d *Deduplicator) ClearByPattern(ctx context.Context, pattern string) {
	iter := d.rdb.Scan(ctx, 0, keyPrefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		d.rdb.Del(ctx, iter.Val()) //nolint:errcheck
	}
}
