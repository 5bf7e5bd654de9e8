package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/encoding"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/resilience"
)

const historyKeyPrefix = "history:"

func historyKey(user string) string {
	return historyKeyPrefix + user
}

// RedisStore keeps each user's history in a redis list, oldest first.
// Every call goes through a retry policy and a circuit breaker.
type RedisStore struct {
	client    *RedisClient
	codec     *encoding.Codec
	retention time.Duration
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	now       func() time.Time
}

// NewRedisStore creates a store on an enabled client. A positive retention
// is applied as a key TTL refreshed on every append.
func NewRedisStore(client *RedisClient, retention time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		codec:     encoding.NewCodec(10),
		retention: retention,
		retry:     resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker("redis_history", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 2,
		}),
		now: time.Now,
	}
}

func (s *RedisStore) do(ctx context.Context, fn func(ctx context.Context, rdb *redis.Client) error) error {
	return resilience.RetryWithConfig(ctx, s.retry, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			return fn(ctx, s.client.GetClient())
		})
	})
}

func (s *RedisStore) Append(ctx context.Context, user string, snapshot *Snapshot) error {
	if err := stamp(user, snapshot, s.now()); err != nil {
		return err
	}

	data, err := s.codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := historyKey(user)
	return s.do(ctx, func(ctx context.Context, rdb *redis.Client) error {
		pipe := rdb.TxPipeline()
		pipe.RPush(ctx, key, data)
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to append snapshot: %w", err)
		}
		return nil
	})
}

func (s *RedisStore) List(ctx context.Context, user string) ([]Snapshot, error) {
	if user == "" {
		return nil, ErrEmptyUser
	}

	var raw []string
	err := s.do(ctx, func(ctx context.Context, rdb *redis.Client) error {
		var err error
		raw, err = rdb.LRange(ctx, historyKey(user), 0, -1).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return s.decode(raw), nil
}

// decode skips entries that no longer parse rather than failing the whole list
func (s *RedisStore) decode(raw []string) []Snapshot {
	snapshots := make([]Snapshot, 0, len(raw))
	for _, item := range raw {
		var snapshot Snapshot
		if err := s.codec.Unmarshal([]byte(item), &snapshot); err != nil {
			slog.Warn("Skipping undecodable snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}

func (s *RedisStore) Clear(ctx context.Context, user string) (int, error) {
	if user == "" {
		return 0, ErrEmptyUser
	}

	var n int64
	err := s.do(ctx, func(ctx context.Context, rdb *redis.Client) error {
		pipe := rdb.TxPipeline()
		length := pipe.LLen(ctx, historyKey(user))
		pipe.Del(ctx, historyKey(user))
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		n = length.Val()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return int(n), nil
}

// Prune trims, from every history list, the leading snapshots dated before
// olderThan. Lists are append-only so older entries are always at the head.
func (s *RedisStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0

	err := s.do(ctx, func(ctx context.Context, rdb *redis.Client) error {
		removed = 0
		iter := rdb.Scan(ctx, 0, historyKeyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			raw, err := rdb.LRange(ctx, key, 0, -1).Result()
			if err != nil {
				return err
			}

			stale := 0
			for _, snapshot := range s.decode(raw) {
				if !snapshot.Date.Before(olderThan) {
					break
				}
				stale++
			}
			if stale == 0 {
				continue
			}

			if stale == len(raw) {
				err = rdb.Del(ctx, key).Err()
			} else {
				err = rdb.LTrim(ctx, key, int64(stale), -1).Err()
			}
			if err != nil {
				return err
			}
			removed += stale
		}
		return iter.Err()
	})
	if err != nil {
		return removed, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return removed, nil
}

// BreakerStats exposes the circuit breaker state for /health
func (s *RedisStore) BreakerStats() map[string]interface{} {
	return s.breaker.Stats()
}

// BreakerState is the current breaker state, exported as a gauge
func (s *RedisStore) BreakerState() resilience.CircuitBreakerState {
	return s.breaker.State()
}

// Close is a no-op; the shared RedisClient is closed by its owner
func (s *RedisStore) Close() error { return nil }
