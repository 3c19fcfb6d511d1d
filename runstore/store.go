// Package runstore keeps scenario results in Redis.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tbreport/config"
	"tbreport/scenario"
)

// ErrNotFound is returned by Get for unknown or expired runs.
var ErrNotFound = errors.New("run not found")

// Store saves results as JSON under <prefix>:run:<id> and indexes them by start
// time in <prefix>:runs.
type Store struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	maxRecent int64
}

// New returns a Store backed by client. A zero ttl keeps results forever and a
// zero maxRecent keeps the whole index.
func New(client *redis.Client, prefix string, ttl time.Duration, maxRecent int) *Store {
	if prefix == "" {
		prefix = "tbreport"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl, maxRecent: int64(maxRecent)}
}

// Open connects to the configured Redis and checks it answers.
func Open(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return New(rdb, cfg.Prefix, cfg.TTL, cfg.MaxRecent), nil
}

func (s *Store) keyRun(id string) string { return fmt.Sprintf("%s:run:%s", s.prefix, id) }

func (s *Store) keyIndex() string { return s.prefix + ":runs" }

// Save stores res and trims the index to the newest maxRecent runs.
func (s *Store) Save(ctx context.Context, res scenario.Result) error {
	if res.RunID == "" {
		return errors.New("save run: empty run id")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("error marshalling run %s: %w", res.RunID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyRun(res.RunID), data, s.ttl)
	pipe.ZAdd(ctx, s.keyIndex(), redis.Z{Score: float64(res.StartedAt.UnixNano()), Member: res.RunID})
	if s.maxRecent > 0 {
		pipe.ZRemRangeByRank(ctx, s.keyIndex(), 0, -s.maxRecent-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error saving run %s: %w", res.RunID, err)
	}
	return nil
}

// Get loads one run.
func (s *Store) Get(ctx context.Context, id string) (scenario.Result, error) {
	data, err := s.client.Get(ctx, s.keyRun(id)).Result()
	if errors.Is(err, redis.Nil) {
		return scenario.Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return scenario.Result{}, fmt.Errorf("error loading run %s: %w", id, err)
	}

	var res scenario.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return scenario.Result{}, fmt.Errorf("error unmarshalling run %s: %w", id, err)
	}
	return res, nil
}

// Recent returns up to n runs, newest first. Runs whose result has expired are
// skipped.
func (s *Store) Recent(ctx context.Context, n int) ([]scenario.Result, error) {
	if n <= 0 {
		return []scenario.Result{}, nil
	}
	ids, err := s.client.ZRevRange(ctx, s.keyIndex(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	if len(ids) == 0 {
		return []scenario.Result{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyRun(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("error loading runs: %w", err)
	}

	out := make([]scenario.Result, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var res scenario.Result
		if err := json.Unmarshal([]byte(str), &res); err == nil {
			out = append(out, res)
		}
	}
	return out, nil
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }
