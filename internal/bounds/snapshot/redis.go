// Package snapshot persists the last applied bounds collection in Redis so a
// restarted instance can serve views before its first live load.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
)

const defaultKey = "danesfield:bounds:snapshot"

type Option func(*Store)

func WithKey(k string) Option {
	return func(s *Store) {
		if k != "" {
			s.key = k
		}
	}
}

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

type Store struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func New(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := &Store{rdb: rdb, key: defaultKey, ttl: 24 * time.Hour}
	for _, f := range opts {
		f(s)
	}
	return s, nil
}

// Load returns the saved collection; ok is false when no snapshot exists.
func (s *Store) Load(ctx context.Context) ([]model.DatasetBound, bool, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveSnapshotOp("load", "miss")
		return nil, false, nil
	}
	if err != nil {
		observability.ObserveSnapshotOp("load", "error")
		return nil, false, fmt.Errorf("redis GET %q: %w", s.key, err)
	}

	var data []model.DatasetBound
	if err := json.Unmarshal(b, &data); err != nil {
		observability.ObserveSnapshotOp("load", "error")
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	observability.ObserveSnapshotOp("load", "ok")
	return data, true, nil
}

// Save overwrites the snapshot with the given collection under the store TTL.
func (s *Store) Save(ctx context.Context, data []model.DatasetBound) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, b, s.ttl).Err(); err != nil {
		observability.ObserveSnapshotOp("save", "error")
		return fmt.Errorf("redis SET %q: %w", s.key, err)
	}
	observability.ObserveSnapshotOp("save", "ok")
	return nil
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
