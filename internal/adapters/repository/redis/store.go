// Package redis provides a Redis-backed collection store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/commission/internal/adapters/repository"
	"github.com/okian/commission/pkg/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const (
	backend       = "redis"
	defaultPrefix = "commission:"
	pingTimeout   = 2 * time.Second
)

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps each collection under one Redis string key.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, opts.Prefix), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) key(name string) string { return s.prefix + name }

// Load implements repository.Store.
func (s *Store) Load(ctx context.Context, key string, dst any) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(backend, "load", float64(time.Since(start).Milliseconds()))
	}()

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		metrics.RecordErrorByComponent("repository", "redis_load")
		return false, fmt.Errorf("%w: load %s: %w", repository.ErrPersist, key, err)
	}
	if err := repository.Decode(key, data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Save implements repository.Store using MULTI/EXEC so the batch lands
// atomically.
func (s *Store) Save(ctx context.Context, batch repository.Batch) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(backend, "save", float64(time.Since(start).Milliseconds()))
	}()

	encoded, err := repository.Encode(batch)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, key := range batch.Keys() {
			pipe.Set(ctx, s.key(key), encoded[key], 0)
		}
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "redis_save")
		return fmt.Errorf("%w: save: %w", repository.ErrPersist, err)
	}
	return nil
}
