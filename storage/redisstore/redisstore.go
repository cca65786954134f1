// Package redisstore keeps values in Redis so several processes can share
// one customer session.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const changesChannel = "changes"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key and to the change channel name.
	Prefix string
}

// Store implements storage.Backend and storage.Watcher. Writes publish on
// <prefix>changes so watchers in other processes are woken.
type Store struct {
	client *redis.Client
	prefix string
}

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Watcher = (*Store)(nil)
)

// New connects and pings Redis.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redisstore: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Store{client: client, prefix: opts.Prefix}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.publish(ctx, key)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	if n > 0 {
		s.publish(ctx, key)
	}
	return nil
}

// Watch subscribes to the change channel until ctx ends.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	pubsub := s.client.Subscribe(ctx, s.prefix+changesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// publish failures are logged only; the write itself already succeeded.
func (s *Store) publish(ctx context.Context, key string) {
	if err := s.client.Publish(ctx, s.prefix+changesChannel, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis change notification failed")
	}
}
