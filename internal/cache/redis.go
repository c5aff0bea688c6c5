package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection shared by every namespace.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
}

// RedisStore keeps each namespace in its own logical database.
type RedisStore struct {
	clients map[Namespace]*redis.Client
}

// NewRedisStore opens one client per namespace and pings the first.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	s := &RedisStore{clients: make(map[Namespace]*redis.Client, len(namespaces))}
	for _, ns := range namespaces {
		s.clients[ns] = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Username: opts.Username,
			Password: opts.Password,
			DB:       ns.DB(),
		})
	}
	if err := s.clients[Sentiment].Ping(ctx).Err(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return s, nil
}

func (s *RedisStore) client(ns Namespace) (*redis.Client, error) {
	c, ok := s.clients[ns]
	if !ok {
		return nil, ErrUnknownNamespace
	}
	return c, nil
}

func (s *RedisStore) Get(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	c, err := s.client(ns)
	if err != nil {
		return "", false, err
	}
	v, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) error {
	c, err := s.client(ns)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, value, ttl).Err()
}

// Keys walks the namespace with SCAN and returns the matches sorted.
func (s *RedisStore) Keys(ctx context.Context, ns Namespace, pattern string) ([]string, error) {
	c, err := s.client(ns)
	if err != nil {
		return nil, err
	}
	var keys []string
	iter := c.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (s *RedisStore) Flush(ctx context.Context, ns Namespace) error {
	c, err := s.client(ns)
	if err != nil {
		return err
	}
	return c.FlushDB(ctx).Err()
}

func (s *RedisStore) Close() error {
	var errs []error
	for _, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
