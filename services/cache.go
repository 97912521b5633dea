package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"fleettemp/config"
)

// CacheService wraps Redis for response caching and live event fan-out. A
// zero CacheService is a valid disabled cache: reads miss, writes and
// publishes are dropped.
type CacheService struct {
	client *redis.Client
}

// NewCacheService connects and pings Redis, retrying while it comes up. On
// failure it still returns a usable disabled service next to the error.
func NewCacheService(ctx context.Context, log *slog.Logger, cfg config.RedisConfig) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return struct{}{}, client.Ping(pingCtx).Err()
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(10),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("redis ping failed", "addr", cfg.Addr(), "retry_in", wait, "error", err)
		}),
	)
	if err != nil {
		_ = client.Close()
		return &CacheService{}, fmt.Errorf("redis ping failed: %w", err)
	}
	log.Info("redis connected", "addr", cfg.Addr())
	return &CacheService{client: client}, nil
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func (s *CacheService) Available() bool {
	return s != nil && s.client != nil
}

// Get decodes the cached value of key into dest and reports whether it was
// found.
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(val, dest)
}

func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// VehiclesCacheKey holds the cached vehicle index.
const VehiclesCacheKey = "vehicles"

// SummaryCacheKey names a cached summary of one vehicle's selection.
func SummaryCacheKey(plate, start, end string, bin time.Duration) string {
	return fmt.Sprintf("summary:%s:%s:%s:%s", plate, start, end, bin)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// InvalidateVehicles drops the cached responses derived from plates: the
// vehicle index and every summary of those vehicles.
func (s *CacheService) InvalidateVehicles(ctx context.Context, plates []string) error {
	if !s.Available() {
		return nil
	}
	errs := []error{s.client.Del(ctx, VehiclesCacheKey).Err()}
	for _, plate := range plates {
		errs = append(errs, s.DeletePrefix(ctx, "summary:"+globEscaper.Replace(plate)+":"))
	}
	return errors.Join(errs...)
}

// DeletePrefix drops every key matching prefix followed by anything. prefix is
// a glob pattern; callers escape literal metacharacters.
func (s *CacheService) DeletePrefix(ctx context.Context, prefix string) error {
	if !s.Available() {
		return nil
	}
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *CacheService) PublishJSON(ctx context.Context, channel string, message any) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe returns nil when the cache is disabled.
func (s *CacheService) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channels...)
}

func (s *CacheService) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}
