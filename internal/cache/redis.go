package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"taskify/internal/monitoring"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

// Key layout. Entity documents live under user:/task:, list results under
// users_list:/tasks_list: with a hash of the query params, and tag sets under
// tag:user:<id> tie a user's cached documents together so one invalidation
// drops the user and every task denormalizing its name.
const (
	userKeyPrefix   = "user:"
	taskKeyPrefix   = "task:"
	userListPrefix  = "users_list:"
	taskListPrefix  = "tasks_list:"
	UserListPattern = userListPrefix + "*"
	TaskListPattern = taskListPrefix + "*"
)

func UserKey(id string) string { return userKeyPrefix + id }
func TaskKey(id string) string { return taskKeyPrefix + id }

// UserTag names the invalidation group for a user and the tasks assigned to
// them.
func UserTag(id string) string { return "user:" + id }

func UserListKey(parts ...string) string { return userListPrefix + hashParts(parts) }
func TaskListKey(parts ...string) string { return taskListPrefix + hashParts(parts) }

func hashParts(parts []string) string {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return fmt.Sprintf("%016x", h.Sum64())
}

type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return &RedisCache{
		client: rdb,
		ctx:    context.Background(),
	}
}

// NewRedisCacheWithClient reuses an existing client, e.g. the one the retry
// worker holds.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, ctx: context.Background()}
}

func (r *RedisCache) Set(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	ctx, cancel := context.WithTimeout(r.ctx, 3*time.Second)
	defer cancel()

	err = r.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

func (r *RedisCache) Get(key string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(r.ctx, 3*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			monitoring.CacheRequestsTotal.WithLabelValues("miss").Inc()
			return ErrCacheMiss
		}
		monitoring.CacheRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		monitoring.CacheRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	monitoring.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return nil
}

func (r *RedisCache) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(r.ctx, 3*time.Second)
	defer cancel()

	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) DeletePattern(pattern string) error {
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()

	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for pattern %s: %w", pattern, err)
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}

	return nil
}

func (r *RedisCache) Exists(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(r.ctx, 3*time.Second)
	defer cancel()

	result, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}

	return result > 0, nil
}

// SetWithTags caches value and adds key to each tag's set, so
// InvalidateByTag can drop every document touched by a user change in one
// call.
func (r *RedisCache) SetWithTags(key string, value interface{}, expiration time.Duration, tags []string) error {
	if err := r.Set(key, value, expiration); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()

	pipe := r.client.Pipeline()
	for _, tag := range tags {
		tagKey := fmt.Sprintf("tag:%s", tag)
		pipe.SAdd(ctx, tagKey, key)
		pipe.Expire(ctx, tagKey, expiration)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) InvalidateByTag(tag string) error {
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()

	tagKey := fmt.Sprintf("tag:%s", tag)

	keys, err := r.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get tag members: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	allKeys := append(keys, tagKey)
	return r.client.Del(ctx, allKeys...).Err()
}

func (r *RedisCache) Health() error {
	ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Stats() map[string]interface{} {
	ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
	defer cancel()

	info, err := r.client.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	poolStats := r.client.PoolStats()

	return map[string]interface{}{
		"redis_info":    info,
		"pool_hits":     poolStats.Hits,
		"pool_misses":   poolStats.Misses,
		"pool_timeouts": poolStats.Timeouts,
		"pool_total":    poolStats.TotalConns,
		"pool_idle":     poolStats.IdleConns,
		"pool_stale":    poolStats.StaleConns,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
