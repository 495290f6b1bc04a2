package cache

import (
	"time"
)

// GuardedCache routes every cache call through a circuit breaker. A miss is
// a healthy answer and never counts against the breaker; transport errors
// do. While the breaker is open all calls return ErrCacheDown immediately.
type GuardedCache struct {
	cache   *RedisCache
	breaker *CircuitBreaker
}

func NewGuardedCache(c *RedisCache, cb *CircuitBreaker) *GuardedCache {
	if cb == nil {
		cb = NewCircuitBreaker(nil)
	}
	return &GuardedCache{cache: c, breaker: cb}
}

func (g *GuardedCache) Get(key string, dest interface{}) error {
	missed := false
	err := g.breaker.Execute(func() error {
		err := g.cache.Get(key, dest)
		if err == ErrCacheMiss {
			missed = true
			return nil
		}
		return err
	})
	if err == ErrCircuitBreakerOpen {
		return ErrCacheDown
	}
	if err != nil {
		return err
	}
	if missed {
		return ErrCacheMiss
	}
	return nil
}

func (g *GuardedCache) Set(key string, value interface{}, expiration time.Duration) error {
	return g.execute(func() error {
		return g.cache.Set(key, value, expiration)
	})
}

func (g *GuardedCache) SetWithTags(key string, value interface{}, expiration time.Duration, tags []string) error {
	return g.execute(func() error {
		return g.cache.SetWithTags(key, value, expiration, tags)
	})
}

func (g *GuardedCache) Delete(keys ...string) error {
	return g.execute(func() error {
		return g.cache.Delete(keys...)
	})
}

func (g *GuardedCache) DeletePattern(pattern string) error {
	return g.execute(func() error {
		return g.cache.DeletePattern(pattern)
	})
}

func (g *GuardedCache) InvalidateByTag(tag string) error {
	return g.execute(func() error {
		return g.cache.InvalidateByTag(tag)
	})
}

func (g *GuardedCache) execute(fn func() error) error {
	err := g.breaker.Execute(fn)
	if err == ErrCircuitBreakerOpen {
		return ErrCacheDown
	}
	return err
}

// Health pings redis directly. Health checks bypass the breaker so a
// recovered backend is reported healthy even while the breaker is still
// timing out.
func (g *GuardedCache) Health() error {
	return g.cache.Health()
}

func (g *GuardedCache) Stats() map[string]interface{} {
	stats := g.cache.Stats()
	stats["circuit_breaker"] = g.breaker.GetStats()
	return stats
}

func (g *GuardedCache) Close() error {
	return g.cache.Close()
}
