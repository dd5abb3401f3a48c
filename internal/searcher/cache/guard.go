package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/resilience"
)

// GuardConfig bounds calls to a Store.
type GuardConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
	OnStateChange    func(from, to resilience.State)
}

// Guard wraps s so every call is bounded by cfg.Timeout and a run of
// failures opens a circuit that skips s until cfg.ResetTimeout passes. A key
// miss is not a failure.
func Guard(s Store, cfg GuardConfig) Store {
	return &guardedStore{
		store:   s,
		timeout: cfg.Timeout,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
			OnStateChange:    cfg.OnStateChange,
			IsFailure: func(err error) bool {
				return err != nil && !pkgredis.IsNilError(err)
			},
		}),
	}
}

type guardedStore struct {
	store   Store
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

func (g *guardedStore) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "cache get", func(ctx context.Context) error {
			v, err := g.store.Get(ctx, key)
			val = v
			return err
		})
	})
	if err != nil {
		return "", err
	}
	return val, nil
}

func (g *guardedStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "cache set", func(ctx context.Context) error {
			return g.store.Set(ctx, key, value, ttl)
		})
	})
}

func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "cache flush", func(ctx context.Context) error {
			deleted, err := g.store.FlushByPattern(ctx, pattern)
			n = deleted
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
