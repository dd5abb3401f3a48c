package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func result(term string) *query.TermResult {
	return &query.TermResult{
		Term:              term,
		DocumentFrequency: 1,
		Frequency:         2,
		Hits:              []query.Hit{{DocID: 1, Title: "One", Frequency: 2, Positions: []int{0, 2}}},
	}
}

func TestGetOrComputeCachesPerBuild(t *testing.T) {
	store := newMemStore()
	m := metrics.New(prometheus.NewRegistry())
	c := New(store, time.Minute).WithMetrics(m)
	ctx := context.Background()

	calls := 0
	compute := func() (*query.TermResult, error) {
		calls++
		return result("a"), nil
	}

	got, hit, err := c.GetOrCompute(ctx, "build-1", "a", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, result("a"), got)

	got, hit, err = c.GetOrCompute(ctx, "build-1", "a", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []int{0, 2}, got.Hits[0].Positions)

	_, hit, err = c.GetOrCompute(ctx, "build-2", "a", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal))
	for _, ttl := range store.ttls {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, "b", "zebra", func() (*query.TermResult, error) {
		return nil, apperrors.ErrTermNotFound
	})
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound)

	_, ok := c.Get(ctx, "b", "zebra")
	assert.False(t, ok)
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMemStore(), time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "b", "a", func() (*query.TermResult, error) {
				calls.Add(1)
				<-release
				return result("a"), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute)
	ctx := context.Background()
	c.Set(ctx, "b", "a", result("a"))
	c.Set(ctx, "b", "c", result("c"))
	store.data["other:key"] = "x"

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, map[string]string{"other:key": "x"}, store.data)
}

type brokenStore struct{ *memStore }

func (brokenStore) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func TestStoreFailureIsAMiss(t *testing.T) {
	c := New(brokenStore{newMemStore()}, time.Minute)
	got, hit, err := c.GetOrCompute(context.Background(), "b", "a", func() (*query.TermResult, error) {
		return result("a"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "a", got.Term)
}

type countingStore struct {
	*memStore
	gets  atomic.Int32
	fail  error
	delay time.Duration
}

func (s *countingStore) Get(ctx context.Context, key string) (string, error) {
	s.gets.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.fail != nil {
		return "", s.fail
	}
	return s.memStore.Get(ctx, key)
}

func TestGuardSkipsFailingStore(t *testing.T) {
	inner := &countingStore{memStore: newMemStore(), fail: errors.New("connection refused")}
	c := New(Guard(inner, GuardConfig{Timeout: time.Second, FailureThreshold: 2, ResetTimeout: time.Minute}), time.Minute)
	ctx := context.Background()

	for range 5 {
		_, ok := c.Get(ctx, "b", "a")
		assert.False(t, ok)
	}
	assert.Equal(t, int32(2), inner.gets.Load())
}

func TestGuardMissesDoNotOpenCircuit(t *testing.T) {
	inner := &countingStore{memStore: newMemStore()}
	c := New(Guard(inner, GuardConfig{Timeout: time.Second, FailureThreshold: 1, ResetTimeout: time.Minute}), time.Minute)
	ctx := context.Background()

	for range 3 {
		_, ok := c.Get(ctx, "b", "a")
		assert.False(t, ok)
	}
	c.Set(ctx, "b", "a", result("a"))
	_, ok := c.Get(ctx, "b", "a")
	assert.True(t, ok)
	assert.Equal(t, int32(4), inner.gets.Load())
}

func TestGuardTimesOutSlowStore(t *testing.T) {
	inner := &countingStore{memStore: newMemStore(), delay: time.Second}
	g := Guard(inner, GuardConfig{Timeout: 10 * time.Millisecond, FailureThreshold: 5})

	start := time.Now()
	_, err := g.Get(context.Background(), "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
