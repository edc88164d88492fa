package cache_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/sonata/pkg/cache"
	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

func mustCompile(t *testing.T, q string) *types.Expression {
	t.Helper()
	expr, err := parser.Compile(q)
	require.NoError(t, err)
	return expr
}

func TestCacheNew(t *testing.T) {
	c := cache.New(10)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 10, c.Capacity())

	assert.Equal(t, cache.DefaultCapacity, cache.New(0).Capacity())
	assert.Equal(t, cache.DefaultCapacity, cache.New(-5).Capacity())
}

func TestCacheSetGet(t *testing.T) {
	c := cache.New(4)
	expr := mustCompile(t, "$.name")
	c.Set("$.name", expr)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("$.name")
	require.True(t, ok)
	assert.Same(t, expr, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheSetReplaces(t *testing.T) {
	c := cache.New(4)
	first, second := mustCompile(t, "a"), mustCompile(t, "b")
	c.Set("k", first)
	c.Set("k", second)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.New(3)
	expr := mustCompile(t, "x")
	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, expr)
	}
	// touching a makes b the oldest entry
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("d", expr)

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := cache.New(4)
	expr := mustCompile(t, "x")
	c.Set("a", expr)
	c.Set("b", expr)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	// invalidating a missing key is a no-op
	c.Invalidate("nope")

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestGetOrCompileCaches(t *testing.T) {
	c := cache.New(4)
	calls := 0
	compile := func() (*types.Expression, error) {
		calls++
		return parser.Compile("$.age")
	}

	first, err := c.GetOrCompile("$.age", compile)
	require.NoError(t, err)
	second, err := c.GetOrCompile("$.age", compile)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
}

func TestGetOrCompileDoesNotCacheErrors(t *testing.T) {
	c := cache.New(4)
	calls := 0
	compile := func() (*types.Expression, error) {
		calls++
		return parser.Compile("1 +")
	}

	for i := 0; i < 2; i++ {
		_, err := c.GetOrCompile("1 +", compile)
		require.Error(t, err)
		assert.Equal(t, types.ErrUnexpectedEnd, types.CodeOf(err))
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())

	boom := errors.New("boom")
	_, err := c.GetOrCompile("k", func() (*types.Expression, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGetOrCompileConcurrentMissesCompileOnce(t *testing.T) {
	c := cache.New(8)
	var calls atomic.Int32
	release := make(chan struct{})
	compile := func() (*types.Expression, error) {
		calls.Add(1)
		<-release
		return parser.Compile("$sum(items.price)")
	}

	const workers = 32
	var wg sync.WaitGroup
	results := make([]*types.Expression, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompile("$sum(items.price)", compile)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestCacheConcurrentUse(t *testing.T) {
	c := cache.New(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q := fmt.Sprintf("a.b[%d]", j%32)
				_, err := c.GetOrCompile(q, func() (*types.Expression, error) { return parser.Compile(q) })
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}
