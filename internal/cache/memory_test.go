package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheBulkLoadConsistency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Add(ctx, "stale"))
	require.NoError(t, c.BulkLoad(ctx, []string{"a", "b", "c"}))

	// After BulkLoad, exactly the loaded ids are present.
	for _, id := range []string{"a", "b", "c"} {
		ok, err := c.Contains(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "id %s should be present", id)
	}
	ok, err := c.Contains(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok, "BulkLoad must replace, not merge")
}

func TestMemoryCacheAdd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache()

	ok, err := c.Contains(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Add(ctx, "x"))
	ok, err = c.Contains(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			_ = c.Add(ctx, id)
			_, _ = c.Contains(ctx, id)
		}()
	}
	wg.Wait()

	for i := range 50 {
		ok, err := c.Contains(ctx, fmt.Sprintf("id-%d", i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
