package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Keys())
}

// TestAdd verifies that Add stores new keys and rejects duplicates without side effects.
func TestAdd(t *testing.T) {
	r := New[string, int]()

	require.NoError(t, r.Add("one", 1))
	require.NoError(t, r.Add("two", 2))

	err := r.Add("one", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Contains(t, err.Error(), "one")

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v, "failed Add must not replace the value")
	assert.Equal(t, []string{"one", "two"}, r.Keys())
}

// TestGet verifies Get reports missing keys instead of returning zero values silently.
func TestGet(t *testing.T) {
	r := New[string, int]()
	require.NoError(t, r.Add("one", 1))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestHas(t *testing.T) {
	r := New[string, int]()
	require.NoError(t, r.Add("one", 1))
	assert.True(t, r.Has("one"))
	assert.False(t, r.Has("two"))
}

// TestKeysOrder verifies keys come back in registration order regardless of count.
func TestKeysOrder(t *testing.T) {
	r := New[int, struct{}]()
	for i := 50; i > 0; i-- {
		require.NoError(t, r.Add(i, struct{}{}))
	}

	keys := r.Keys()
	require.Len(t, keys, 50)
	for i, k := range keys {
		assert.Equal(t, 50-i, k)
	}
}

func TestRange(t *testing.T) {
	r := New[string, int]()
	require.NoError(t, r.Add("a", 1))
	require.NoError(t, r.Add("b", 2))
	require.NoError(t, r.Add("c", 3))

	t.Run("visits in order", func(t *testing.T) {
		var seen []string
		r.Range(func(k string, _ int) bool {
			seen = append(seen, k)
			return true
		})
		assert.Equal(t, []string{"a", "b", "c"}, seen)
	})

	t.Run("stops early", func(t *testing.T) {
		count := 0
		r.Range(func(string, int) bool {
			count++
			return count < 2
		})
		assert.Equal(t, 2, count)
	})

	t.Run("mutation during range uses snapshot", func(t *testing.T) {
		count := 0
		r.Range(func(k string, _ int) bool {
			assert.NoError(t, r.Add(k+"x", 0))
			count++
			return true
		})
		assert.Equal(t, 3, count)
		assert.Equal(t, 6, r.Len())
	})
}

// TestConcurrentGet verifies concurrent readers are safe after registration.
func TestConcurrentGet(t *testing.T) {
	r := New[int, int]()
	for i := 0; i < 100; i++ {
		require.NoError(t, r.Add(i, i*i))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				v, ok := r.Get(i)
				assert.True(t, ok)
				assert.Equal(t, i*i, v)
			}
		}()
	}
	wg.Wait()
}
