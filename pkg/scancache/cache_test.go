package scancache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Run("should be fixed width and stable", func(t *testing.T) {
		assert.Len(t, Key("hello"), 16)
		assert.Equal(t, Key("hello"), Key("hello"))
		assert.NotEqual(t, Key("hello"), Key("hello "))
	})
}

func TestCache_GetPut(t *testing.T) {
	t.Run("should miss on unknown text", func(t *testing.T) {
		c := New[int](4)
		_, found := c.Get("never stored")
		assert.False(t, found)
	})

	t.Run("should return stored value", func(t *testing.T) {
		c := New[int](4)
		c.Put("some text", 42)

		got, found := c.Get("some text")
		require.True(t, found)
		assert.Equal(t, 42, got)
	})

	t.Run("should update existing key in place", func(t *testing.T) {
		c := New[int](4)
		c.Put("text", 1)
		c.Put("text", 2)

		got, _ := c.Get("text")
		assert.Equal(t, 2, got)
		assert.Equal(t, 1, c.Len())
	})
}

func TestCache_Eviction(t *testing.T) {
	t.Run("should never exceed capacity", func(t *testing.T) {
		c := New[int](3)
		for i := 0; i < 10; i++ {
			c.Put(fmt.Sprintf("text-%d", i), i)
		}
		assert.Equal(t, 3, c.Len())
	})

	t.Run("should evict the least recently used entry", func(t *testing.T) {
		c := New[int](3)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Put("c", 3)

		c.Put("d", 4) // evicts "a"

		_, found := c.Get("a")
		assert.False(t, found)
		_, found = c.Get("b")
		assert.True(t, found)
	})

	t.Run("should promote on Get so access order drives eviction", func(t *testing.T) {
		c := New[int](3)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Put("c", 3)

		// Touch "a" so "b" becomes the oldest by access.
		_, found := c.Get("a")
		require.True(t, found)

		c.Put("d", 4)

		_, found = c.Get("b")
		assert.False(t, found)
		_, found = c.Get("a")
		assert.True(t, found)
	})
}

func TestCache_Concurrency(t *testing.T) {
	t.Run("should stay within capacity under concurrent writers", func(t *testing.T) {
		c := New[int](16)
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					c.Put(fmt.Sprintf("g%d-i%d", g, i), i)
					c.Get(fmt.Sprintf("g%d-i%d", g, i%10))
				}
			}(g)
		}
		wg.Wait()
		assert.LessOrEqual(t, c.Len(), 16)
	})
}
