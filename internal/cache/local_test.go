package cache

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestLocal(maxEntries int) (*Local, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLocal(maxEntries)
	l.now = clock.Now

	return l, clock
}

func TestLocalFIFOEviction(t *testing.T) {
	l, _ := newTestLocal(3)

	for _, k := range []string{"a", "b", "c"} {
		assert.Zero(t, l.Set(k, []byte(k), time.Minute))
	}

	// reading "a" does not refresh its position, this is not an LRU
	_, ok := l.Get("a")
	require.True(t, ok)

	assert.Equal(t, 1, l.Set("d", []byte("d"), time.Minute))

	_, ok = l.Get("a")
	assert.False(t, ok, "oldest insertion must be evicted first")

	for _, k := range []string{"b", "c", "d"} {
		_, ok = l.Get(k)
		assert.True(t, ok, k)
	}

	assert.Equal(t, 3, l.Len())
}

func TestLocalOverwriteKeepsSlot(t *testing.T) {
	l, _ := newTestLocal(2)

	l.Set("a", []byte("1"), time.Minute)
	l.Set("b", []byte("1"), time.Minute)
	l.Set("a", []byte("2"), time.Minute)
	l.Set("c", []byte("1"), time.Minute)

	_, ok := l.Get("a")
	assert.False(t, ok)

	v, ok := l.Get("b")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestLocalExpiry(t *testing.T) {
	l, clock := newTestLocal(0)

	l.Set("short", []byte("x"), time.Second)
	l.Set("long", []byte("y"), time.Hour)

	clock.Advance(2 * time.Second)

	_, ok := l.Get("short")
	assert.False(t, ok)

	_, ok = l.Get("long")
	assert.True(t, ok)

	l.Set("gone", []byte("z"), time.Second)
	clock.Advance(time.Minute)
	assert.Equal(t, 1, l.Purge())
	assert.Equal(t, 1, l.Len())
}

func TestLocalSetNonPositiveTTLDeletes(t *testing.T) {
	l, _ := newTestLocal(0)

	l.Set("k", []byte("v"), time.Minute)
	l.Set("k", []byte("v"), 0)

	_, ok := l.Get("k")
	assert.False(t, ok)
	assert.Zero(t, l.Len())
}

func TestLocalDeletePattern(t *testing.T) {
	l, _ := newTestLocal(0)

	for _, k := range []string{"perm:user:1", "perm:resource:1:project:read", "perm:resource:12:project:read", "perm:batch:1:abc"} {
		l.Set(k, []byte("v"), time.Minute)
	}

	removed := l.DeletePattern("perm:resource:1:*")
	assert.Equal(t, []string{"perm:resource:1:project:read"}, removed)

	assert.False(t, l.Delete("perm:resource:1:project:read"))
	assert.True(t, l.Delete("perm:user:1"))

	removed = l.DeletePattern("perm:*")
	sort.Strings(removed)
	assert.Equal(t, []string{"perm:batch:1:abc", "perm:resource:12:project:read"}, removed)
	assert.Zero(t, l.Len())
}

func TestLocalConcurrentAccess(t *testing.T) {
	l, _ := newTestLocal(50)

	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)

		go func(g int) {
			defer wg.Done()

			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k:%d:%d", g, i%80)
				l.Set(key, []byte("v"), time.Minute)
				l.Get(key)

				if i%50 == 0 {
					l.DeletePattern(fmt.Sprintf("k:%d:*", g))
				}
			}
		}(g)
	}

	wg.Wait()
	assert.LessOrEqual(t, l.Len(), 50)
}
