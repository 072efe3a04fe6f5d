package cache

import (
	"fmt"
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

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// "b" is now the least recently used entry
	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Minute, WithClock[string](clock.Now))
	c.Set("k", "v")

	clock.Advance(30 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(31 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_TouchExtendsTTL(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[int](10, time.Minute, WithClock[int](clock.Now))
	c.Set("k", 1)

	clock.Advance(50 * time.Second)
	require.True(t, c.Touch("k"))
	clock.Advance(50 * time.Second)

	_, ok := c.Get("k")
	assert.True(t, ok)
	assert.False(t, c.Touch("missing"))
}

func TestLRUCache_GetOrCreate(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[*int](10, time.Minute, WithClock[*int](clock.Now))

	var mu sync.Mutex
	created := 0
	create := func() *int {
		mu.Lock()
		defer mu.Unlock()
		created++
		v := created
		return &v
	}

	var wg sync.WaitGroup
	got := make([]*int, 50)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = c.GetOrCreate("k", create)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	for _, v := range got {
		assert.Same(t, got[0], v)
	}

	clock.Advance(2 * time.Minute)
	fresh := c.GetOrCreate("k", create)
	assert.Equal(t, 2, *fresh, "expired entries are replaced")
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_EvictCallback(t *testing.T) {
	var evicted []string
	c := NewLRUCache[int](1, time.Minute, WithEvictCallback(func(key string, _ int) {
		evicted = append(evicted, key)
	}))

	c.Set("a", 1)
	c.Set("a", 2) // overwrite does not evict
	c.Set("b", 3)
	c.Delete("b")

	assert.Equal(t, []string{"a", "b"}, evicted)
}

func TestLRUCache_CleanExpiredAndPurge(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[int](10, time.Minute, WithClock[int](clock.Now))
	c.Set("old", 1)
	clock.Advance(45 * time.Second)
	c.Set("new", 2)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())

	c.Set("other", 3)
	assert.Equal(t, 2, c.Purge())
	assert.Equal(t, 0, c.Size())
}

func TestManager_Sweep(t *testing.T) {
	clock := newClock()
	a := NewLRUCache[int](10, time.Second, WithClock[int](clock.Now))
	b := NewLRUCache[int](10, time.Hour, WithClock[int](clock.Now))
	for i := 0; i < 3; i++ {
		a.Set(fmt.Sprint(i), i)
		b.Set(fmt.Sprint(i), i)
	}
	clock.Advance(time.Minute)

	m := NewManager(nil)
	m.Register("a", a)
	m.Register("b", b)

	swept := map[string]int{}
	m.OnSweep(func(name string, removed int) { swept[name] = removed })

	assert.Equal(t, 3, m.Sweep())
	assert.Equal(t, map[string]int{"a": 3, "b": 0}, swept)

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func BenchmarkLRUCache_SetGet(b *testing.B) {
	c := NewLRUCache[int](1024, time.Minute)
	for i := 0; i < b.N; i++ {
		key := fmt.Sprint(i % 2048)
		c.Set(key, i)
		c.Get(key)
	}
}
