package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(t *testing.T, ttl time.Duration) *TTLCache[string, int] {
	t.Helper()
	c := New[string, int](ttl, time.Hour)
	t.Cleanup(c.Close)
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t, time.Minute)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiredEntryInvisible(t *testing.T) {
	c := newTestCache(t, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	// Physical removal waits for the sweeper; Get just hides it.
	assert.Equal(t, 1, c.Len())
}

func TestCacheSetRefreshesTTL(t *testing.T) {
	c := newTestCache(t, 50*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(30 * time.Millisecond)
	c.Set("a", 2)
	time.Sleep(30 * time.Millisecond)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t, time.Minute)

	c.Set("a", 1)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheDeleteFunc(t *testing.T) {
	c := newTestCache(t, time.Minute)

	c.Set("u1:chan-a", 1)
	c.Set("u1:chan-b", 2)
	c.Set("u2:chan-a", 3)

	c.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, "u1:") })

	_, ok := c.Get("u1:chan-a")
	assert.False(t, ok)
	_, ok = c.Get("u1:chan-b")
	assert.False(t, ok)
	v, ok := c.Get("u2:chan-a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(t, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
}

func TestCacheSweeperEvictsExpired(t *testing.T) {
	c := New[string, int](10*time.Millisecond, 20*time.Millisecond)
	t.Cleanup(c.Close)

	c.Set("a", 1)
	assert.Eventually(t, func() bool { return c.Len() == 0 },
		time.Second, 5*time.Millisecond)
}
