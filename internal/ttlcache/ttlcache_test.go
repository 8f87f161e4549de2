package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, int](time.Minute, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(30 * time.Second)
	age, ok := c.Age("a")
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, age)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[int, string](time.Minute, 2)
	c.now = func() time.Time { return now }

	c.Set(1, "a")
	now = now.Add(time.Second)
	c.Set(2, "b")
	now = now.Add(time.Second)
	c.Set(3, "c")

	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.SetTTL(4, "d", time.Hour)
	_, ok = c.Get(4)
	assert.True(t, ok)

	c.Delete(4)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
