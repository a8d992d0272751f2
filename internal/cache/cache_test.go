package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	c := NewTTL[int](time.Minute, nil)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", 42)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestExpiry(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTL[string](time.Minute, func() time.Time { return current })

	c.Set("k", "v")

	current = current.Add(time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry at exactly its ttl is still fresh")

	current = current.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestSetRefreshesExpiry(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTL[string](time.Minute, func() time.Time { return current })

	c.Set("k", "old")
	current = current.Add(45 * time.Second)
	c.Set("k", "new")
	current = current.Add(45 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestDelete(t *testing.T) {
	c := NewTTL[int](time.Minute, nil)
	c.Set("k", 1)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}
