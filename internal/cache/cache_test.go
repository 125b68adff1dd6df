package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, c.Len())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("a", "x")
	c.Set("b", "y")

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	assert.Equal(t, 2, c.Purge())
	assert.Equal(t, 0, c.Purge())
}

func TestFileKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o600))

	k1, ok := FileKey("props", path)
	require.True(t, ok)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("three"), 0o600))
	require.NoError(t, os.Chtimes(path, later, later))

	k2, ok := FileKey("props", path)
	require.True(t, ok)
	assert.NotEqual(t, k1, k2)

	_, ok = FileKey("props", filepath.Join(t.TempDir(), "missing"))
	assert.False(t, ok)
}
