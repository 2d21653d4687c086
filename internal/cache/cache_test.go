package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key([]byte("photo"), "local", "all")
	b := Key([]byte("photo"), "remote", "all")
	c := Key([]byte("photo"), "local", "enhancement")
	d := Key([]byte("other"), "local", "all")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Equal(t, a, Key([]byte("photo"), "local", "all"))
	assert.Contains(t, a, "|local|all")
}

func TestCacheInMemory(t *testing.T) {
	c, err := Open("", time.Hour)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, ErrMiss)

	entry := &Entry{Data: []byte{0xFF, 0xD8, 0x01}, Width: 30, Height: 20, InputWidth: 20, InputHeight: 13}
	require.NoError(t, c.Set("k", entry))

	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	require.NoError(t, c.Purge())
	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.RunGC())
}

func TestCacheOnDiskPersists(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set("k", &Entry{Data: []byte("jpeg"), Width: 1, Height: 1}))
	require.NoError(t, c.Close())

	c, err = Open(dir, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got.Data)
}

func TestCacheExpires(t *testing.T) {
	c, err := Open("", time.Second)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k", &Entry{Data: []byte("x")}))
	// badger TTLs have one second resolution
	time.Sleep(2100 * time.Millisecond)

	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}
