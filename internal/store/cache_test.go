package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/internal/logfixture"
)

func TestOffsetCache_MissOnEmpty(t *testing.T) {
	cache := NewOffsetCache()
	f, err := os.CreateTemp("", "cache-test-*")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	_, ok := cache.Lookup(context.Background(), f, 0, time.Now())
	assert.False(t, ok)
}

func TestOffsetCache_HitWithinWindow(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount: 1000,
		Start:       start,
		Interval:    time.Minute,
		Seed:        11,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	f, err := os.Open(result.Path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	res, err := Locate(context.Background(), f, info.Size(), start.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, res.Found)

	cache := NewOffsetCache()
	cache.Store(start.Add(time.Hour), res.Offset, res.FirstLine, info.Size())

	offset, ok := cache.Lookup(context.Background(), f, info.Size(), start.Add(time.Hour+10*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, res.Offset, offset)
}

func TestOffsetCache_MissOutsideWindow(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount: 1000,
		Start:       start,
		Interval:    time.Minute,
		Seed:        12,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	f, err := os.Open(result.Path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	cache := NewOffsetCache()
	cache.Store(start, 0, "", info.Size())

	_, ok := cache.Lookup(context.Background(), f, info.Size(), start.Add(2*time.Hour))
	assert.False(t, ok)
}

func TestOffsetCache_MissWhenFromBeforeEntry(t *testing.T) {
	cache := NewOffsetCache()
	cache.Store(time.Date(2025, 12, 1, 1, 0, 0, 0, time.UTC), 100, "x", 1000)

	f, err := os.CreateTemp("", "cache-test-*")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	_, ok := cache.Lookup(context.Background(), f, 1000, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestOffsetCache_InvalidatesOnContentChange(t *testing.T) {
	f, err := os.CreateTemp("", "cache-test-*")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	line := `{"level":"info","time":"2025-12-01T00:00:00Z","msg":"hello"}` + "\n"
	_, err = f.WriteString(line)
	require.NoError(t, err)

	cache := NewOffsetCache()
	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	cache.Store(from, 0, `{"level":"info","time":"2025-12-01T00:00:00Z","msg":"hello"}`, int64(len(line)))

	// rewrite the file's content at the same offset
	require.NoError(t, f.Truncate(0))
	_, err = f.WriteAt([]byte(`{"level":"info","time":"2025-12-01T00:00:00Z","msg":"changed"}`+"\n"), 0)
	require.NoError(t, err)

	info, err := f.Stat()
	require.NoError(t, err)

	_, ok := cache.Lookup(context.Background(), f, info.Size(), from)
	assert.False(t, ok)
}

func TestOffsetCache_Clear(t *testing.T) {
	cache := NewOffsetCache()
	cache.Store(time.Now(), 10, "x", 100)
	cache.Clear()

	f, err := os.CreateTemp("", "cache-test-*")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	_, ok := cache.Lookup(context.Background(), f, 100, time.Now())
	assert.False(t, ok)
}
