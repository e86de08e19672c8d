package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/internal/logfilter"
	"github.com/loglens/loglens/internal/logfixture"
	"github.com/loglens/loglens/internal/record"
)

func collect(t *testing.T, reader *StreamReader, path string, spec logfilter.Spec) []record.Record {
	t.Helper()
	var out []record.Record
	err := reader.Stream(context.Background(), path, spec, func(r record.Record) bool {
		out = append(out, r)
		return true
	})
	require.NoError(t, err)
	return out
}

func TestStreamReader_FromBoundOnlyEmitsAtOrAfter(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount: 500,
		Start:       start,
		Interval:    time.Minute,
		Seed:        21,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	from := start.Add(2 * time.Hour)
	spec := logfilter.NewSpec(&from, nil, nil, nil, 0, 0)
	reader := NewStreamReader(NewOffsetCache())

	recs := collect(t, reader, result.Path, spec)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.False(t, r.Time.Before(from))
	}
	assert.True(t, recs[0].Time.Equal(from))
}

func TestStreamReader_ToBoundExcludesLater(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount: 200,
		Start:       start,
		Interval:    time.Minute,
		Seed:        22,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	to := start.Add(time.Hour)
	spec := logfilter.NewSpec(nil, &to, nil, nil, 0, 0)
	reader := NewStreamReader(NewOffsetCache())

	recs := collect(t, reader, result.Path, spec)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.False(t, r.Time.After(to))
	}
}

func TestStreamReader_LimitStopsEarly(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount: 200,
		Start:       start,
		Interval:    time.Minute,
		Seed:        23,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	spec := logfilter.NewSpec(nil, nil, nil, nil, 10, 0)
	reader := NewStreamReader(NewOffsetCache())

	recs := collect(t, reader, result.Path, spec)
	assert.Len(t, recs, 10)
}

func TestStreamReader_BulkMatchesLiveStreamHistoricalPrefix(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount: 300,
		Start:       start,
		Interval:    time.Minute,
		Seed:        24,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	spec := logfilter.NewSpec(nil, nil, nil, nil, 0, 0)
	reader := NewStreamReader(NewOffsetCache())

	// first: the bulk path (StreamAll); second: the live stream's
	// historical prefix (Stream).
	var first []record.Record
	err = reader.StreamAll(context.Background(), result.Path, spec, func(r record.Record) bool {
		first = append(first, r)
		return true
	})
	require.NoError(t, err)
	second := collect(t, reader, result.Path, spec)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Time.Equal(second[i].Time))
		assert.Equal(t, first[i].Msg, second[i].Msg)
	}
}

func TestStreamReader_StreamAllSurfacesNonJSONLines(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount: 10,
		Start:       start,
		Interval:    time.Minute,
		GapAfter:    5,
		GapBytes:    256,
		Seed:        26,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	spec := logfilter.NewSpec(nil, nil, nil, nil, 0, 0)
	reader := NewStreamReader(NewOffsetCache())

	var strict, permissive []record.Record
	err = reader.Stream(context.Background(), result.Path, spec, func(r record.Record) bool {
		strict = append(strict, r)
		return true
	})
	require.NoError(t, err)

	err = reader.StreamAll(context.Background(), result.Path, spec, func(r record.Record) bool {
		permissive = append(permissive, r)
		return true
	})
	require.NoError(t, err)

	assert.Greater(t, len(permissive), len(strict))
	foundNonStrict := false
	for _, r := range permissive {
		if !r.Strict {
			foundNonStrict = true
			assert.Equal(t, record.LevelInfo, r.Level)
		}
	}
	assert.True(t, foundNonStrict, "expected StreamAll to surface the non-JSON gap lines")
}

func TestStreamReader_GiantLinePassesThroughUnchanged(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	result, err := logfixture.Generate(logfixture.Options{
		RecordCount:    5,
		Start:          start,
		Interval:       time.Minute,
		GiantLineBytes: 3 * 1024 * 1024,
		Seed:           25,
	})
	require.NoError(t, err)
	defer os.Remove(result.Path)

	spec := logfilter.NewSpec(nil, nil, nil, nil, 0, 0)
	reader := NewStreamReader(NewOffsetCache())

	recs := collect(t, reader, result.Path, spec)
	require.Len(t, recs, 6)
	assert.Len(t, recs[5].Extra["blob"], 3*1024*1024)
}
