package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictParse_WellFormed(t *testing.T) {
	line := `{"level":"info","time":"2025-12-01T00:00:00Z","module":"api","msg":"started","pid":42}`

	rec, ok := StrictParse(line)
	require.True(t, ok)
	assert.True(t, rec.Strict)
	assert.Equal(t, LevelInfo, rec.Level)
	assert.Equal(t, "api", rec.Module)
	assert.Equal(t, "started", rec.Msg)
	assert.Equal(t, int64(1764547200000), rec.TimeMillis())
}

func TestStrictParse_Blank(t *testing.T) {
	_, ok := StrictParse("")
	assert.False(t, ok)

	_, ok = StrictParse("   \n")
	assert.False(t, ok)
}

func TestStrictParse_NonJSON(t *testing.T) {
	_, ok := StrictParse("panic: runtime error at goroutine 7")
	assert.False(t, ok)
}

func TestStrictParse_MissingTime(t *testing.T) {
	_, ok := StrictParse(`{"level":"warn","msg":"no time here"}`)
	assert.False(t, ok)
}

func TestStrictParse_UnparseableTime(t *testing.T) {
	_, ok := StrictParse(`{"level":"warn","time":"not a time","msg":"x"}`)
	assert.False(t, ok)
}

func TestStrictParse_TimeGrammar(t *testing.T) {
	cases := []string{
		"2025-12-01T00:00:00Z",
		"2025-12-01T00:00:00.123Z",
		"2025-12-01T00:00:00+02:00",
		"2025-12-01T00:00:00",
		"2025-12-01 00:00:00",
		"2025-12-01",
	}

	for _, ts := range cases {
		line := `{"time":"` + ts + `","msg":"x"}`
		rec, ok := StrictParse(line)
		assert.Truef(t, ok, "expected %q to parse", ts)
		assert.True(t, rec.Strict)
	}
}

func TestStrictParse_ExtraFieldsPreserved(t *testing.T) {
	line := `{"time":"2025-12-01T00:00:00Z","msg":"x","request_id":"abc","count":3}`
	rec, ok := StrictParse(line)
	require.True(t, ok)
	assert.Equal(t, "abc", rec.Extra["request_id"])
}

func TestPermissiveParse_NonStructuredLineBecomesInfo(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	rec := PermissiveParse("a stray stack trace line", now)

	assert.Equal(t, LevelInfo, rec.Level)
	assert.Equal(t, "a stray stack trace line", rec.Msg)
	assert.Equal(t, now, rec.Time)
	assert.False(t, rec.Strict)
}

func TestPermissiveParse_StructuredWithoutTimeUsesNow(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	rec := PermissiveParse(`{"level":"error","msg":"boom"}`, now)

	assert.Equal(t, LevelError, rec.Level)
	assert.Equal(t, "boom", rec.Msg)
	assert.Equal(t, now, rec.Time)
	assert.False(t, rec.Strict)
}

func TestPermissiveParse_StrictLineStillStrict(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	rec := PermissiveParse(`{"time":"2025-12-01T00:00:00Z","msg":"x"}`, now)
	assert.True(t, rec.Strict)
}

func TestStrictParse_LongLineRoundTrips(t *testing.T) {
	payload := make([]byte, 4*1024*1024)
	for i := range payload {
		payload[i] = 'a'
	}
	line := `{"time":"2025-12-01T00:00:00Z","msg":"` + string(payload) + `"}`

	rec, ok := StrictParse(line)
	require.True(t, ok)
	assert.Len(t, rec.Msg, len(payload))
}

func TestFormat_RoundTripCarriesEssentialFields(t *testing.T) {
	line := `{"level":"warn","time":"2025-12-01T00:00:00Z","module":"db","msg":"slow query","ms":120}`
	rec, ok := StrictParse(line)
	require.True(t, ok)

	formatted := Format(rec)
	assert.Contains(t, formatted, "[warn]")
	assert.Contains(t, formatted, "db:")
	assert.Contains(t, formatted, "slow query")
	assert.Contains(t, formatted, "ms=120")
}
