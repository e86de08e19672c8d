// Package logfixture generates synthetic NDJSON log files for tests: long
// chronological runs, non-JSON gaps, same-timestamp bursts, and oversized
// lines, matching the scenarios in the reader's end-to-end test suite.
package logfixture

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options configures Generate. Zero values fall back to DefaultOptions'
// fields the way hargen.GenerateOptions falls back per-field.
type Options struct {
	// RecordCount is the number of strict records to emit before any gap
	// or burst content.
	RecordCount int
	// Start is the timestamp of the first record.
	Start time.Time
	// Interval is the spacing between consecutive records.
	Interval time.Duration
	// Seed seeds the RNG; 0 uses the current time.
	Seed int64

	// GapAfter, when > 0, inserts GapBytes of non-JSON noise after the
	// GapAfter-th record.
	GapAfter int
	GapBytes int

	// BurstAfter, when > 0, inserts BurstBytes worth of records all sharing
	// one timestamp after the BurstAfter-th record.
	BurstAfter    int
	BurstBytes    int
	BurstAt       time.Time
	BurstInterval time.Duration

	// GiantLineBytes, when > 0, emits one oversized record (a large base64
	// blob in an extra field) as the final record.
	GiantLineBytes int

	Levels  []string
	Modules []string
}

// DefaultOptions mirrors hargen's DefaultGenerateOptions shape: sensible
// defaults for fields callers don't set.
var DefaultOptions = Options{
	RecordCount: 100,
	Interval:    time.Minute,
	Levels:      []string{"debug", "info", "warn", "error"},
	Modules:     []string{"api", "db", "worker"},
}

func withDefaults(opts Options) Options {
	if opts.RecordCount == 0 {
		opts.RecordCount = DefaultOptions.RecordCount
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultOptions.Interval
	}
	if opts.Start.IsZero() {
		opts.Start = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	}
	if len(opts.Levels) == 0 {
		opts.Levels = DefaultOptions.Levels
	}
	if len(opts.Modules) == 0 {
		opts.Modules = DefaultOptions.Modules
	}
	return opts
}

// Result reports what Generate produced, mirroring hargen.GenerateResult.
type Result struct {
	Path           string
	TotalRecords   int
	FirstRecordAt  time.Time
	LastRecordAt   time.Time
	ContainsGap    bool
	ContainsBurst  bool
	ContainsGiant  bool
}

// Generate writes a synthetic NDJSON log to a new temp file and returns its
// path and summary.
func Generate(opts Options) (*Result, error) {
	tmp, err := os.CreateTemp("", "loglens-fixture-*.ndjson")
	if err != nil {
		return nil, fmt.Errorf("logfixture: create temp file: %w", err)
	}
	defer tmp.Close()

	return GenerateToFile(tmp.Name(), opts)
}

// GenerateToFile writes a synthetic NDJSON log to path, creating parent
// directories as needed, mirroring hargen.GenerateToFile.
func GenerateToFile(path string, opts Options) (*Result, error) {
	opts = withDefaults(opts)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logfixture: create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("logfixture: create file: %w", err)
	}
	defer file.Close()

	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewSource(opts.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	result := &Result{Path: path, FirstRecordAt: opts.Start}

	ts := opts.Start
	for i := 0; i < opts.RecordCount; i++ {
		if err := writeRecord(file, ts, randChoice(rng, opts.Levels), randChoice(rng, opts.Modules), fmt.Sprintf("record %d", i)); err != nil {
			return nil, err
		}
		result.TotalRecords++
		result.LastRecordAt = ts

		if opts.GapAfter > 0 && i == opts.GapAfter-1 && opts.GapBytes > 0 {
			if err := writeGap(file, opts.GapBytes); err != nil {
				return nil, err
			}
			result.ContainsGap = true
		}

		if opts.BurstAfter > 0 && i == opts.BurstAfter-1 && opts.BurstBytes > 0 {
			burstAt := opts.BurstAt
			if burstAt.IsZero() {
				burstAt = ts.Add(opts.Interval)
			}
			written := 0
			burstIndex := 0
			for written < opts.BurstBytes {
				line := burstLine(burstAt, burstIndex)
				if _, err := file.WriteString(line); err != nil {
					return nil, fmt.Errorf("logfixture: write burst: %w", err)
				}
				written += len(line)
				burstIndex++
			}
			result.ContainsBurst = true
			result.LastRecordAt = burstAt
		}

		ts = ts.Add(opts.Interval)
	}

	if opts.GiantLineBytes > 0 {
		if err := writeGiant(file, ts, opts.GiantLineBytes); err != nil {
			return nil, err
		}
		result.ContainsGiant = true
		result.TotalRecords++
		result.LastRecordAt = ts
	}

	return result, nil
}

func randChoice(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}

func writeRecord(w *os.File, ts time.Time, level, module, msg string) error {
	rec := map[string]any{
		"level":  level,
		"time":   ts.UTC().Format(time.RFC3339Nano),
		"module": module,
		"msg":    msg,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("logfixture: marshal record: %w", err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("logfixture: write record: %w", err)
	}
	return nil
}

// writeGap emits non-JSON noise lines (stack-trace-like text) totaling at
// least n bytes, exercising the locator's noise-tolerance path.
func writeGap(w *os.File, n int) error {
	line := "panic: runtime error: index out of range [12] with length 10\n\tat internal/worker.go:142\n"
	written := 0
	for written < n {
		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("logfixture: write gap: %w", err)
		}
		written += len(line)
	}
	return nil
}

func burstLine(ts time.Time, index int) string {
	rec := map[string]any{
		"level":  "info",
		"time":   ts.UTC().Format(time.RFC3339Nano),
		"module": "burst",
		"msg":    fmt.Sprintf("burst record %d", index),
	}
	line, _ := json.Marshal(rec)
	return string(line) + "\n"
}

// writeGiant emits a single record whose extra field is a large synthetic
// blob, exercising the reader/locator's no-line-length-cap requirement.
func writeGiant(w *os.File, ts time.Time, n int) error {
	blob := strings.Repeat("A", n)
	rec := map[string]any{
		"level":  "debug",
		"time":   ts.UTC().Format(time.RFC3339Nano),
		"module": "payload",
		"msg":    "giant embedded payload",
		"blob":   blob,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("logfixture: marshal giant record: %w", err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("logfixture: write giant record: %w", err)
	}
	return nil
}
