package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/loglens/loglens/internal/logfilter"
	"github.com/loglens/loglens/internal/record"
)

// cacheOffsetThreshold is the file size above which a from bound is worth
// consulting the cache/locator for; small files are scanned from offset 0.
const cacheOffsetThreshold = 1024 * 1024

const readerChunkSize = 128 * 1024

// Sink receives matching records in file order. It returns false to ask
// the reader to stop (the caller's consumer is gone or no longer wants
// more), which the reader treats the same as a limit having been reached.
type Sink func(record.Record) bool

// StreamReader reads a log file from a computed starting offset, applying
// a filter with early termination and back-pressure expressed entirely
// through Sink's return value and ctx cancellation.
type StreamReader struct {
	cache *OffsetCache
}

// NewStreamReader builds a reader backed by the given offset cache. A nil
// cache disables caching (every from-bounded query re-runs the locator).
func NewStreamReader(cache *OffsetCache) *StreamReader {
	return &StreamReader{cache: cache}
}

// Stream opens path, resolves a starting offset for spec.From (via cache
// then locator when the file is large enough to bother), and emits every
// strictly-parsed matching record in file order to sink until EOF, a limit,
// an early termination on spec.To, or ctx cancellation. Lines that fail to
// strict-parse (blank, non-JSON, or missing/invalid time) are silently
// dropped: this is the mode the live stream and the HTML shell use, since
// both need a trustworthy Time field to render or to decide the
// historical/live boundary.
func (r *StreamReader) Stream(ctx context.Context, path string, spec logfilter.Spec, sink Sink) error {
	return r.stream(ctx, path, spec, sink, false)
}

// StreamAll behaves like Stream but falls back to record.PermissiveParse for
// any line that fails to strict-parse, so stray non-JSON lines stay visible
// to the user rather than vanishing. This is the mode the bulk and raw
// endpoints use; the offset locator and live stream never call it.
func (r *StreamReader) StreamAll(ctx context.Context, path string, spec logfilter.Spec, sink Sink) error {
	return r.stream(ctx, path, spec, sink, true)
}

func (r *StreamReader) stream(ctx context.Context, path string, spec logfilter.Spec, sink Sink, permissive bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("store: open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("store: stat log file: %w", err)
	}
	size := info.Size()

	startOffset, err := r.resolveOffset(ctx, f, size, spec.From)
	if err != nil {
		return err
	}

	if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
		return fmt.Errorf("store: seek to offset %d: %w", startOffset, err)
	}

	return r.emit(ctx, f, spec, sink, permissive)
}

// resolveOffset consults the cache, falling back to the locator on a miss.
// Below cacheOffsetThreshold or with no from bound, it returns 0: the
// locator's O(log N) advantage isn't worth the overhead on a small file.
func (r *StreamReader) resolveOffset(ctx context.Context, f *os.File, size int64, from *time.Time) (int64, error) {
	if from == nil || size <= cacheOffsetThreshold {
		return 0, nil
	}

	if r.cache != nil {
		if offset, ok := r.cache.Lookup(ctx, f, size, *from); ok {
			return offset, nil
		}
	}

	result, err := Locate(ctx, f, size, *from)
	if err != nil {
		return 0, fmt.Errorf("store: locate offset: %w", err)
	}
	if !result.Found {
		return size, nil
	}

	if r.cache != nil {
		r.cache.Store(*from, result.Offset, result.FirstLine, size)
	}

	return result.Offset, nil
}

// emit reads chunks from f (already positioned at the start offset),
// reassembles lines across chunk boundaries, parses each complete line
// (strict, or strict-with-permissive-fallback per permissive), and
// delivers filter matches to sink in file order.
func (r *StreamReader) emit(ctx context.Context, f *os.File, spec logfilter.Spec, sink Sink, permissive bool) error {
	reader := bufio.NewReaderSize(f, readerChunkSize)
	var carry []byte
	matches := 0
	now := time.Now()

	flushLine := func(line []byte) (stop bool) {
		text := sanitizeUTF8(line)

		rec, ok := record.StrictParse(text)
		if !ok {
			if !permissive {
				return false
			}
			if strings.TrimSpace(text) == "" {
				return false
			}
			rec = record.PermissiveParse(text, now)
		}
		if spec.ExceedsTo(rec) {
			return true
		}
		if !spec.Match(rec) {
			return false
		}
		if !sink(rec) {
			return true
		}
		matches++
		return spec.Limit > 0 && matches >= spec.Limit
	}

	buf := make([]byte, readerChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := reader.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)
			for {
				idx := bytes.IndexByte(carry, '\n')
				if idx < 0 {
					break
				}
				line := carry[:idx]
				carry = carry[idx+1:]
				if flushLine(line) {
					return nil
				}
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("store: read log file: %w", err)
		}
	}

	if len(carry) > 0 {
		flushLine(carry)
	}

	return nil
}

// sanitizeUTF8 replaces invalid byte sequences the way the reader's
// decode step is specified to: tolerate them rather than fail the line.
func sanitizeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(trimCR(b))
	}
	return string(trimCR([]byte(toValidUTF8(string(b)))))
}

func toValidUTF8(s string) string {
	var buf []byte
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf = append(buf, []byte(string(utf8.RuneError))...)
			i++
			continue
		}
		buf = append(buf, s[i:i+size]...)
		i += size
	}
	return string(buf)
}
