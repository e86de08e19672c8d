package store

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/loglens/loglens/internal/record"
)

// Tuning constants for the locator's probe and confirmation phases. These
// mirror the suggested sizes in the offset-locator design: a cheap 4KiB
// probe that escalates to a 4MiB probe when a region has no newline at
// all, and a 256KiB confirmation window that doubles whenever it holds no
// complete line, until a line fits or EOF is reached.
const (
	probeInitialSize   = 4 * 1024
	probeEnlargedSize  = 4 * 1024 * 1024
	confirmWindowStart = 256 * 1024
	smallRangeWindow   = 64 * 1024 // W0: below this, skip straight to confirmation
)

// LocateResult is the outcome of Locate: the byte offset of the first
// strict record with time >= target, and that record's raw line (used by
// the offset cache to validate future hits). Found is false when no
// record in the file satisfies the bound.
type LocateResult struct {
	Offset    int64
	FirstLine string
	Found     bool
}

// Locate performs the binary search described by the offset-locator design:
// O(log N + S) where N is file size and S is the confirmation scan length.
// It tolerates non-JSON noise and oversized records by escalating probe and
// scan window sizes rather than ever retreating into an already-confirmed
// region. ra must support concurrent ReadAt calls (an *os.File does).
func Locate(ctx context.Context, ra io.ReaderAt, size int64, target time.Time) (LocateResult, error) {
	if size <= 0 {
		return LocateResult{}, nil
	}

	low, high := int64(0), size
	lowAligned := true

	for high-low > smallRangeWindow {
		if err := ctx.Err(); err != nil {
			return LocateResult{}, err
		}

		mid := low + (high-low)/2

		outcome, err := probeAt(ra, mid, size, target)
		if err != nil {
			return LocateResult{}, err
		}

		switch outcome.kind {
		case outcomeRetreat, outcomeGOE:
			high = mid
		case outcomeLessThan:
			low = outcome.low
			lowAligned = true
		case outcomeNoStrict:
			low = mid + probeInitialSize
			lowAligned = false
			if low > high {
				low = high
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return LocateResult{}, err
	}

	offset, line, found, err := confirmationScan(ctx, ra, low, lowAligned, size, target)
	if err != nil {
		return LocateResult{}, err
	}

	return LocateResult{Offset: offset, FirstLine: line, Found: found}, nil
}

type outcomeKind int

const (
	outcomeRetreat outcomeKind = iota
	outcomeGOE
	outcomeLessThan
	outcomeNoStrict
)

type probeOutcome struct {
	kind outcomeKind
	low  int64
}

type lineSpan struct {
	start, end int64
	content    string
}

// probeAt implements one binary-search probe: it locates the candidate
// line beginning after the first newline at or after mid, strict-parses
// it, and falls back to scanning later lines within the same probe buffer
// when the candidate itself is noise.
func probeAt(ra io.ReaderAt, mid, size int64, target time.Time) (probeOutcome, error) {
	buf, atEOF, err := readChunk(ra, mid, probeInitialSize, size)
	if err != nil {
		return probeOutcome{}, err
	}
	spans := splitCompleteLines(buf, mid, atEOF)

	if len(spans) == 0 {
		buf, atEOF, err = readChunk(ra, mid, probeEnlargedSize, size)
		if err != nil {
			return probeOutcome{}, err
		}
		spans = splitCompleteLines(buf, mid, atEOF)
		if len(spans) == 0 {
			return probeOutcome{kind: outcomeRetreat}, nil
		}
	}

	if len(spans) < 2 {
		candStart := spans[0].end
		if candStart >= size {
			// No line begins after mid: the line containing mid is the
			// last one in the file, so the answer (if any) starts before mid.
			return probeOutcome{kind: outcomeRetreat}, nil
		}
		candEnd, err := findLineEnd(ra, candStart, size)
		if err != nil {
			return probeOutcome{}, err
		}
		content, err := readLineContent(ra, candStart, candEnd, size)
		if err != nil {
			return probeOutcome{}, err
		}
		return evaluateLine(content, candEnd, target), nil
	}

	candidate := spans[1]
	if outcome, ok := tryEvaluate(candidate, target); ok {
		return outcome, nil
	}
	for _, ln := range spans[2:] {
		if outcome, ok := tryEvaluate(ln, target); ok {
			return outcome, nil
		}
	}

	return probeOutcome{kind: outcomeNoStrict}, nil
}

func tryEvaluate(ln lineSpan, target time.Time) (probeOutcome, bool) {
	rec, ok := record.StrictParse(ln.content)
	if !ok {
		return probeOutcome{}, false
	}
	if rec.Time.Before(target) {
		return probeOutcome{kind: outcomeLessThan, low: ln.end}, true
	}
	return probeOutcome{kind: outcomeGOE}, true
}

func evaluateLine(content string, end int64, target time.Time) probeOutcome {
	rec, ok := record.StrictParse(content)
	if !ok {
		return probeOutcome{kind: outcomeNoStrict}
	}
	if rec.Time.Before(target) {
		return probeOutcome{kind: outcomeLessThan, low: end}
	}
	return probeOutcome{kind: outcomeGOE}
}

// confirmationScan walks forward from low, returning the first strict
// record whose time >= target. When low does not fall on a known line
// boundary (it was advanced past a noisy region with no strict content),
// the leading fragment of the first window is discarded before any line
// is evaluated, since it may be the tail of a line already accounted for.
func confirmationScan(ctx context.Context, ra io.ReaderAt, low int64, aligned bool, size int64, target time.Time) (int64, string, bool, error) {
	if low >= size {
		return 0, "", false, nil
	}

	cursor := low
	windowSize := int64(confirmWindowStart)
	firstRead := true

	for cursor < size {
		if err := ctx.Err(); err != nil {
			return 0, "", false, err
		}

		buf, atEOF, err := readChunk(ra, cursor, windowSize, size)
		if err != nil {
			return 0, "", false, err
		}
		if len(buf) == 0 {
			return 0, "", false, nil
		}

		spans := splitCompleteLines(buf, cursor, atEOF)
		if len(spans) == 0 {
			if atEOF {
				return 0, "", false, nil
			}
			windowSize *= 2
			continue
		}

		startIdx := 0
		if firstRead && !aligned {
			startIdx = 1
		}
		firstRead = false

		for _, ln := range spans[startIdx:] {
			rec, ok := record.StrictParse(ln.content)
			if ok && !rec.Time.Before(target) {
				return ln.start, ln.content, true, nil
			}
		}

		consumed := spans[len(spans)-1].end
		if consumed >= size {
			return 0, "", false, nil
		}
		cursor = consumed
		windowSize = confirmWindowStart
	}

	return 0, "", false, nil
}

// readChunk reads up to want bytes starting at start, clamped to size. It
// reports whether the read reached EOF (i.e. covers the file's final byte).
func readChunk(ra io.ReaderAt, start, want, size int64) ([]byte, bool, error) {
	if start >= size {
		return nil, true, nil
	}
	if want > size-start {
		want = size - start
	}
	buf := make([]byte, want)
	n, err := ra.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return nil, false, err
	}
	atEOF := start+int64(n) >= size
	return buf[:n], atEOF, nil
}

// findLineEnd locates the newline terminating the line beginning at start,
// growing the read window geometrically. Returns size when the line runs
// to EOF without a trailing newline.
func findLineEnd(ra io.ReaderAt, start, size int64) (int64, error) {
	if start >= size {
		return size, nil
	}

	window := int64(probeEnlargedSize)
	for {
		buf, atEOF, err := readChunk(ra, start, window, size)
		if err != nil {
			return 0, err
		}
		if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
			return start + int64(idx) + 1, nil
		}
		if atEOF {
			return size, nil
		}
		window *= 2
	}
}

func readLineContent(ra io.ReaderAt, start, end, size int64) (string, error) {
	if end > size {
		end = size
	}
	if end <= start {
		return "", nil
	}
	buf := make([]byte, end-start)
	n, err := ra.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(string(buf[:n]), "\r\n"), nil
}

// splitCompleteLines splits buf (which begins at absolute offset base)
// into fully-delimited lines. The trailing fragment after the last
// newline is included only when atEOF is true (the file truly ends there
// without a final newline); otherwise it is dropped since the caller must
// grow its window to see the rest of it.
func splitCompleteLines(buf []byte, base int64, atEOF bool) []lineSpan {
	var spans []lineSpan
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] == '\n' {
			content := strings.TrimRight(string(buf[start:i]), "\r")
			spans = append(spans, lineSpan{start: base + int64(start), end: base + int64(i+1), content: content})
			start = i + 1
		}
	}
	if atEOF && start < len(buf) {
		content := strings.TrimRight(string(buf[start:]), "\r\n")
		spans = append(spans, lineSpan{start: base + int64(start), end: base + int64(len(buf)), content: content})
	}
	return spans
}

