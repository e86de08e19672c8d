package store

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// cacheWindow bounds how far a request's from bound may drift from a cache
// entry's before it is no longer considered nearby enough to reuse.
const cacheWindow = time.Hour

// cacheEntry is the single process-wide offset cache slot. validationHash
// lets a hit be rejected on a cheap 64-bit comparison before paying for the
// full byte-for-byte re-read of validationLine.
type cacheEntry struct {
	fromMillis     int64
	byteOffset     int64
	validationLine string
	validationHash uint64
	fileSize       int64
}

// OffsetCache is the single-slot, process-wide cache described by the
// offset-cache design: it accelerates repeated queries whose from bound
// drifts forward over a stable file, and self-heals via re-validation
// rather than any rotation-detection logic of its own.
type OffsetCache struct {
	mu    sync.Mutex
	entry *cacheEntry
}

// NewOffsetCache returns an empty cache.
func NewOffsetCache() *OffsetCache {
	return &OffsetCache{}
}

// Lookup returns a usable byte offset for from, or ok=false on a miss. It
// validates the candidate entry against the current file contents so a
// stale or rotated file never yields a wrong offset.
func (c *OffsetCache) Lookup(ctx context.Context, ra io.ReaderAt, fileSize int64, from time.Time) (int64, bool) {
	c.mu.Lock()
	entry := c.entry
	c.mu.Unlock()

	if entry == nil {
		return 0, false
	}

	fromMillis := from.UnixMilli()
	if fromMillis < entry.fromMillis {
		return 0, false
	}
	if fromMillis-entry.fromMillis > cacheWindow.Milliseconds() {
		return 0, false
	}
	if fileSize < entry.fileSize {
		return 0, false
	}

	if !c.validate(ra, fileSize, entry) {
		c.Clear()
		return 0, false
	}

	return entry.byteOffset, true
}

// validate re-reads validationLine.length+100 bytes at byteOffset and
// confirms the first line still matches, per the offset-cache entry
// invariant. The hash comparison short-circuits the common case cheaply.
func (c *OffsetCache) validate(ra io.ReaderAt, fileSize int64, entry *cacheEntry) bool {
	if entry.byteOffset >= fileSize {
		return false
	}

	readLen := int64(len(entry.validationLine)) + 100
	if entry.byteOffset+readLen > fileSize {
		readLen = fileSize - entry.byteOffset
	}
	if readLen <= 0 {
		return false
	}

	buf := make([]byte, readLen)
	n, err := ra.ReadAt(buf, entry.byteOffset)
	if err != nil && err != io.EOF {
		return false
	}
	buf = buf[:n]

	firstLine := buf
	if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
		firstLine = buf[:idx]
	}
	firstLine = trimCR(firstLine)

	if xxhash.Sum64(firstLine) != entry.validationHash {
		return false
	}
	return string(firstLine) == entry.validationLine
}

// Store writes a new entry, overwriting whatever was there. Call only
// after a locator miss that found a usable offset; the write is a single
// atomic pointer swap so concurrent readers never observe a torn entry.
func (c *OffsetCache) Store(from time.Time, byteOffset int64, validationLine string, fileSize int64) {
	entry := &cacheEntry{
		fromMillis:     from.UnixMilli(),
		byteOffset:     byteOffset,
		validationLine: validationLine,
		validationHash: xxhash.Sum64String(validationLine),
		fileSize:       fileSize,
	}

	c.mu.Lock()
	c.entry = entry
	c.mu.Unlock()
}

// Clear empties the cache slot, used on validation failure or rotation.
func (c *OffsetCache) Clear() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

func trimCR(buf []byte) []byte {
	if n := len(buf); n > 0 && buf[n-1] == '\r' {
		return buf[:n-1]
	}
	return buf
}
