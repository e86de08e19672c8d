package store

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/loglens/loglens/internal/logfilter"
	"github.com/loglens/loglens/internal/record"
)

// pollInterval is the fsnotify fallback ticker: some filesystems (network
// mounts, certain container overlays) never deliver write events, so the
// tailer re-checks the file's size on a timer regardless of what fsnotify
// reports.
const pollInterval = 2 * time.Second

// tailerChunkSize bounds a single read-on-growth call.
const tailerChunkSize = 256 * 1024

// subscriber is one live /api/logs/stream client. Matching records are
// pushed to ch; when ch is full the tailer drops that record for this
// subscriber rather than block the whole fan-out on one slow reader.
type subscriber struct {
	ch     chan record.Record
	filter logfilter.Spec
	done   chan struct{}
}

// Tailer watches a single NDJSON log file for appended bytes and fans
// newly-written matching records out to any number of live subscribers. It
// owns no offset cache: a tail only ever reads forward from its own last
// position, so the locator/cache are irrelevant here.
type Tailer struct {
	path   string
	logger *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	offset      int64
	carry       []byte
	size        int64
	modTime     time.Time
	lastHash    uint64
	lastHashSet bool
}

// NewTailer builds a tailer for path. Call Run to start watching; it blocks
// until ctx is cancelled.
func NewTailer(path string, logger *slog.Logger) *Tailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tailer{
		path:        path,
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
		ready:       make(chan struct{}),
	}
}

// Ready is closed once Run has completed its first watch registration
// (fsnotify or poll-fallback), the point at which /healthz should start
// reporting healthy.
func (t *Tailer) Ready() <-chan struct{} {
	return t.ready
}

func (t *Tailer) markReady() {
	t.readyOnce.Do(func() { close(t.ready) })
}

// Subscribe registers a new live listener matching filter. The returned
// channel is closed, and the listener removed, when ctx is cancelled.
// Deliveries never block: records that arrive while the channel's buffer
// is full are dropped for this listener.
func (t *Tailer) Subscribe(ctx context.Context, filter logfilter.Spec) <-chan record.Record {
	sub := &subscriber{
		ch:     make(chan record.Record, 256),
		filter: filter,
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	t.subscribers[sub] = struct{}{}
	t.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		t.mu.Lock()
		delete(t.subscribers, sub)
		t.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch
}

// Run seeds the tailer at the file's current end of file (it never replays
// history; the HTTP layer serves history via StreamReader first) and then
// watches for appended bytes until ctx is done.
func (t *Tailer) Run(ctx context.Context) error {
	if err := t.seedAtEOF(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warn("tailer: fsnotify unavailable, falling back to polling only", "error", err)
		t.markReady()
		return t.pollLoop(ctx)
	}
	defer watcher.Close()

	if err := watcher.Add(t.path); err != nil {
		t.logger.Warn("tailer: watch failed, falling back to polling only", "path", t.path, "error", err)
		t.markReady()
		return t.pollLoop(ctx)
	}

	t.markReady()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.poll()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("tailer: watcher error", "error", err)

		case <-ticker.C:
			t.poll()
		}
	}
}

func (t *Tailer) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.poll()
		}
	}
}

func (t *Tailer) seedAtEOF() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.offset = info.Size()
	t.size = info.Size()
	t.modTime = info.ModTime()
	t.mu.Unlock()
	return nil
}

// poll stats the file, detects truncation/rotation, and reads+fans-out any
// newly appended bytes since the last poll.
func (t *Tailer) poll() {
	info, err := os.Stat(t.path)
	if err != nil {
		t.logger.Warn("tailer: stat failed", "path", t.path, "error", err)
		return
	}

	t.mu.Lock()
	size := info.Size()
	rotated := size < t.size || (size == t.size && !info.ModTime().Equal(t.modTime) && info.ModTime().Before(t.modTime))
	if rotated {
		t.logger.Info("tailer: file truncated or rotated, resetting", "path", t.path)
		t.offset = 0
		t.carry = nil
	}
	t.size = size
	t.modTime = info.ModTime()
	offset := t.offset
	t.mu.Unlock()

	if size <= offset {
		return
	}

	f, err := os.Open(t.path)
	if err != nil {
		t.logger.Warn("tailer: reopen failed", "path", t.path, "error", err)
		return
	}
	defer f.Close()

	t.mu.Lock()
	carry := t.carry
	checkDedupe := rotated && t.lastHashSet
	t.mu.Unlock()

	for offset < size {
		want := int64(tailerChunkSize)
		if want > size-offset {
			want = size - offset
		}
		buf := make([]byte, want)
		n, err := f.ReadAt(buf, offset)
		if n == 0 {
			if err != nil {
				t.logger.Warn("tailer: read failed", "path", t.path, "error", err)
			}
			break
		}
		buf = buf[:n]
		offset += int64(n)

		carry = append(carry, buf...)
		for {
			idx := bytes.IndexByte(carry, '\n')
			if idx < 0 {
				break
			}
			line := trimCR(carry[:idx])
			carry = carry[idx+1:]
			t.dispatch(string(line), checkDedupe)
			checkDedupe = false
		}
	}

	t.mu.Lock()
	t.offset = offset
	t.carry = carry
	t.mu.Unlock()
}

// dispatch strict-parses one newly-appended line and delivers it to every
// subscriber whose filter matches. A subscriber whose channel is full is
// skipped for this record rather than blocking the poll loop. checkDedupe
// is set only for the first line read right after a truncation/rotation
// reset, to absorb the race where the writer's last pre-rotation line and
// first post-rotation line are byte-identical.
func (t *Tailer) dispatch(line string, checkDedupe bool) {
	rec, ok := record.StrictParse(line)
	if !ok {
		return
	}

	hash := xxhash.Sum64String(line)

	t.mu.Lock()
	if checkDedupe && t.lastHashSet && hash == t.lastHash {
		t.mu.Unlock()
		return
	}
	t.lastHash = hash
	t.lastHashSet = true
	subs := make([]*subscriber, 0, len(t.subscribers))
	for sub := range t.subscribers {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	for _, sub := range subs {
		if !sub.filter.Match(rec) {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			t.logger.Warn("tailer: subscriber channel full, dropping record")
		}
	}
}
