package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/internal/logfilter"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTailer_DeliversAppendedRecord(t *testing.T) {
	f, err := os.CreateTemp("", "tailer-test-*.ndjson")
	require.NoError(t, err)
	path := f.Name()
	defer os.Remove(path)
	f.Close()

	logger := noopLogger()
	tailer := NewTailer(path, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tailer.Run(ctx)
	time.Sleep(50 * time.Millisecond) // allow seedAtEOF to run before the write

	ch := tailer.Subscribe(ctx, logfilter.Spec{})

	line := `{"level":"info","time":"2025-12-01T00:00:00Z","msg":"hello"}` + "\n"
	appendLine(t, path, line)

	select {
	case rec, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, "hello", rec.Msg)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for tailed record")
	}
}

func TestTailer_ResetsOnTruncation(t *testing.T) {
	f, err := os.CreateTemp("", "tailer-test-*.ndjson")
	require.NoError(t, err)
	path := f.Name()
	defer os.Remove(path)

	for i := 0; i < 5; i++ {
		fmt.Fprintf(f, `{"level":"info","time":"2025-12-01T00:0%d:00Z","msg":"pre-rotation %d"}`+"\n", i, i)
	}
	f.Close()

	logger := noopLogger()
	tailer := NewTailer(path, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tailer.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	ch := tailer.Subscribe(ctx, logfilter.Spec{})

	require.NoError(t, os.Truncate(path, 0))
	time.Sleep(50 * time.Millisecond)

	line := `{"level":"info","time":"2025-12-02T00:00:00Z","msg":"post-rotation"}` + "\n"
	appendLine(t, path, line)

	select {
	case rec, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, "post-rotation", rec.Msg)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for post-rotation record")
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(line)
	require.NoError(t, err)
}
