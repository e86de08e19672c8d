package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/loglens/loglens/internal/record"
)

// handleStream implements §4.7.3: historical matches via the streaming
// reader, a historical-end sentinel naming the count, then — only when no
// limit was requested — a live tail for the remainder of the connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	spec := parseFilterSpec(r)

	historical := 0
	err := s.reader.Stream(ctx, s.cfg.LogPath, spec, func(rec record.Record) bool {
		if ctx.Err() != nil {
			return false
		}
		if !writeSSEData(w, rec) {
			return false
		}
		historical++
		flusher.Flush()
		return true
	})
	if err != nil {
		s.logger.Warn("stream: historical read failed", "error", err)
	}

	fmt.Fprintf(w, "event: historical-end\ndata: %d\n\n", historical)
	flusher.Flush()

	if spec.Limit > 0 {
		return
	}

	ch := s.tailer.Subscribe(ctx, spec)
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if !writeSSEData(w, rec) {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEData(w http.ResponseWriter, rec record.Record) bool {
	payload, err := json.Marshal(rec)
	if err != nil {
		return true
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err == nil
}
