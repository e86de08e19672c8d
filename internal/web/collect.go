package web

import (
	"context"
	"fmt"

	"github.com/loglens/loglens/internal/logfilter"
	"github.com/loglens/loglens/internal/record"
)

// collectAll runs the streaming reader to completion over spec with its
// Limit stripped (the reader never applies Offset), so pagination (§4.7.1) is applied afterward over
// the full matching set rather than truncating it early. It uses the
// permissive parse path (StreamAll) so stray non-JSON lines stay visible to
// bulk/raw callers instead of being silently dropped.
func (s *Server) collectAll(ctx context.Context, spec logfilter.Spec) ([]record.Record, error) {
	unbounded := spec
	unbounded.Limit = 0

	var matches []record.Record
	err := s.reader.StreamAll(ctx, s.cfg.LogPath, unbounded, func(r record.Record) bool {
		matches = append(matches, r)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("web: collect records: %w", err)
	}
	return matches, nil
}

// paginate applies offset/limit over a fully collected match set, returning
// the page and whether more records exist beyond it.
func paginate(all []record.Record, offset, limit int) ([]record.Record, bool) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, false
	}
	rest := all[offset:]
	if limit <= 0 || limit >= len(rest) {
		return rest, false
	}
	return rest[:limit], true
}
