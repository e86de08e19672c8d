package web

import (
	"fmt"
	"net/http"

	"github.com/loglens/loglens/internal/record"
)

// handleRaw implements §4.7.2: the same collect-then-paginate shape as
// bulk, rendered as plain text with a header comment block carrying
// pagination hints instead of a JSON envelope.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	spec := parseFilterSpec(r)

	all, err := s.collectAll(r.Context(), spec)
	if err != nil {
		s.logger.Warn("raw: collect failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page, hasMore := paginate(all, spec.Offset, spec.Limit)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# total=%d count=%d offset=%d hasMore=%t\n", len(all), len(page), spec.Offset, hasMore)
	for _, rec := range page {
		fmt.Fprintln(w, record.Format(rec))
	}
}
