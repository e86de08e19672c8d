package web

import (
	"encoding/json"
	"net/http"

	"github.com/loglens/loglens/internal/record"
)

type bulkResponse struct {
	Logs    []record.Record `json:"logs"`
	Count   int             `json:"count"`
	Total   int             `json:"total"`
	HasMore bool            `json:"hasMore"`
}

// handleBulk implements §4.7.1: collect every match, then apply
// offset/limit, responding with {logs, count, total, hasMore}.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	spec := parseFilterSpec(r)

	all, err := s.collectAll(r.Context(), spec)
	if err != nil {
		s.logger.Warn("bulk: collect failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	page, hasMore := paginate(all, spec.Offset, spec.Limit)
	if page == nil {
		page = []record.Record{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(bulkResponse{
		Logs:    page,
		Count:   len(page),
		Total:   len(all),
		HasMore: hasMore,
	})
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
