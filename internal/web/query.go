package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loglens/loglens/internal/logfilter"
)

// acceptedLayouts mirrors the instant grammar record.StrictParse accepts, so
// a from/to query value is parsed under the same rules a log line's own
// "time" field is.
var acceptedLayouts = []struct {
	layout string
	hasTZ  bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

func parseQueryInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range acceptedLayouts {
		if l.hasTZ {
			if t, err := time.Parse(l.layout, s); err == nil {
				return t, true
			}
			continue
		}
		if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFilterSpec builds a logfilter.Spec from a request's common query
// parameters (§6): from, to, level, module, limit, offset.
func parseFilterSpec(r *http.Request) logfilter.Spec {
	q := r.URL.Query()

	var from, to *time.Time
	if t, ok := parseQueryInstant(q.Get("from")); ok {
		from = &t
	}
	if t, ok := parseQueryInstant(q.Get("to")); ok {
		to = &t
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return logfilter.NewSpec(from, to, splitCSV(q.Get("level")), splitCSV(q.Get("module")), limit, offset)
}
