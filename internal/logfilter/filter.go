// Package logfilter evaluates a filter spec against a parsed record. It is
// a pure predicate with no I/O, shared by the streaming reader, the tailer,
// and the bulk/raw HTTP handlers.
package logfilter

import (
	"time"

	"github.com/loglens/loglens/internal/record"
)

// Spec is a short-lived, per-request filter. From/To are inclusive bounds;
// Level/Module are set membership filters that impose no constraint when
// empty. Limit/Offset are consumed by callers, not by Match.
type Spec struct {
	From   *time.Time
	To     *time.Time
	Level  map[record.Level]struct{}
	Module map[string]struct{}
	Limit  int
	Offset int
}

// NewSpec builds a Spec from parsed query values. Empty level/module slices
// impose no constraint, matching the "empty ⇒ no constraint" invariant.
func NewSpec(from, to *time.Time, levels, modules []string, limit, offset int) Spec {
	s := Spec{From: from, To: to, Limit: limit, Offset: offset}

	if len(levels) > 0 {
		s.Level = make(map[record.Level]struct{}, len(levels))
		for _, l := range levels {
			s.Level[record.Level(l)] = struct{}{}
		}
	}

	if len(modules) > 0 {
		s.Module = make(map[string]struct{}, len(modules))
		for _, m := range modules {
			s.Module[m] = struct{}{}
		}
	}

	return s
}

// Match applies level, module, and inclusive time-bound constraints. A
// record whose time fails to parse (Strict == false) is rejected when any
// time bound is set, accepted otherwise.
func (s Spec) Match(r record.Record) bool {
	if len(s.Level) > 0 {
		if _, ok := s.Level[r.Level]; !ok {
			return false
		}
	}

	if len(s.Module) > 0 {
		if r.Module == "" {
			return false
		}
		if _, ok := s.Module[r.Module]; !ok {
			return false
		}
	}

	if s.From != nil || s.To != nil {
		if !r.Strict {
			return false
		}
		if s.From != nil && r.Time.Before(*s.From) {
			return false
		}
		if s.To != nil && r.Time.After(*s.To) {
			return false
		}
	}

	return true
}

// ExceedsTo reports whether r's time is strictly after the To bound, used
// by the streaming reader's early-termination check. It assumes records are
// chronologically non-decreasing; that assumption is never load-bearing for
// the locator or filter correctness, only for this optimization.
func (s Spec) ExceedsTo(r record.Record) bool {
	return s.To != nil && r.Strict && r.Time.After(*s.To)
}
