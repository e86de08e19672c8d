// Package record implements the pure line-to-record parser: the leaf
// component every other part of loglens builds on. A line is either a
// well-formed structured record with a parseable time (strict), a
// permissive record synthesized for user-facing output, or nothing.
package record

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Level is a lowercase log-level keyword.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Record is a single parsed log line. Extra holds any JSON keys beyond the
// well-known fields, preserved for the bulk/raw endpoints.
type Record struct {
	Level  Level
	Time   time.Time
	Module string
	Msg    string
	Extra  map[string]any

	// Strict is true iff Time parsed from the line's own "time" field.
	// Only strict records participate in indexing and binary search.
	Strict bool

	// Raw is the input line with its trailing line terminator removed.
	Raw string
}

// TimeMillis returns the record's time as a millisecond epoch offset, the
// internal representation the rest of the system compares against.
func (r Record) TimeMillis() int64 {
	return r.Time.UnixMilli()
}

// MarshalJSON renders the wire shape the bulk and stream endpoints send:
// the well-known fields at the top level, with Extra's keys flattened in
// alongside them rather than nested under their own key.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["level"] = r.Level
	out["time"] = r.Time.UTC().Format(time.RFC3339Nano)
	if r.Module != "" {
		out["module"] = r.Module
	}
	out["msg"] = r.Msg
	return json.Marshal(out)
}

type wireRecord struct {
	Level  string `json:"level"`
	Time   string `json:"time"`
	Module string `json:"module"`
	Msg    string `json:"msg"`
}

// StrictParse returns a record only when line is well-formed JSON carrying
// a "time" field that parses under the accepted instant grammar. It returns
// (Record{}, false) for blank lines, non-JSON lines, or lines whose time is
// missing or unparseable. This is the only parser the offset locator and
// the streaming reader's inner loop use.
func StrictParse(line string) (Record, bool) {
	trimmed := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return Record{}, false
	}

	raw, extra, ok := decodeObject(trimmed)
	if !ok {
		return Record{}, false
	}

	t, ok := parseInstant(raw.Time)
	if !ok {
		return Record{}, false
	}

	return Record{
		Level:  normalizeLevel(raw.Level),
		Time:   t,
		Module: raw.Module,
		Msg:    raw.Msg,
		Extra:  extra,
		Strict: true,
		Raw:    trimmed,
	}, true
}

// PermissiveParse never fails: a non-structured line becomes an info-level
// record whose message is the raw line and whose time is now. A structured
// line without a parseable time keeps its own fields and gets time now;
// its level defaults to info and its message to the raw line only when
// those fields are empty. It is used only by the bulk and raw endpoints so stray lines remain
// visible to users; the offset locator must never call this.
func PermissiveParse(line string, now time.Time) Record {
	trimmed := strings.TrimRight(line, "\r\n")

	raw, extra, ok := decodeObject(trimmed)
	if !ok {
		return Record{
			Level: LevelInfo,
			Time:  now,
			Msg:   trimmed,
			Raw:   trimmed,
		}
	}

	t, parsed := parseInstant(raw.Time)
	if !parsed {
		t = now
	}

	level := normalizeLevel(raw.Level)
	if level == "" {
		level = LevelInfo
	}

	msg := raw.Msg
	if msg == "" {
		msg = trimmed
	}

	return Record{
		Level:  level,
		Time:   t,
		Module: raw.Module,
		Msg:    msg,
		Extra:  extra,
		Strict: parsed,
		Raw:    trimmed,
	}
}

// decodeObject decodes trimmed as a JSON object, reporting the well-known
// fields plus whatever else the object carried. It tolerates arbitrarily
// long lines (no length cap is applied anywhere in this path).
func decodeObject(trimmed string) (wireRecord, map[string]any, bool) {
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return wireRecord{}, nil, false
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var all map[string]json.RawMessage
	if err := dec.Decode(&all); err != nil {
		return wireRecord{}, nil, false
	}

	var raw wireRecord
	if v, ok := all["level"]; ok {
		_ = json.Unmarshal(v, &raw.Level)
	}
	if v, ok := all["time"]; ok {
		_ = json.Unmarshal(v, &raw.Time)
	}
	if v, ok := all["module"]; ok {
		_ = json.Unmarshal(v, &raw.Module)
	}
	if v, ok := all["msg"]; ok {
		_ = json.Unmarshal(v, &raw.Msg)
	}

	extra := make(map[string]any, len(all))
	for k, v := range all {
		switch k {
		case "level", "time", "module", "msg":
			continue
		}
		var decoded any
		if err := json.Unmarshal(v, &decoded); err == nil {
			extra[k] = decoded
		}
	}

	return raw, extra, true
}

func normalizeLevel(s string) Level {
	return Level(strings.ToLower(strings.TrimSpace(s)))
}

// acceptedLayouts is the instant grammar from the external-interfaces
// section, tried in order: zoned, naive, space-separated, date-only.
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

func parseInstant(s string) (time.Time, bool) {
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

// Format renders a record in the plain-text endpoint's one-line shape:
// "YYYY-MM-DD HH:MM:SS.sss [level] module: msg (k1=v1 k2=v2…)".
func Format(r Record) string {
	var b strings.Builder
	b.WriteString(r.Time.UTC().Format("2006-01-02 15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(string(r.Level))
	b.WriteString("] ")
	if r.Module != "" {
		b.WriteString(r.Module)
		b.WriteString(": ")
	}
	b.WriteString(r.Msg)

	if len(r.Extra) > 0 {
		keys := make([]string, 0, len(r.Extra))
		for k := range r.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(valueString(r.Extra[k]))
		}
		b.WriteByte(')')
	}

	return b.String()
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		if err := enc.Encode(t); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}
