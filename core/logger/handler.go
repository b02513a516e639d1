package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

type format int

const (
	formatJSON format = iota
	formatKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type field struct {
	key string
	val any
}

// lineHandler renders one record per line with a stable key order.
type lineHandler struct {
	level  slog.Leveler
	out    *bufferedWriter
	format format
	rank   map[string]int
	preset []field
	prefix string
}

func newLineHandler(level slog.Leveler, out *bufferedWriter, f format, order []string) *lineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	rank := make(map[string]int, len(order))
	for i, k := range order {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &lineHandler{level: level, out: out, format: f, rank: rank}
}

func (h *lineHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level.Level()
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append([]field(nil), h.preset...)
	for _, a := range attrs {
		flatten(h.prefix, a, func(f field) { clone.preset = append(clone.preset, f) })
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	e := newEntry(len(h.preset) + r.NumAttrs() + 8)

	ts := r.Time.UTC()
	e.set("ts", ts.Truncate(time.Millisecond).Format(tsLayout))
	e.set("level", levelName(r.Level))
	if h.format == formatJSON {
		e.set("ts_unix_nano", ts.UnixNano())
	}
	for _, f := range h.preset {
		e.set(f.key, f.val)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, func(f field) { e.set(f.key, f.val) })
		return true
	})
	e.fromContext(ctx)
	e.finish(r.Message, h.format == formatJSON)

	fields := e.sorted(h.rank)
	var line []byte
	if h.format == formatJSON {
		var err error
		if line, err = encodeJSON(fields); err != nil {
			return err
		}
	} else {
		line = encodeKV(fields)
	}
	return h.out.Write(append(line, '\n'))
}

// flatten walks groups depth-first and reports leaf attrs with dotted keys.
func flatten(prefix string, a slog.Attr, emit func(field)) {
	v := a.Value.Resolve()
	key := prefix + a.Key
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = key + "."
		}
		for _, child := range v.Group() {
			flatten(prefix, child, emit)
		}
		return
	}
	if a.Key == "" {
		return
	}
	if k, val, ok := attrValue(key, v); ok {
		emit(field{k, val})
	}
}

func attrValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindBool:
		return key, v.Any(), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// msKey puts the unit into duration keys: took -> took_ms.
func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

type entry struct {
	fields []field
	index  map[string]int
}

func newEntry(size int) *entry {
	return &entry{fields: make([]field, 0, size), index: make(map[string]int, size)}
}

func (e *entry) set(key string, val any) {
	if i, ok := e.index[key]; ok {
		e.fields[i].val = val
		return
	}
	e.index[key] = len(e.fields)
	e.fields = append(e.fields, field{key, val})
}

func (e *entry) setIfAbsent(key string, val any) {
	if _, ok := e.index[key]; !ok {
		e.set(key, val)
	}
}

func (e *entry) str(key string) string {
	i, ok := e.index[key]
	if !ok {
		return ""
	}
	s, _ := e.fields[i].val.(string)
	return s
}

func (e *entry) fromContext(ctx context.Context) {
	m := metaFrom(ctx)
	if m.rid != "" {
		e.setIfAbsent("rid", m.rid)
	}
	if m.updateID != 0 {
		e.setIfAbsent("update_id", m.updateID)
	}
	if m.userID != 0 {
		e.setIfAbsent("user_id", m.userID)
	}
	if m.chatID != 0 {
		e.setIfAbsent("chat_id", m.chatID)
	}
	if m.handler != "" {
		e.setIfAbsent("handler", m.handler)
	}
}

// finish fills required keys and normalizes the enumerated ones.
func (e *entry) finish(msg string, keepFullRID bool) {
	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if keepFullRID {
				e.setIfAbsent("rid_full", rid)
			}
			e.set("rid", short)
		}
	}
	if e.str("event") == "" {
		if msg == "" {
			msg = "unknown"
		}
		e.set("event", msg)
	}
	if e.str("component") == "" {
		e.set("component", "app")
	}
	if s := e.str("status"); s != "" {
		e.set("status", strings.ToLower(s))
	}
	if o := e.str("outcome"); o != "" {
		if norm, ok := knownOutcomes[strings.ToLower(o)]; ok {
			e.set("outcome", norm)
		} else {
			e.set("outcome", "")
		}
	}
}

// sorted drops empty values and orders the rest: ranked keys first, then alphabetical.
func (e *entry) sorted(rank map[string]int) []field {
	out := make([]field, 0, len(e.fields))
	for _, f := range e.fields {
		if f.val == nil {
			continue
		}
		if s, ok := f.val.(string); ok && s == "" {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].key]
		rj, jok := rank[out[j].key]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i].key < out[j].key
	})
	return out
}

func encodeJSON(fields []field) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, f := range fields {
		val, err := json.Marshal(f.val)
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", f.key, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, f.key)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

func encodeKV(fields []field) []byte {
	buf := make([]byte, 0, 256)
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, f.key...)
		buf = append(buf, '=')
		s := fmt.Sprint(f.val)
		if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	}
	return buf
}
