package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry, for journalctl -t fakecam.
const SyslogIdentifier = "fakecam"

// LogCallback is called for every record that reaches the buffer handler.
// It lets the event bus receive logs without an import cycle.
type LogCallback func(entry LogEntry)

// scopedAttr is an attribute together with the groups open when it was added.
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

// scope is the WithAttrs/WithGroup state shared by the handlers below.
type scope struct {
	level  slog.Leveler
	attrs  []scopedAttr
	groups []string
}

func (s scope) enabled(level slog.Level) bool { return level >= s.level.Level() }

func (s scope) withAttrs(attrs []slog.Attr) scope {
	next := s
	next.attrs = make([]scopedAttr, len(s.attrs), len(s.attrs)+len(attrs))
	copy(next.attrs, s.attrs)
	for _, a := range attrs {
		next.attrs = append(next.attrs, scopedAttr{groups: s.groups, attr: a})
	}
	return next
}

func (s scope) withGroup(name string) scope {
	if name == "" {
		return s
	}
	next := s
	next.groups = append(append(make([]string, 0, len(s.groups)+1), s.groups...), name)
	return next
}

// walk calls fn for every handler and record attribute, nested groups
// expanded.
func (s scope) walk(r slog.Record, fn func(groups []string, a slog.Attr)) {
	var visit func(groups []string, a slog.Attr)
	visit = func(groups []string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Value.Kind() == slog.KindGroup {
			inner := groups
			if a.Key != "" {
				inner = append(append([]string(nil), groups...), a.Key)
			}
			for _, ga := range a.Value.Group() {
				visit(inner, ga)
			}
			return
		}
		fn(groups, a)
	}

	for _, sa := range s.attrs {
		visit(sa.groups, sa.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		visit(s.groups, a)
		return true
	})
}

// BufferHandler feeds the global ring buffer and the LogCallback. Both are
// looked up per record so loggers created before Initialize still feed them.
type BufferHandler struct {
	scope
}

// NewBufferHandler creates a handler for the ring buffer.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{scope{level: level}}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool { return h.enabled(level) }

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelToString(r.Level),
		Module:    "app",
		Message:   r.Message,
	}
	h.walk(r, func(groups []string, a slog.Attr) {
		if len(groups) == 0 && a.Key == "module" {
			entry.Module = a.Value.String()
			return
		}
		if entry.Attributes == nil {
			entry.Attributes = make(map[string]any)
		}
		entry.Attributes[joinKey(groups, a.Key, ".")] = bufferValue(a.Value)
	})

	std.mu.RLock()
	buffer, callback := std.buffer, std.callback
	std.mu.RUnlock()

	if buffer != nil {
		buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferHandler{h.withAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	return &BufferHandler{h.withGroup(name)}
}

// bufferValue converts a value to something that survives JSON encoding.
func bufferValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		if s, ok := v.Any().(fmt.Stringer); ok {
			return s.String()
		}
	}
	return v.Any()
}

// JournalHandler sends records to the systemd journal as structured
// fields, so journalctl MODULE=process works.
type JournalHandler struct {
	scope
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{scope{level: level}}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool { return h.enabled(level) }

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{"SYSLOG_IDENTIFIER": SyslogIdentifier}
	h.walk(r, func(groups []string, a slog.Attr) {
		key := journalKey(joinKey(groups, a.Key, "_"))
		if key == "" {
			return
		}
		fields[key] = journalValue(a.Value)
	})

	if err := journal.Send(r.Message, journalPriority(r.Level), fields); err != nil {
		return fmt.Errorf("journal send: %w", err)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{h.withAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	return &JournalHandler{h.withGroup(name)}
}

// IsJournalAvailable reports whether the journal socket exists.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalKey maps an attribute key to a valid journal field name:
// uppercase ASCII letters, digits and underscores, not starting with an
// underscore or digit. Keys the journal reserves are dropped.
func journalKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "_0123456789")
	switch out {
	case "MESSAGE", "PRIORITY", "SYSLOG_IDENTIFIER":
		return ""
	}
	return out
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	}
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.String()
}

func joinKey(groups []string, key, sep string) string {
	if len(groups) == 0 {
		return key
	}
	return strings.Join(groups, sep) + sep + key
}

// levelToString converts slog.Level to a lowercase string.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// MultiHandler fans records out to every enabled handler.
type MultiHandler []slog.Handler

// NewMultiHandler creates a handler writing to all handlers.
func NewMultiHandler(handlers ...slog.Handler) MultiHandler {
	return MultiHandler(handlers)
}

// Enabled implements slog.Handler.
func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler. Every handler gets the record even when
// an earlier one fails.
func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(MultiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

// WithGroup implements slog.Handler.
func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make(MultiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
