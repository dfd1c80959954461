package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournalHandler writes records to the systemd journal with attributes as upper-case fields.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// NewJournalHandler returns a journal handler enabled from level up.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{"SYSLOG_IDENTIFIER": "alsaio"}

	for _, attr := range h.attrs {
		journalFields(fields, "", attr)
	}

	r.Attrs(func(attr slog.Attr) bool {
		journalFields(fields, h.prefix, attr)

		return true
	})

	if err := journal.Send(r.Message, journalPriority(r.Level), fields); err != nil {
		return fmt.Errorf("journal send failed: %w", err)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		next.attrs = append(next.attrs[:len(next.attrs):len(next.attrs)], attr)
	}

	return &next
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	next := *h
	next.prefix = h.prefix + name + "_"

	return &next
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

// journalFields flattens attr into fields. Journal field names are upper case.
func journalFields(fields map[string]string, prefix string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := strings.ToUpper(prefix + attr.Key)
	value := attr.Value.Resolve()

	switch value.Kind() {
	case slog.KindGroup:
		for _, a := range value.Group() {
			journalFields(fields, key+"_", a)
		}
	case slog.KindInt64:
		fields[key] = strconv.FormatInt(value.Int64(), 10)
	case slog.KindUint64:
		fields[key] = strconv.FormatUint(value.Uint64(), 10)
	default:
		fields[key] = value.String()
	}
}

// IsJournalAvailable reports whether the systemd journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
