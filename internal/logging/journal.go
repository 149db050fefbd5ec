package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalHandler sends records to the systemd journal with structured
// fields, so `journalctl -t sc0710 MODULE=signal` works.
type journalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func newJournalHandler(level slog.Leveler) *journalHandler {
	return &journalHandler{level: level}
}

func journalAvailable() bool {
	return journal.Enabled()
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *journalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)

	fields := map[string]string{
		"PRIORITY":          fmt.Sprintf("%d", priority),
		"SYSLOG_IDENTIFIER": "sc0710",
	}
	for _, a := range h.attrs {
		journalField(fields, a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		journalField(fields, a, h.groups)
		return true
	})

	return journal.Send(r.Message, priority, fields)
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &journalHandler{level: h.level, attrs: merged, groups: h.groups}
}

func (h *journalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &journalHandler{level: h.level, attrs: h.attrs, groups: groups}
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

// journalField adds one attr as an uppercased journal field, underscore-
// joining group prefixes.
func journalField(fields map[string]string, a slog.Attr, groups []string) {
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	key = strings.ToUpper(key)

	if a.Value.Kind() == slog.KindGroup {
		sub := append(append([]string(nil), groups...), key)
		for _, ga := range a.Value.Group() {
			journalField(fields, ga, sub)
		}
		return
	}
	fields[key] = a.Value.String()
}
