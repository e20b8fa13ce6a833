package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
)

// consoleHandler writes one human readable line per record:
//
//	2024-05-01 10:00:00 INFO shares [bob / Movies]: share updated key=value
//
// The component, user and library attributes are lifted out of the field
// list into the line prefix.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	color     bool
	attrs     []slog.Attr
	group     string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource, color bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var line consoleLine
	for _, attr := range h.attrs {
		line.add("", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		line.add(h.group, attr)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(h.levelLabel(record.Level))
	if line.component != "" {
		buf.WriteByte(' ')
		buf.WriteString(line.component)
	}
	if subject := line.subject(); subject != "" {
		buf.WriteString(" [")
		buf.WriteString(subject)
		buf.WriteByte(']')
	}
	if line.component != "" || line.subject() != "" {
		buf.WriteByte(':')
	}
	buf.WriteByte(' ')
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	for _, f := range line.fields {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, attr := range attrs {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	var label string
	var colors text.Colors
	switch {
	case level >= slog.LevelError:
		label, colors = "ERROR", text.Colors{text.FgRed, text.Bold}
	case level >= slog.LevelWarn:
		label, colors = "WARN", text.Colors{text.FgYellow}
	case level >= slog.LevelInfo:
		label, colors = "INFO", text.Colors{text.FgGreen}
	default:
		label, colors = "DEBUG", text.Colors{text.FgHiBlack}
	}
	if !h.color {
		return label
	}
	return colors.Sprint(label)
}

type consoleField struct {
	key   string
	value slog.Value
}

type consoleLine struct {
	component string
	user      string
	library   string
	fields    []consoleField
}

func (l *consoleLine) add(group string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if group != "" && key != "" {
		key = group + "." + key
	} else if group != "" {
		key = group
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			l.add(key, member)
		}
		return
	}
	switch key {
	case FieldComponent:
		if l.component == "" {
			l.component = attrString(attr.Value)
		}
		return
	case FieldUser:
		l.user = attrString(attr.Value)
		return
	case FieldLibrary:
		l.library = attrString(attr.Value)
		return
	case "":
		return
	}
	l.fields = append(l.fields, consoleField{key: key, value: attr.Value})
}

func (l *consoleLine) subject() string {
	switch {
	case l.user != "" && l.library != "":
		return l.user + " / " + l.library
	case l.user != "":
		return l.user
	default:
		return l.library
	}
}
