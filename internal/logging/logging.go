package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgHiYellow)
	errorColor = color.New(color.FgHiRed)
	attrColor  = color.New(color.FgHiBlack)
)

// Setup installs the default slog logger. When file is set, records are
// also written, uncolored, to a rotating log file.
func Setup(level, file string) *slog.Logger {
	lvl := ParseLevel(level)

	var handler slog.Handler = NewConsoleHandler(os.Stdout, lvl)
	if file != "" {
		rot := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		handler = fanout{
			handler,
			slog.NewTextHandler(rot, &slog.HandlerOptions{Level: lvl}),
		}
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConsoleHandler prints "15:04:05 [LEVEL] message key=value ..." lines.
type ConsoleHandler struct {
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
	group string
	mu    *sync.Mutex
}

func NewConsoleHandler(w io.Writer, level slog.Leveler) *ConsoleHandler {
	return &ConsoleHandler{w: w, level: level, mu: &sync.Mutex{}}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	levelStr, levelColor := levelTag(r.Level)

	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(levelColor.Sprintf("[%s] %s", levelStr, r.Message))

	write := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		b.WriteByte(' ')
		b.WriteString(attrColor.Sprintf("%s=", key))
		b.WriteString(formatValue(a.Value))
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &nh
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	if nh.group != "" {
		nh.group += "." + name
	} else {
		nh.group = name
	}
	return &nh
}

func levelTag(l slog.Level) (string, *color.Color) {
	switch {
	case l >= slog.LevelError:
		return "ERROR", errorColor
	case l >= slog.LevelWarn:
		return "WARN", warnColor
	case l >= slog.LevelInfo:
		return "INFO", infoColor
	default:
		return "DEBUG", debugColor
	}
}

func formatValue(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindString && (s == "" || strings.ContainsAny(s, " \t\"=")) {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// fanout sends each record to every handler that accepts it.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
