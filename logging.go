package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
)

// The linker's three diagnostic tiers keep the traditional colors: blue for
// trace detail, green for progress, red for warnings and worse.
var (
	debugColor = color.New(color.FgBlue, color.Bold)
	infoColor  = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgRed, color.Bold)
)

// linkHandler is a minimal slog.Handler that renders records as single
// colorized lines: "L<n> message key=value ...".
type linkHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func newLinkHandler(w io.Writer, level slog.Level) *linkHandler {
	return &linkHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *linkHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *linkHandler) Handle(_ context.Context, r slog.Record) error {
	c := debugColor
	tier := 0
	switch {
	case r.Level >= slog.LevelWarn:
		c = warnColor
		tier = 2
	case r.Level >= slog.LevelInfo:
		c = infoColor
		tier = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "L%d %s", tier, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := c.Fprintln(h.w, b.String())
	return err
}

func (h *linkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

func (h *linkHandler) WithGroup(string) slog.Handler {
	return h
}

// slogLevel maps the -l verbosity threshold onto slog's level scale:
// 0 shows trace detail, 1 shows progress, 2 and up shows warnings only.
func slogLevel(l int) slog.Level {
	switch {
	case l <= 0:
		return slog.LevelDebug
	case l == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// newLogger builds the linker's logger: progress and trace lines go to
// stdout, warnings and errors to stderr, both colorized per tier.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Router().
		Add(newLinkHandler(os.Stdout, level), func(_ context.Context, r slog.Record) bool {
			return r.Level < slog.LevelWarn
		}).
		Add(newLinkHandler(os.Stderr, level), func(_ context.Context, r slog.Record) bool {
			return r.Level >= slog.LevelWarn
		}).
		Handler())
}
