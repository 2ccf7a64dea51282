package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var levelColors = map[slog.Level]string{
	slog.LevelDebug: ansiCyan,
	slog.LevelInfo:  ansiGreen,
	slog.LevelWarn:  ansiYellow,
	slog.LevelError: ansiRed,
}

// ConsoleHandler renders records as colored single lines followed by the
// calling function, for local development.
type ConsoleHandler struct {
	// Output is the destination for log output.
	Output io.Writer
	// Level is the minimum level for records without a package override.
	Level slog.Leveler
	// PkgLevels maps logger names (and their dotted parents) to minimum levels.
	PkgLevels map[string]slog.Level
	// NoSource omits the caller line.
	NoSource bool

	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if level, ok := h.pkgLevel(attrs); ok && r.Level < level {
		return nil
	}

	var b strings.Builder

	b.WriteString(ansiGray + r.Time.Format("15:04:05.000000") + ansiReset)
	b.WriteString(" " + levelColors[r.Level] + "[" + r.Level.String() + "]" + ansiReset)
	b.WriteString(" " + r.Message)

	if len(attrs) > 0 {
		var prefix string
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		b.WriteString(" " + ansiGray + "|" + ansiReset)
		renderAttrs(&b, prefix, attrs)
	}

	if !h.NoSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fn := strings.Split(f.Function, string(os.PathSeparator))

		b.WriteString("\n-> " + ansiGray + fn[len(fn)-1] + "()")
		b.WriteString(" in " + ansiUnderline + f.File + ":" + strconv.Itoa(f.Line) + ansiReset)
	}

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	_, err := fmt.Fprintln(h.Output, b.String())

	//nolint:wrapcheck
	return err
}

// pkgLevel finds the most specific PkgLevels entry for the "logger" attribute,
// walking "artsvc.repo.artwork" up to "artsvc.repo", "artsvc" and "".
func (h *ConsoleHandler) pkgLevel(attrs []slog.Attr) (slog.Level, bool) {
	if len(h.PkgLevels) == 0 {
		return 0, false
	}

	var name string

	for _, attr := range attrs {
		if attr.Key == loggerKey {
			name = attr.Value.String()

			break
		}
	}

	parts := strings.Split(name, ".")
	for i := len(parts); i >= 0; i-- {
		if level, ok := h.PkgLevels[strings.Join(parts[:i], ".")]; ok {
			return level, true
		}
	}

	return 0, false
}

func renderAttrs(b *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			renderAttrs(b, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		b.WriteString(" " + prefix + attr.Key + "=" + ansiGray + attr.Value.String() + ansiReset)
	}
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)

	return &c
}

// WithAttrs implements slog.Handler.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)

	return c
}

// WithGroup implements slog.Handler.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	c := h.clone()
	c.groups = append(c.groups, name)

	return c
}

// Enabled implements slog.Handler. Package overrides may lower the level, so
// anything a PkgLevels entry admits passes here and is filtered in Handle.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	for _, l := range h.PkgLevels {
		if l <= level {
			return true
		}
	}

	return h.Level.Level() <= level
}
