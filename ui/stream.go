package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
)

type streamRunner struct {
	out         io.Writer
	outputWidth int
	now         func() time.Time
}

func newStreamRunner(file *os.File) *streamRunner {
	return &streamRunner{
		out:         file,
		outputWidth: detectOutputWidth(file),
		now:         time.Now,
	}
}

func (r *streamRunner) run(ctx context.Context, prov Provisioner, stage, title string, work func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := r.now()
	r.logStage(stage, "%s (region=%s account=%s ui=stream)", title, prov.GetRegion(), prov.GetAccountID())

	prov.OnProgress(func(s, msg string) {
		r.logStage(s, "%s", msg)
	})
	defer prov.OnProgress(nil)

	if err := work(ctx); err != nil {
		r.logStage("error", "%v", err)
		return err
	}
	r.logStage(stage, "Completed in %s", formatDuration(r.now().Sub(started)))
	return nil
}

func (r *streamRunner) logStage(stage, format string, args ...any) {
	ts := r.now().Format("15:04:05")
	prefix := fmt.Sprintf("[%s] %-8s ", ts, stage)
	r.printWrapped(prefix, fmt.Sprintf(format, args...))
}

func isTerminal(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func detectOutputWidth(file *os.File) int {
	const defaultWidth = 100
	const minWidth = 60
	const maxWidth = 160

	if file != nil {
		w, _, err := term.GetSize(file.Fd())
		if err == nil && w > 0 {
			return clampWidth(w, minWidth, maxWidth)
		}
	}

	if env := strings.TrimSpace(os.Getenv("COLUMNS")); env != "" {
		if w, err := strconv.Atoi(env); err == nil && w > 0 {
			return clampWidth(w, minWidth, maxWidth)
		}
	}
	return defaultWidth
}

func clampWidth(w, lo, hi int) int {
	if w < lo {
		return lo
	}
	if w > hi {
		return hi
	}
	return w
}

func (r *streamRunner) printWrapped(prefix, text string) {
	width := r.outputWidth
	if width <= 0 {
		width = 100
	}

	for _, rawLine := range strings.Split(text, "\n") {
		for i, line := range wrapLine(rawLine, max(20, width-visibleLen(prefix))) {
			if i == 0 {
				fmt.Fprintf(r.out, "%s%s\n", prefix, line)
				continue
			}
			fmt.Fprintf(r.out, "%s%s\n", strings.Repeat(" ", visibleLen(prefix)), line)
		}
	}
}

func wrapLine(s string, width int) []string {
	if width <= 0 || visibleLen(s) <= width {
		return []string{s}
	}

	leading := leadingWhitespace(s)
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{s}
	}

	nextPrefix := leading + "  "
	lines := make([]string, 0, 4)
	current := leading
	prefixLen := visibleLen(leading)
	limit := max(10, width-prefixLen)

	for _, word := range words {
		for _, part := range splitWord(word, limit) {
			used := visibleLen(current) - prefixLen
			if used > 0 && used+1+visibleLen(part) > limit {
				lines = append(lines, current)
				current = nextPrefix
				prefixLen = visibleLen(nextPrefix)
				limit = max(10, width-prefixLen)
				used = 0
			}
			if used > 0 {
				current += " "
			}
			current += part
		}
	}

	if visibleLen(current) > prefixLen {
		lines = append(lines, current)
	}
	return lines
}

func splitWord(word string, maxLen int) []string {
	runes := []rune(word)
	if maxLen <= 0 || len(runes) <= maxLen {
		return []string{word}
	}
	var parts []string
	for len(runes) > maxLen {
		parts = append(parts, string(runes[:maxLen]))
		runes = runes[maxLen:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func visibleLen(s string) int {
	return len([]rune(s))
}
