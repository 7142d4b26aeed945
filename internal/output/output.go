// Package output provides consistent formatting for CLI command output.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer formats CLI output. Write errors are ignored; console output is
// best effort.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a message with a leading icon.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Status("✅", fmt.Sprintf(format, args...))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Status("⚠️ ", fmt.Sprintf(format, args...))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Status("❌", fmt.Sprintf(format, args...))
}

// Result prints one ranked retrieval hit.
func (w *Writer) Result(rank int, id string, score float64) {
	_, _ = fmt.Fprintf(w.out, "%2d. %s (score %.3f)\n", rank, id, score)
}

// Detail prints an indented line under a result.
func (w *Writer) Detail(msg string) {
	_, _ = fmt.Fprintf(w.out, "    %s\n", msg)
}

// KV prints an aligned label/value pair for stats-style listings.
func (w *Writer) KV(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "%-10s %v\n", label+":", value)
}

// Block prints multi-line content indented as a unit, surrounded by blank
// lines.
func (w *Writer) Block(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
