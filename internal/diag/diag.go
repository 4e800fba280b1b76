// Package diag formats compiler diagnostics with Rust-like caret-underlined
// source snippets.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"mxc/internal/ast"
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)

// Diagnostic is one structured compiler message.
type Diagnostic struct {
	Level    Level
	Code     string // e.g. "E0012" (checker) or "E0901" (IR internal invariant)
	Message  string
	Position ast.Position
	Length   int
	Notes    []string
}

// Checker error codes, E0xxx.
const (
	CodeUndeclaredName  = "E0001"
	CodeUndeclaredType  = "E0002"
	CodeTypeMismatch    = "E0003"
	CodeArityMismatch   = "E0004"
	CodeUnknownMember   = "E0005"
	CodeDuplicateSymbol = "E0006"
	CodeNotCallable     = "E0007"
	CodeBadAssignTarget = "E0008"
)

// IR-level internal-invariant codes, a fresh E09xx range, per §7.
const (
	CodeInternalSSAViolation = "E0901"
	CodeInternalTypeMismatch = "E0902"
	CodeInternalLookupMiss   = "E0903"
)

// UB warning codes.
const (
	CodeNullDeref    = "W0001"
	CodeDivByZero    = "W0002"
	CodeNegativeShift = "W0003"
	CodeUndefinedUse = "W0004"
)

// Reporter renders Diagnostics against one source file's text.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a Reporter over a file's already-read source text.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders one diagnostic as a multi-line, colorized string.
func (r *Reporter) Format(d Diagnostic) string {
	var b strings.Builder

	levelColor := r.levelColor(d.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		fmt.Fprintf(&b, "%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s\n", levelColor(string(d.Level)), d.Message)
	}

	width := lineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)

	fmt.Fprintf(&b, "%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Position.Line, d.Position.Column)
	fmt.Fprintf(&b, "%s %s\n", indent, dim("│"))

	if d.Position.Line > 1 && d.Position.Line-1 <= len(r.lines) {
		fmt.Fprintf(&b, "%s %s %s\n", dim(pad(d.Position.Line-1, width)), dim("│"), r.lines[d.Position.Line-2])
	}

	if d.Position.Line > 0 && d.Position.Line <= len(r.lines) {
		fmt.Fprintf(&b, "%s %s %s\n", bold(pad(d.Position.Line, width)), dim("│"), r.lines[d.Position.Line-1])
		fmt.Fprintf(&b, "%s %s %s\n", indent, dim("│"), r.marker(d.Position.Column, d.Length, d.Level))
	}

	if d.Position.Line < len(r.lines) {
		fmt.Fprintf(&b, "%s %s %s\n", dim(pad(d.Position.Line+1, width)), dim("│"), r.lines[d.Position.Line])
	}

	for _, note := range d.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		fmt.Fprintf(&b, "%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note)
	}

	b.WriteString("\n")
	return b.String()
}

func (r *Reporter) levelColor(level Level) func(...interface{}) string {
	switch level {
	case LevelError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case LevelNote:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func (r *Reporter) marker(column, length int, level Level) string {
	if length <= 0 {
		length = 1
	}
	spaces := strings.Repeat(" ", maxInt(0, column-1))
	markerColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if level == LevelWarning {
		markerColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return spaces + markerColor(strings.Repeat("^", length))
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		w = 3
	}
	return w
}

func pad(n, width int) string { return fmt.Sprintf("%*d", width, n) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// InternalError is panicked by the IR core on an invariant violation (SSA
// broken, type mismatch a pass should never see, a lookup that must
// succeed). The CLI's top-level boundary recovers it and reports a fatal
// diagnostic, per the error-handling design.
type InternalError struct {
	Code    string
	Message string
}

func (e InternalError) Error() string { return fmt.Sprintf("[%s] internal error: %s", e.Code, e.Message) }

// Fatalf panics with an InternalError; callers inside the IR core use this
// instead of returning an error, since no pass is expected to recover from
// a broken invariant.
func Fatalf(code, format string, args ...interface{}) {
	panic(InternalError{Code: code, Message: fmt.Sprintf(format, args...)})
}
