// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"mxc/internal/ast"
	"mxc/internal/checker"
	"mxc/internal/diag"
	"mxc/internal/ir"
	"mxc/internal/parser"
)

func main() {
	startTime := time.Now()

	path := "<stdin>"
	var source []byte
	var err error
	if len(os.Args) > 1 {
		path = os.Args[1]
		source, err = os.ReadFile(path)
	} else {
		source, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read source: %v\n", err)
		os.Exit(1)
	}

	reporter := diag.NewReporter(path, string(source))

	if code := run(path, string(source), reporter); code != 0 {
		color.Red("compilation failed after %s", formatDuration(time.Since(startTime)))
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "%s\n", color.GreenString("compiled %s in %s", path, formatDuration(time.Since(startTime))))
}

// run drives the full scan -> parse -> check -> build -> analyze pipeline
// and writes the resulting textual IR to stdout. It returns a process exit
// code: 0 on success, 1 on a source-level (parse/check) error, 2 on an
// internal invariant violation recovered at this top-level boundary (§7).
func run(path, source string, reporter *diag.Reporter) int {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(diag.InternalError); ok {
				fmt.Fprintf(os.Stderr, "%s\n", color.RedString("internal error [%s]: %s", ie.Code, ie.Message))
				os.Exit(2)
			}
			panic(r)
		}
	}()

	prog, parseErrs := parser.Parse(path, source)
	if len(parseErrs) > 0 {
		for _, e := range parseErrs {
			fmt.Fprint(os.Stderr, reporter.Format(diag.Diagnostic{
				Level:   diag.LevelError,
				Message: e.Message,
				Position: ast.Position{Filename: path, Line: e.Line, Column: e.Column},
				Length:  1,
			}))
		}
		return 1
	}

	info, diags := checker.Check(prog)
	hasErr := false
	for _, d := range diags {
		fmt.Fprint(os.Stderr, reporter.Format(d))
		if d.Level == diag.LevelError {
			hasErr = true
		}
	}
	if hasErr {
		return 1
	}

	mod := ir.Build(prog, info)

	for _, fn := range mod.Functions {
		if fn.Flags.IsBuiltin {
			continue
		}
		ir.BuildCFG(fn)
		ir.BuildDominators(fn, false)
		reports := ir.RemoveUnreachable(fn)
		for _, r := range reports {
			fmt.Fprintln(os.Stderr, color.YellowString("warning[%s]: %s, in %s.%s", r.Code, r.Message, fn.Name, r.Block))
		}
		ir.BuildDominators(fn, false)
		ir.Promote(fn)
		ir.BuildCFG(fn)
	}
	ir.RunDCE(mod)

	fmt.Print(ir.Print(mod))
	return 0
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%dµs", d.Nanoseconds()/1000)
	}
}
