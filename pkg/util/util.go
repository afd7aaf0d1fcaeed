package util

import (
	"fmt"
	"io"
	"os"

	"github.com/mxrlang/mxrc/pkg/config"
	"github.com/mxrlang/mxrc/pkg/token"
	"golang.org/x/term"
)

const (
	red    = "\033[31m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	reset  = "\033[0m"
)

var (
	// Output receives all diagnostics.
	Output io.Writer = os.Stderr
	// Exit is called by Error after reporting.
	Exit = os.Exit
)

func colorize(color, s string) string {
	if f, ok := Output.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return s
	}
	return color + s + reset
}

// InternalError reports a broken invariant found while lowering: the input
// should have been rejected by an earlier phase.
type InternalError struct {
	Pos token.Pos
	Err error
}

func (e *InternalError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: internal error: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Error prints a formatted error message and exits the program
func Error(pos token.Pos, format string, args ...any) {
	fmt.Fprintf(Output, "%s: %s ", pos, colorize(red, "error:"))
	fmt.Fprintf(Output, format, args...)
	fmt.Fprintln(Output)
	Exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, pos token.Pos, format string, args ...any) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	fmt.Fprintf(Output, "%s: %s ", pos, colorize(yellow, "warning:"))
	fmt.Fprintf(Output, format, args...)
	fmt.Fprintf(Output, " [-W%s]\n", cfg.Warnings[wt].Name)
}

// Info prints a progress message prefixed with the program name
func Info(prog, format string, args ...any) {
	fmt.Fprintf(Output, "%s: %s ", prog, colorize(cyan, "info:"))
	fmt.Fprintf(Output, format, args...)
	fmt.Fprintln(Output)
}
