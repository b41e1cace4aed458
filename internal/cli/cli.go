// Package cli implements the mergeview command line: the interactive merge view and its headless relatives (diff, chunks, align).
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version is the mergeview version. It is a var (not a const) so build tooling can override it (for example via `-ldflags "-X .../internal/cli.Version=1.2.3"`).
var Version = "0.3.0"

// In/Out/Err override standard I/O. If nil, defaults are used. Overriding is useful for testing.
type RunOptions struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// exitError carries the exit code of a failed command.
type exitError struct {
	Code int
	Err  error
}

func (e exitError) Error() string { return e.Err.Error() }
func (e exitError) Unwrap() error { return e.Err }

// usageError marks err as a misuse of arguments or flags (exit code 2).
func usageError(err error) error {
	return exitError{Code: 2, Err: err}
}

// Run runs the CLI with args (typically you'd use os.Args).
//
// It returns a recommended exit code (0, 1, or 2) and an error, if any:
//   - 0 -> err == nil
//   - 1 -> err != nil, but the structure of args is sound (flags are correct, etc).
//   - 2 -> err != nil, args parse error or misuse of flags, etc.
//
// Note that in cases of errors, Run has already displayed an error message to opts.Err || Stderr. Callers may use os.Exit with the exit code.
func Run(args []string, opts *RunOptions) (int, error) {
	argv := args
	if len(argv) > 0 {
		argv = argv[1:]
	}

	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	var errW io.Writer = os.Stderr
	if opts != nil {
		if opts.In != nil {
			in = opts.In
		}
		if opts.Out != nil {
			out = opts.Out
		}
		if opts.Err != nil {
			errW = opts.Err
		}
	}

	root := newRootCommand()
	root.SetArgs(argv)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errW)

	err := root.Execute()
	if err == nil {
		return 0, nil
	}

	code := 1
	var ee exitError
	if errors.As(err, &ee) {
		code = ee.Code
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "command failed"
	}
	fmt.Fprintf(errW, "error: %s\n", msg)
	if code == 2 {
		fmt.Fprintf(errW, "Run '%s --help' for usage.\n", root.Name())
	}
	return code, errors.New(msg)
}

// argsBetween is cobra.RangeArgs reporting a usage error.
func argsBetween(lo, hi int) cobra.PositionalArgs {
	check := cobra.RangeArgs(lo, hi)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// noArgs is cobra.NoArgs reporting a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}
