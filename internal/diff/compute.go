package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	zdiff "znkr.io/diff"
	"znkr.io/diff/textdiff"
)

// Compute diffs orig to edit. The primitive is chosen by opts.Algorithm; its output is passed through Cleanup and validated.
//
// Compute never panics: a panic inside the primitive, or an invariant violation in its output, is returned as an error wrapping ErrComputation.
func Compute(orig, edit string, opts Options) (d Diff, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = Diff{}
			err = fmt.Errorf("%w: %v", ErrComputation, r)
		}
	}()

	alg := opts.Algorithm
	if alg == "" {
		alg = AlgorithmChars
	}
	primitive, ok := primitives[alg]
	if !ok {
		return Diff{}, fmt.Errorf("%w: unknown algorithm %q", ErrComputation, opts.Algorithm)
	}

	d = Diff{
		OrigText:         orig,
		EditText:         edit,
		Ops:              Cleanup(primitive(orig, edit, opts), false),
		IgnoreWhitespace: opts.IgnoreWhitespace,
	}
	if err := d.validate(); err != nil {
		return Diff{}, fmt.Errorf("%w: %v", ErrComputation, err)
	}
	return d, nil
}

// primitives maps each algorithm to its diff primitive.
var primitives = map[Algorithm]func(orig, edit string, opts Options) []Operation{
	AlgorithmChars: charOps,
	AlgorithmLines: lineOps,
}

// charOps diffs with diff-match-patch. Line mode (checklines) kicks in inside DiffMain for large inputs.
func charOps(orig, edit string, opts Options) []Operation {
	dmp := diffmatchpatch.New()
	if opts.Timeout > 0 {
		dmp.DiffTimeout = opts.Timeout
	}
	diffs := dmp.DiffMain(orig, edit, true)

	ops := make([]Operation, 0, len(diffs))
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			ops = append(ops, Operation{Op: OpEqual, Text: d.Text})
		case diffmatchpatch.DiffInsert:
			ops = append(ops, Operation{Op: OpInsert, Text: d.Text})
		case diffmatchpatch.DiffDelete:
			ops = append(ops, Operation{Op: OpDelete, Text: d.Text})
		}
	}
	return ops
}

// lineOps diffs whole lines. Each edit carries its line including the trailing '\n' (if any), so concatenation reproduces both texts.
func lineOps(orig, edit string, _ Options) []Operation {
	edits := textdiff.Edits(orig, edit, textdiff.IndentHeuristic())
	ops := make([]Operation, 0, len(edits))
	for _, e := range edits {
		switch e.Op {
		case zdiff.Match:
			ops = append(ops, Operation{Op: OpEqual, Text: e.Line})
		case zdiff.Delete:
			ops = append(ops, Operation{Op: OpDelete, Text: e.Line})
		case zdiff.Insert:
			ops = append(ops, Operation{Op: OpInsert, Text: e.Line})
		}
	}
	return ops
}

// Cleanup returns ops with empty operations removed and adjacent operations of the same Op merged. ops is not modified.
//
// If ignoreWhitespace, Insert and Delete operations consisting only of spaces and tabs are removed too. The result keeps the line structure of both texts but no
// longer reconstructs them, so it is only fit for deriving chunks.
func Cleanup(ops []Operation, ignoreWhitespace bool) []Operation {
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Text == "" {
			continue
		}
		if ignoreWhitespace && op.Op != OpEqual && isBlank(op.Text) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Op == op.Op {
			out[n-1].Text += op.Text
			continue
		}
		out = append(out, op)
	}
	return out
}

// isBlank reports whether s consists only of spaces and tabs. Newlines are not blank: dropping them would shift line numbers.
func isBlank(s string) bool {
	return strings.Trim(s, " \t") == ""
}
