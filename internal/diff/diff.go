package diff

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Op is an operation from original text to edit text.
type Op int

// Operations from original text to edit text.
const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// String returns the name of the op.
func (o Op) String() string {
	switch o {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Operation is a run of text with a single Op.
type Operation struct {
	Op   Op
	Text string
}

// Diff is a diff from an original text to an edit text.
type Diff struct {
	OrigText         string      // Entire original text.
	EditText         string      // Entire edit text.
	Ops              []Operation // Ordered operations; see package docs for invariants.
	IgnoreWhitespace bool        // Whether whitespace-only changes are left out of chunks and marks.
}

// Chunks returns the line-level chunks of d. It is ChunksFromOps(Cleanup(d.Ops, d.IgnoreWhitespace)).
func (d Diff) Chunks() []Chunk {
	return ChunksFromOps(Cleanup(d.Ops, d.IgnoreWhitespace))
}

// ChangedSpan returns the byte range of text, a piece of one line of an Insert or Delete operation, that counts as changed. That is all of text, unless d ignores
// whitespace: then leading and trailing spaces and tabs are left out, and a blank text has an empty span.
func (d Diff) ChangedSpan(text string) (from, to int) {
	if !d.IgnoreWhitespace {
		return 0, len(text)
	}
	trimmed := strings.TrimLeft(text, " \t")
	from = len(text) - len(trimmed)
	return from, from + len(strings.TrimRight(trimmed, " \t"))
}

// Algorithm selects the diff primitive.
type Algorithm string

const (
	// AlgorithmChars is a character-level diff (diff-match-patch). It is the default and gives intra-line precision.
	AlgorithmChars Algorithm = "chars"

	// AlgorithmLines is a line-level diff with an indentation heuristic. It is faster on large inputs but only marks whole lines.
	AlgorithmLines Algorithm = "lines"
)

// ParseAlgorithm parses s ("" means AlgorithmChars).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmChars:
		return AlgorithmChars, nil
	case AlgorithmLines:
		return AlgorithmLines, nil
	default:
		return "", fmt.Errorf("unknown diff algorithm %q (want %q or %q)", s, AlgorithmChars, AlgorithmLines)
	}
}

// Options configure Compute.
type Options struct {
	IgnoreWhitespace bool          // changes that consist only of spaces and tabs form no chunks
	Algorithm        Algorithm     // "" means AlgorithmChars
	Timeout          time.Duration // AlgorithmChars only: how long the primitive may search for a minimal diff. 0 means 1s.
}

// ErrComputation is returned (wrapped) when the diff primitive fails or produces a result that violates the Diff invariants.
var ErrComputation = errors.New("diff computation failed")

// defaultEOL is the EOL ('\n').
const defaultEOL = "\n"

// LineCount returns the number of lines in text: the number of '\n' plus one.
func LineCount(text string) int {
	return strings.Count(text, defaultEOL) + 1
}
