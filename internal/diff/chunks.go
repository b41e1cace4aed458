package diff

import (
	"fmt"
	"slices"
	"strings"
)

// Chunk is a contiguous changed region, as half-open line ranges on both sides. Either range may be empty (a pure insertion or deletion), but not both.
type Chunk struct {
	EditFrom, EditTo int
	OrigFrom, OrigTo int
}

// String returns the chunk as "edit[a,b) orig[c,d)".
func (c Chunk) String() string {
	return fmt.Sprintf("edit[%d,%d) orig[%d,%d)", c.EditFrom, c.EditTo, c.OrigFrom, c.OrigTo)
}

// EditEmpty reports whether the chunk covers no edit lines.
func (c Chunk) EditEmpty() bool { return c.EditTo <= c.EditFrom }

// OrigEmpty reports whether the chunk covers no original lines.
func (c Chunk) OrigEmpty() bool { return c.OrigTo <= c.OrigFrom }

// ContainsEdit reports whether editLine is inside the chunk's edit range.
func (c Chunk) ContainsEdit(editLine int) bool {
	return editLine >= c.EditFrom && editLine < c.EditTo
}

// ContainsOrig reports whether origLine is inside the chunk's original range.
func (c Chunk) ContainsOrig(origLine int) bool {
	return origLine >= c.OrigFrom && origLine < c.OrigTo
}

// ChunksFromOps walks ops and returns the chunks, in increasing, non-overlapping order.
//
// An Equal operation only closes the open chunk if, after trimming partial lines at both of its ends, it still covers at least one full line. Equal text shorter
// than one full line (for example the unchanged middle of a modified line) is absorbed into the surrounding chunk. A chunk still open when ops run out is flushed
// through the last line.
func ChunksFromOps(ops []Operation) []Chunk {
	var chunks []Chunk
	if len(ops) == 0 {
		return chunks
	}

	startEdit, startOrig := 0, 0
	editLine, origLine := 0, 0
	for i, op := range ops {
		nl := strings.Count(op.Text, defaultEOL)
		switch op.Op {
		case OpEqual:
			startOff := 0
			if !startOfLineClean(ops, i) || editLine < startEdit || origLine < startOrig {
				startOff = 1
			}
			cleanFromEdit, cleanFromOrig := editLine+startOff, origLine+startOff
			editLine += nl
			origLine += nl
			endOff := 0
			if endOfLineClean(ops, i) {
				endOff = 1
			}
			cleanToEdit, cleanToOrig := editLine+endOff, origLine+endOff
			if cleanToEdit > cleanFromEdit {
				if i > 0 {
					chunks = append(chunks, Chunk{
						EditFrom: startEdit, EditTo: cleanFromEdit,
						OrigFrom: startOrig, OrigTo: cleanFromOrig,
					})
				}
				startEdit, startOrig = cleanToEdit, cleanToOrig
			}
		case OpInsert:
			editLine += nl
		case OpDelete:
			origLine += nl
		}
	}
	if startEdit <= editLine || startOrig <= origLine {
		chunks = append(chunks, Chunk{
			EditFrom: startEdit, EditTo: editLine + 1,
			OrigFrom: startOrig, OrigTo: origLine + 1,
		})
	}
	return chunks
}

// endOfLineClean reports whether the Equal op at i ends exactly where a line ends on both sides: the op is last, or the following change(s) start with a newline.
func endOfLineClean(ops []Operation, i int) bool {
	n := len(ops)
	if i == n-1 {
		return true
	}
	next := ops[i+1].Text
	if (len(next) == 1 && i < n-2) || next[0] != '\n' {
		return false
	}
	if i == n-2 {
		return true
	}
	next = ops[i+2].Text
	return (len(next) > 1 || i == n-3) && next[0] == '\n'
}

// startOfLineClean reports whether the Equal op at i starts at the beginning of a line on both sides.
func startOfLineClean(ops []Operation, i int) bool {
	if i == 0 {
		return true
	}
	last := ops[i-1].Text
	if last[len(last)-1] != '\n' {
		return false
	}
	if i == 1 {
		return true
	}
	last = ops[i-2].Text
	return last[len(last)-1] == '\n'
}

// MatchingOrigLine maps editLine to the corresponding original line using chunks. It returns false if editLine is inside a chunk.
func MatchingOrigLine(editLine int, chunks []Chunk) (int, bool) {
	editStart, origStart := 0, 0
	for _, c := range chunks {
		if c.ContainsEdit(editLine) {
			return 0, false
		}
		if c.EditFrom > editLine {
			break
		}
		editStart, origStart = c.EditTo, c.OrigTo
	}
	return origStart + (editLine - editStart), true
}

// MatchingEditLine is the inverse of MatchingOrigLine.
func MatchingEditLine(origLine int, chunks []Chunk) (int, bool) {
	editStart, origStart := 0, 0
	for _, c := range chunks {
		if c.ContainsOrig(origLine) {
			return 0, false
		}
		if c.OrigFrom > origLine {
			break
		}
		editStart, origStart = c.EditTo, c.OrigTo
	}
	return editStart + (origLine - origStart), true
}

// ChunksEqual reports whether a and b hold the same chunks.
func ChunksEqual(a, b []Chunk) bool {
	return slices.Equal(a, b)
}
