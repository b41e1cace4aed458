package paneview

import (
	"strings"

	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/surface"
)

// Mark classes.
const (
	ClassInserted = "mergeview-inserted" // inserted text, in the edit pane
	ClassDeleted  = "mergeview-deleted"  // deleted text, in the original pane

	ClassChunk           = "mergeview-chunk"            // every line of a chunk
	ClassChunkStart      = "mergeview-chunk-start"      // first line of a chunk
	ClassChunkEnd        = "mergeview-chunk-end"        // last line of a chunk
	ClassChunkEmpty      = "mergeview-chunk-empty"      // the chunk is empty on this side, just below this line
	ClassChunkEmptyAbove = "mergeview-chunk-empty-above" // the chunk is empty on this side, just above line 0

	ClassGutterInsert = "mergeview-gutter-insert"
	ClassGutterDelete = "mergeview-gutter-delete"
	ClassGutterChange = "mergeview-gutter-change"
)

// markState is the marked line range [from, to) of one pane and the marks placed in it.
type markState struct {
	from, to int
	ids      []surface.MarkID
}

func (m *markState) reset() {
	m.from, m.to = 0, 0
}

func (m *markState) clear(s surface.Surface) {
	for _, id := range m.ids {
		s.ClearMark(id)
	}
	m.ids = nil
	m.reset()
}

func (v *View) updateMarks() {
	v.updatePaneMarks(v.edit, &v.editMarks, false)
	v.updatePaneMarks(v.orig, &v.origMarks, true)
}

// updatePaneMarks extends the marked range of s to its viewport plus margin. If nothing is marked yet, or the viewport is more than RescanDistance lines away from
// the marked range, all marks are cleared and the viewport is marked from scratch.
func (v *View) updatePaneMarks(s surface.Surface, st *markState, isOrig bool) {
	vp := s.Viewport()
	from := max(0, vp.From-v.opts.ViewportMargin)
	to := min(s.LineCount(), vp.To+v.opts.ViewportMargin)

	if st.from == st.to || from-st.to > v.opts.RescanDistance || st.from-to > v.opts.RescanDistance {
		st.clear(s)
		v.markLines(s, st, isOrig, from, to)
		st.from, st.to = from, to
		return
	}
	if from < st.from {
		v.markLines(s, st, isOrig, from, st.from)
		st.from = from
	}
	if to > st.to {
		v.markLines(s, st, isOrig, st.to, to)
		st.to = to
	}
}

// markLines marks lines [from, to) of s. Range marks are split per line, so marking a range in pieces gives the same marks as marking it at once.
func (v *View) markLines(s surface.Surface, st *markState, isOrig bool, from, to int) {
	if from >= to {
		return
	}
	add := func(id surface.MarkID) { st.ids = append(st.ids, id) }
	inRange := func(line int) bool { return line >= from && line < to }

	changed, class := diff.OpInsert, ClassInserted
	if isOrig {
		changed, class = diff.OpDelete, ClassDeleted
	}

	// Text ranges.
	line, ch := 0, 0
	for _, op := range v.d.Ops {
		if op.Op != diff.OpEqual && op.Op != changed {
			continue
		}
		if line >= to {
			break
		}
		parts := strings.Split(op.Text, "\n")
		for pi, p := range parts {
			if pi > 0 {
				line++
				ch = 0
			}
			if op.Op == changed && inRange(line) {
				if lo, hi := v.d.ChangedSpan(p); hi > lo {
					add(s.MarkRange(surface.Pos{Line: line, Ch: ch + lo}, surface.Pos{Line: line, Ch: ch + hi}, class))
				}
			}
			ch += len(p)
		}
	}

	// Line classes.
	lineCount := s.LineCount()
	for _, c := range v.chunks {
		sFrom, sTo := c.EditFrom, c.EditTo
		if isOrig {
			sFrom, sTo = c.OrigFrom, c.OrigTo
		}
		if sFrom >= to {
			break
		}
		for l := max(from, sFrom); l < min(to, sTo); l++ {
			add(s.MarkLine(l, ClassChunk))
			if l == sFrom {
				add(s.MarkLine(l, ClassChunkStart))
			}
			if l == sTo-1 {
				add(s.MarkLine(l, ClassChunkEnd))
			}
		}
		if sFrom == sTo {
			switch {
			case sFrom > 0 && inRange(sFrom-1):
				add(s.MarkLine(sFrom-1, ClassChunkEmpty))
			case sFrom == 0 && inRange(0):
				add(s.MarkLine(0, ClassChunkEmptyAbove))
			}
		}

		gutter := min(sFrom, lineCount-1)
		if sFrom == sTo && sFrom > 0 {
			gutter = sFrom - 1
		}
		if inRange(gutter) {
			add(s.MarkLine(gutter, gutterClass(c)))
		}
	}
}

func gutterClass(c diff.Chunk) string {
	switch {
	case c.OrigEmpty():
		return ClassGutterInsert
	case c.EditEmpty():
		return ClassGutterDelete
	default:
		return ClassGutterChange
	}
}
