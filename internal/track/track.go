// Package track keeps, per pane, the sorted set of lines whose decorations affect vertical alignment: lines where a fold ends, lines with a widget below them,
// and lines followed by a line with a widget above it. The alignment pass turns each flagged line into a candidate tie point (the line after it).
//
// A Tracker is updated incrementally from surface events (see Attach). Structural edits shift entries and re-derive the flags on the edit boundary from the pane
// itself; nothing else rescans.
package track

import (
	"slices"
	"sort"
	"strings"

	"github.com/codalotl/mergeview/internal/surface"
)

// Flag is a set of alignment-relevant decorations on a line.
type Flag uint8

const (
	FlagMarker      Flag = 1 << iota // a fold ends on this line
	FlagWidget                       // a widget is below this line
	FlagWidgetBelow                  // a widget is above the next line
)

const allFlags = FlagMarker | FlagWidget | FlagWidgetBelow

// String returns the names of the flags in f joined by "|".
func (f Flag) String() string {
	var parts []string
	if f&FlagMarker != 0 {
		parts = append(parts, "marker")
	}
	if f&FlagWidget != 0 {
		parts = append(parts, "widget")
	}
	if f&FlagWidgetBelow != 0 {
		parts = append(parts, "widget-below")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Entry is a flagged line.
type Entry struct {
	Line  int
	Flags Flag
}

// Probe answers whether a pane currently has each kind of decoration. surface.Surface implements it.
type Probe interface {
	LineCount() int
	HasFoldEndingAt(line int) bool
	HasWidget(line int) bool
	HasWidgetBelow(line int) bool
}

// Tracker holds the flagged lines of one pane. It is not safe for concurrent use.
type Tracker struct {
	probe   Probe
	entries []Entry // sorted by Line; Flags never 0
	realign []func()
}

// New returns an empty Tracker that re-derives flags from probe.
func New(probe Probe) *Tracker {
	return &Tracker{probe: probe}
}

// OnRealign registers fn to be called whenever the flagged set changes.
func (t *Tracker) OnRealign(fn func()) {
	t.realign = append(t.realign, fn)
}

func (t *Tracker) signal() {
	for _, fn := range t.realign {
		fn()
	}
}

// Entries returns a copy of the flagged lines in increasing order.
func (t *Tracker) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Lines returns the flagged line numbers in increasing order.
func (t *Tracker) Lines() []int {
	out := make([]int, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Line
	}
	return out
}

func (t *Tracker) find(line int) (int, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Line >= line })
	return i, i < len(t.entries) && t.entries[i].Line == line
}

// Flags returns the flags of line.
func (t *Tracker) Flags(line int) Flag {
	if i, ok := t.find(line); ok {
		return t.entries[i].Flags
	}
	return 0
}

// set replaces the flags of line and reports whether they changed.
func (t *Tracker) set(line int, flags Flag) bool {
	i, ok := t.find(line)
	switch {
	case ok && flags == 0:
		t.entries = slices.Delete(t.entries, i, i+1)
	case ok:
		if t.entries[i].Flags == flags {
			return false
		}
		t.entries[i].Flags = flags
	case flags == 0:
		return false
	default:
		t.entries = slices.Insert(t.entries, i, Entry{Line: line, Flags: flags})
	}
	return true
}

// Mark adds flag to line.
func (t *Tracker) Mark(line int, flag Flag) {
	if line < 0 {
		return
	}
	if t.set(line, t.Flags(line)|flag) {
		t.signal()
	}
}

// Unmark removes flag from line.
func (t *Tracker) Unmark(line int, flag Flag) {
	if t.set(line, t.Flags(line)&^flag) {
		t.signal()
	}
}

// Check removes flag from line if the pane no longer has the corresponding decoration.
func (t *Tracker) Check(line int, flag Flag) {
	if t.Flags(line)&flag == 0 {
		return
	}
	if t.probeFlags(line)&flag == 0 {
		t.Unmark(line, flag)
	}
}

func (t *Tracker) probeFlags(line int) Flag {
	if t.probe == nil || line < 0 || line >= t.probe.LineCount() {
		return 0
	}
	var f Flag
	if t.probe.HasFoldEndingAt(line) {
		f |= FlagMarker
	}
	if t.probe.HasWidget(line) {
		f |= FlagWidget
	}
	if t.probe.HasWidgetBelow(line) {
		f |= FlagWidgetBelow
	}
	return f
}

// Shift applies a structural edit: entries before from are untouched, entries in [from, from+removed) are dropped, and entries at or after from+removed move by
// added-removed. If the Tracker has a probe, the flags of the boundary lines [from-1, from+added-1] are then re-derived from the pane, so that a widget-below entry
// on the boundary survives exactly when the pane still has the widget.
func (t *Tracker) Shift(from, removed, added int) {
	delta := added - removed
	changed := false
	out := t.entries[:0]
	for _, e := range t.entries {
		switch {
		case e.Line < from:
		case e.Line < from+removed:
			changed = true
			continue
		default:
			if delta != 0 {
				e.Line += delta
				changed = true
			}
		}
		out = append(out, e)
	}
	t.entries = out

	if t.probe != nil {
		for line := max(from-1, 0); line <= from+added-1; line++ {
			if t.set(line, t.probeFlags(line)) {
				changed = true
			}
		}
	}
	if changed {
		t.signal()
	}
}

// Scan returns the flagged lines of p by checking every line.
func Scan(p Probe) []Entry {
	t := &Tracker{probe: p}
	var out []Entry
	for line := 0; line < p.LineCount(); line++ {
		if f := t.probeFlags(line); f != 0 {
			out = append(out, Entry{Line: line, Flags: f})
		}
	}
	return out
}

// Attach keeps t in sync with s's decoration and change events. Alignment spacers are ignored. It returns a function that detaches t.
//
// t starts from a full scan of s.
func Attach(t *Tracker, s surface.Surface) (detach func()) {
	t.probe = s
	t.entries = Scan(s)

	unDeco := s.OnDecoration(func(d surface.Decoration) {
		switch d.Kind {
		case surface.FoldAdded:
			t.Mark(d.Line, FlagMarker)
		case surface.FoldCleared:
			t.Check(d.Line, FlagMarker)
		case surface.WidgetAdded:
			if d.Widget.Spacer {
				return
			}
			if d.Widget.Above {
				t.Mark(d.Line-1, FlagWidgetBelow)
			} else {
				t.Mark(d.Line, FlagWidget)
			}
		case surface.WidgetRemoved:
			if d.Widget.Spacer {
				return
			}
			if d.Widget.Above {
				t.Check(d.Line-1, FlagWidgetBelow)
			} else {
				t.Check(d.Line, FlagWidget)
			}
		case surface.WidgetChanged:
			if !d.Widget.Spacer {
				t.signal()
			}
		case surface.Relayout:
			t.signal()
		}
	})
	unChange := s.OnChange(func(c surface.Change) {
		removed := c.ToLine - c.FromLine
		added := c.InsertedLineCount
		if removed == 0 && added == 0 {
			// In-line edit: only the edited line's flags can change.
			if t.set(c.FromLine, t.probeFlags(c.FromLine)) {
				t.signal()
			}
			return
		}
		t.Shift(c.FromLine+1, removed, added)
	})
	return func() {
		unDeco()
		unChange()
	}
}

var _ Probe = surface.Surface(nil)
