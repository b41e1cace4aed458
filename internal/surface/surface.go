// Package surface defines the text surface contract that the merge engine drives, and Buffer, an in-memory implementation of it.
//
// A Surface is a scrolling view of a line-oriented document: it reports rendered heights of lines, scrolls, holds range and line marks, hosts line widgets
// (blocks of vertical space attached above or below a line), folds ranges of lines into a one-row placeholder, and emits events when any of these change.
//
// Lines are 0-based. Heights are in abstract units (pixels for a GUI, rows for a terminal).
package surface

import "math"

// CoordSpace selects the origin of a height.
type CoordSpace int

const (
	// Local heights are measured from the top of the document.
	Local CoordSpace = iota

	// Window heights are measured from the current scroll top.
	Window
)

// Pos is a position in a document. Ch is a byte offset into the line.
type Pos struct {
	Line int
	Ch   int
}

// LineEnd returns the position at the end of line.
func LineEnd(line int) Pos {
	return Pos{Line: line, Ch: math.MaxInt32}
}

// Less reports whether p is before q.
func (p Pos) Less(q Pos) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Ch < q.Ch
}

type (
	MarkID   int
	WidgetID int
	FoldID   int
)

// LineWidget is a block of vertical space attached to a line.
type LineWidget struct {
	Height int
	Above  bool // above the line's text rather than below it
	Spacer bool // alignment padding; not semantic content
}

// Viewport is the visible line range [From, To).
type Viewport struct {
	From, To int
}

// ScrollInfo describes scroll state. Height is the total rendered height of the document.
type ScrollInfo struct {
	Top, Left    int
	Height       int
	ClientHeight int
}

// Change describes an edit: lines FromLine..ToLine (inclusive) were replaced by text containing InsertedLineCount newlines.
type Change struct {
	FromLine          int
	ToLine            int
	InsertedLineCount int
}

// Structural reports whether the edit changed the number of lines.
func (c Change) Structural() bool {
	return c.InsertedLineCount != c.ToLine-c.FromLine
}

// DecorationKind is the kind of a Decoration event.
type DecorationKind int

const (
	FoldAdded DecorationKind = iota
	FoldCleared
	WidgetAdded
	WidgetRemoved
	WidgetChanged
	Relayout // line heights changed for a reason other than content, folds, or widgets (ex: wrap width)
)

// Decoration is emitted when a fold or widget is added, removed, or changed.
//
// For folds, Line is the last folded line. For widgets, Line is the line the widget is attached to and Widget is the widget.
type Decoration struct {
	Kind   DecorationKind
	Line   int
	Widget LineWidget
}

// Surface is the capability the merge engine requires of each pane.
//
// Implementations are not expected to be safe for concurrent use. Event callbacks run synchronously, inside the call that caused them.
type Surface interface {
	Value() string
	LineCount() int
	Line(i int) string
	Range(from, to Pos) string
	Replace(from, to Pos, text string)

	// HeightAtLine returns the height of the top of line's text, so that above-widgets of line are included. If line >= LineCount, it returns the height of the
	// whole document.
	HeightAtLine(line int, space CoordSpace) int

	// LineAtHeight returns the line rendered at height h, clamped to the document.
	LineAtHeight(h int, space CoordSpace) int

	Viewport() Viewport
	ScrollInfo() ScrollInfo
	ScrollTo(left, top int)

	MarkRange(from, to Pos, class string) MarkID
	MarkLine(line int, class string) MarkID
	ClearMark(id MarkID)

	AddLineWidget(line int, w LineWidget) WidgetID
	RemoveLineWidget(id WidgetID)

	// Fold hides lines [from, to) behind a one-row placeholder. onExpand, if non-nil, is called after the fold is expanded by the user or by an edit touching
	// it (not after Unfold).
	Fold(from, to int, onExpand func()) FoldID
	Unfold(id FoldID)

	HasFoldEndingAt(line int) bool
	HasWidget(line int) bool      // a non-spacer widget below line
	HasWidgetBelow(line int) bool // a non-spacer widget above line+1

	// Err reports whether the content is available. A non-nil error means Value is not trustworthy.
	Err() error

	OnChange(fn func(Change)) (unsubscribe func())
	OnViewportChange(fn func(Viewport)) (unsubscribe func())
	OnScroll(fn func()) (unsubscribe func())
	OnDecoration(fn func(Decoration)) (unsubscribe func())
}
