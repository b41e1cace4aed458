package surface

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/codalotl/mergeview/internal/uni"
)

// DefaultLineHeight is the height of one rendered row when Options.LineHeight is unset.
const DefaultLineHeight = 16

// Options configure a Buffer.
type Options struct {
	LineHeight   int          // height of one row; default DefaultLineHeight
	WrapWidth    int          // soft-wrap width in cells; <= 0 disables soft wrap
	ClientHeight int          // height of the visible area; default 20 rows
	Uni          *uni.Options // text measurement options used for soft wrap
}

// Mark is a snapshot of a mark. Line marks have From == To == {line, 0}.
type Mark struct {
	From, To Pos
	Class    string
	Line     bool
}

// Widget is a snapshot of a line widget.
type Widget struct {
	ID   WidgetID
	Line int
	LineWidget
}

// FoldRange is a snapshot of a fold: lines [From, To) are hidden.
type FoldRange struct {
	ID       FoldID
	From, To int
}

type fold struct {
	id       FoldID
	from, to int
	onExpand func()
}

type widget struct {
	id   WidgetID
	line int
	w    LineWidget
}

// layout caches per-line heights. It is rebuilt lazily after any change that affects heights.
type layout struct {
	tops   []int  // tops[i] is the top of line i's block; tops[len(lines)] is the document height
	above  []int  // above-widget height of line i (0 for hidden lines)
	hidden []bool // line is inside a fold
}

// Buffer is an in-memory Surface. The zero value is not usable; use NewBuffer. A Buffer is not safe for concurrent use.
type Buffer struct {
	lines []string
	opts  Options
	err   error

	top, left    int
	clientHeight int

	nextID  int
	marks   map[MarkID]Mark
	widgets map[WidgetID]*widget
	folds   map[FoldID]*fold

	lay          *layout
	lastViewport Viewport

	changeL   listeners[Change]
	viewportL listeners[Viewport]
	scrollL   listeners[struct{}]
	decoL     listeners[Decoration]
}

var _ Surface = (*Buffer)(nil)

// NewBuffer returns a Buffer holding text.
func NewBuffer(text string, opts Options) *Buffer {
	if opts.LineHeight <= 0 {
		opts.LineHeight = DefaultLineHeight
	}
	if opts.ClientHeight <= 0 {
		opts.ClientHeight = 20 * opts.LineHeight
	}
	b := &Buffer{
		lines:        strings.Split(text, "\n"),
		opts:         opts,
		clientHeight: opts.ClientHeight,
		marks:        make(map[MarkID]Mark),
		widgets:      make(map[WidgetID]*widget),
		folds:        make(map[FoldID]*fold),
	}
	b.lastViewport = b.Viewport()
	return b
}

func (b *Buffer) id() int {
	b.nextID++
	return b.nextID
}

// Value returns the whole text.
func (b *Buffer) Value() string { return strings.Join(b.lines, "\n") }

// LineCount returns the number of lines (at least 1).
func (b *Buffer) LineCount() int { return len(b.lines) }

// Line returns line i without its newline, or "" if i is out of range.
func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

// LineHeight returns the height of one row.
func (b *Buffer) LineHeight() int { return b.opts.LineHeight }

// Err returns the error set with SetErr.
func (b *Buffer) Err() error { return b.err }

// SetErr sets the content availability error. It does not emit events.
func (b *Buffer) SetErr(err error) { b.err = err }

func (b *Buffer) clip(p Pos) Pos {
	if p.Line < 0 {
		return Pos{}
	}
	if p.Line >= len(b.lines) {
		last := len(b.lines) - 1
		return Pos{Line: last, Ch: len(b.lines[last])}
	}
	p.Ch = max(0, min(p.Ch, len(b.lines[p.Line])))
	return p
}

// Range returns the text between from and to.
func (b *Buffer) Range(from, to Pos) string {
	from, to = b.clip(from), b.clip(to)
	if to.Less(from) {
		from, to = to, from
	}
	if from.Line == to.Line {
		return b.lines[from.Line][from.Ch:to.Ch]
	}
	var sb strings.Builder
	sb.WriteString(b.lines[from.Line][from.Ch:])
	for i := from.Line + 1; i < to.Line; i++ {
		sb.WriteString("\n")
		sb.WriteString(b.lines[i])
	}
	sb.WriteString("\n")
	sb.WriteString(b.lines[to.Line][:to.Ch])
	return sb.String()
}

// SetValue replaces the whole text.
func (b *Buffer) SetValue(text string) {
	b.Replace(Pos{}, LineEnd(len(b.lines)-1), text)
}

// Replace replaces the text between from and to with text.
//
// Folds touching lines from.Line..to.Line are expanded first. Decorations on lines from.Line+1..to.Line are dropped (marks on from.Line are dropped as well);
// decorations on later lines move with their lines. A Change event is emitted after the edit is applied.
func (b *Buffer) Replace(from, to Pos, text string) {
	from, to = b.clip(from), b.clip(to)
	if to.Less(from) {
		from, to = to, from
	}

	for _, f := range b.sortedFolds() {
		if f.from <= to.Line && f.to-1 >= from.Line {
			b.expand(f)
		}
	}

	inserted := strings.Split(b.lines[from.Line][:from.Ch]+text+b.lines[to.Line][to.Ch:], "\n")
	newLines := make([]string, 0, len(b.lines)-(to.Line-from.Line+1)+len(inserted))
	newLines = append(newLines, b.lines[:from.Line]...)
	newLines = append(newLines, inserted...)
	newLines = append(newLines, b.lines[to.Line+1:]...)
	b.lines = newLines

	change := Change{FromLine: from.Line, ToLine: to.Line, InsertedLineCount: strings.Count(text, "\n")}
	delta := change.InsertedLineCount - (change.ToLine - change.FromLine)

	for id, m := range b.marks {
		switch {
		case m.To.Line < from.Line:
		case m.From.Line > to.Line:
			m.From.Line += delta
			m.To.Line += delta
			b.marks[id] = m
		default:
			delete(b.marks, id)
		}
	}
	for id, w := range b.widgets {
		switch {
		case w.line <= from.Line:
		case w.line <= to.Line:
			delete(b.widgets, id)
		default:
			w.line += delta
		}
	}
	for _, f := range b.folds {
		if f.from > to.Line {
			f.from += delta
			f.to += delta
		}
	}

	b.lay = nil
	b.changeL.emit(change)
	b.emitViewportIfChanged()
}

// MarkRange marks the text between from and to with class.
func (b *Buffer) MarkRange(from, to Pos, class string) MarkID {
	from, to = b.clip(from), b.clip(to)
	if to.Less(from) {
		from, to = to, from
	}
	id := MarkID(b.id())
	b.marks[id] = Mark{From: from, To: to, Class: class}
	return id
}

// MarkLine marks a whole line with class.
func (b *Buffer) MarkLine(line int, class string) MarkID {
	p := b.clip(Pos{Line: line})
	id := MarkID(b.id())
	b.marks[id] = Mark{From: Pos{Line: p.Line}, To: Pos{Line: p.Line}, Class: class, Line: true}
	return id
}

// ClearMark removes a mark. Unknown ids are ignored.
func (b *Buffer) ClearMark(id MarkID) {
	delete(b.marks, id)
}

// Marks returns all marks, sorted. Two Buffers with the same visible marking return equal slices regardless of mark ids.
func (b *Buffer) Marks() []Mark {
	out := make([]Mark, 0, len(b.marks))
	for _, m := range b.marks {
		out = append(out, m)
	}
	slices.SortFunc(out, compareMarks)
	return out
}

// MarksOnLine returns the marks that touch line, sorted.
func (b *Buffer) MarksOnLine(line int) []Mark {
	var out []Mark
	for _, m := range b.marks {
		if m.From.Line <= line && m.To.Line >= line {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, compareMarks)
	return out
}

func compareMarks(a, b Mark) int {
	if c := cmp.Compare(a.From.Line, b.From.Line); c != 0 {
		return c
	}
	if c := cmp.Compare(a.From.Ch, b.From.Ch); c != 0 {
		return c
	}
	if c := cmp.Compare(a.To.Line, b.To.Line); c != 0 {
		return c
	}
	if c := cmp.Compare(a.To.Ch, b.To.Ch); c != 0 {
		return c
	}
	if a.Line != b.Line {
		if a.Line {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Class, b.Class)
}

// AddLineWidget attaches w to line (clamped to the document).
func (b *Buffer) AddLineWidget(line int, w LineWidget) WidgetID {
	line = b.clip(Pos{Line: line}).Line
	id := WidgetID(b.id())
	b.widgets[id] = &widget{id: id, line: line, w: w}
	b.lay = nil
	b.decoL.emit(Decoration{Kind: WidgetAdded, Line: line, Widget: w})
	b.emitViewportIfChanged()
	return id
}

// RemoveLineWidget removes a widget. Unknown ids are ignored.
func (b *Buffer) RemoveLineWidget(id WidgetID) {
	w, ok := b.widgets[id]
	if !ok {
		return
	}
	delete(b.widgets, id)
	b.lay = nil
	b.decoL.emit(Decoration{Kind: WidgetRemoved, Line: w.line, Widget: w.w})
	b.emitViewportIfChanged()
}

// SetWidgetHeight changes the height of a widget.
func (b *Buffer) SetWidgetHeight(id WidgetID, height int) {
	w, ok := b.widgets[id]
	if !ok || w.w.Height == height {
		return
	}
	w.w.Height = height
	b.lay = nil
	b.decoL.emit(Decoration{Kind: WidgetChanged, Line: w.line, Widget: w.w})
	b.emitViewportIfChanged()
}

// Widgets returns all widgets, sorted by line and then id.
func (b *Buffer) Widgets() []Widget {
	out := make([]Widget, 0, len(b.widgets))
	for _, w := range b.widgets {
		out = append(out, Widget{ID: w.id, Line: w.line, LineWidget: w.w})
	}
	slices.SortFunc(out, func(x, y Widget) int {
		if c := cmp.Compare(x.Line, y.Line); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}

// HasWidget reports whether line has a non-spacer widget below it.
func (b *Buffer) HasWidget(line int) bool {
	for _, w := range b.widgets {
		if w.line == line && !w.w.Above && !w.w.Spacer {
			return true
		}
	}
	return false
}

// HasWidgetBelow reports whether line+1 exists and has a non-spacer widget above it.
func (b *Buffer) HasWidgetBelow(line int) bool {
	if line+1 >= len(b.lines) {
		return false
	}
	for _, w := range b.widgets {
		if w.line == line+1 && w.w.Above && !w.w.Spacer {
			return true
		}
	}
	return false
}

// Fold hides lines [from, to). It returns 0 if the range is empty after clamping.
func (b *Buffer) Fold(from, to int, onExpand func()) FoldID {
	from = max(from, 0)
	to = min(to, len(b.lines))
	if to <= from {
		return 0
	}
	id := FoldID(b.id())
	b.folds[id] = &fold{id: id, from: from, to: to, onExpand: onExpand}
	b.lay = nil
	b.decoL.emit(Decoration{Kind: FoldAdded, Line: to - 1})
	b.emitViewportIfChanged()
	return id
}

// Unfold removes a fold without calling its onExpand. Unknown ids are ignored.
func (b *Buffer) Unfold(id FoldID) {
	f, ok := b.folds[id]
	if !ok {
		return
	}
	b.removeFold(f)
}

func (b *Buffer) removeFold(f *fold) {
	delete(b.folds, f.id)
	b.lay = nil
	b.decoL.emit(Decoration{Kind: FoldCleared, Line: f.to - 1})
	b.emitViewportIfChanged()
}

// expand removes f and calls its onExpand.
func (b *Buffer) expand(f *fold) {
	if _, ok := b.folds[f.id]; !ok {
		return
	}
	b.removeFold(f)
	if f.onExpand != nil {
		f.onExpand()
	}
}

// ClickFold expands the fold containing line, as if its placeholder was clicked. It reports whether there was one.
func (b *Buffer) ClickFold(line int) bool {
	for _, f := range b.sortedFolds() {
		if line >= f.from && line < f.to {
			b.expand(f)
			return true
		}
	}
	return false
}

// Folds returns all folds, sorted by start line.
func (b *Buffer) Folds() []FoldRange {
	var out []FoldRange
	for _, f := range b.sortedFolds() {
		out = append(out, FoldRange{ID: f.id, From: f.from, To: f.to})
	}
	return out
}

func (b *Buffer) sortedFolds() []*fold {
	out := make([]*fold, 0, len(b.folds))
	for _, f := range b.folds {
		out = append(out, f)
	}
	slices.SortFunc(out, func(x, y *fold) int {
		if c := cmp.Compare(x.from, y.from); c != 0 {
			return c
		}
		return cmp.Compare(x.id, y.id)
	})
	return out
}

// HasFoldEndingAt reports whether a fold's last hidden line is line.
func (b *Buffer) HasFoldEndingAt(line int) bool {
	for _, f := range b.folds {
		if f.to-1 == line {
			return true
		}
	}
	return false
}

// Hidden reports whether line is inside a fold.
func (b *Buffer) Hidden(line int) bool {
	l := b.layout()
	return line >= 0 && line < len(l.hidden) && l.hidden[line]
}

// SetWrapWidth changes the soft-wrap width and emits a Relayout decoration.
func (b *Buffer) SetWrapWidth(width int) {
	if width == b.opts.WrapWidth {
		return
	}
	b.opts.WrapWidth = width
	b.relayout()
}

// SetLineHeight changes the row height and emits a Relayout decoration.
func (b *Buffer) SetLineHeight(h int) {
	if h <= 0 || h == b.opts.LineHeight {
		return
	}
	b.opts.LineHeight = h
	b.relayout()
}

func (b *Buffer) relayout() {
	b.lay = nil
	b.decoL.emit(Decoration{Kind: Relayout, Line: 0})
	b.emitViewportIfChanged()
}

// SetClientHeight changes the height of the visible area.
func (b *Buffer) SetClientHeight(h int) {
	if h < 0 || h == b.clientHeight {
		return
	}
	b.clientHeight = h
	b.emitViewportIfChanged()
}

// rows returns the number of rows line i renders as.
func (b *Buffer) rows(i int) int {
	return uni.WrapRows(b.lines[i], b.opts.WrapWidth, b.opts.Uni)
}

func (b *Buffer) layout() *layout {
	if b.lay != nil {
		return b.lay
	}
	n := len(b.lines)
	l := &layout{
		tops:   make([]int, n+1),
		above:  make([]int, n),
		hidden: make([]bool, n),
	}
	for _, f := range b.folds {
		for i := f.from; i < f.to && i < n; i++ {
			l.hidden[i] = true
		}
	}
	below := make([]int, n)
	for _, w := range b.widgets {
		if w.line < 0 || w.line >= n || l.hidden[w.line] {
			continue
		}
		if w.w.Above {
			l.above[w.line] += w.w.Height
		} else {
			below[w.line] += w.w.Height
		}
	}
	lh := b.opts.LineHeight
	for i := 0; i < n; i++ {
		var block int
		switch {
		case l.hidden[i] && (i == 0 || !l.hidden[i-1]):
			block = lh // placeholder row
		case l.hidden[i]:
			block = 0
		default:
			block = l.above[i] + b.rows(i)*lh + below[i]
		}
		l.tops[i+1] = l.tops[i] + block
	}
	b.lay = l
	return l
}

// Height returns the rendered height of the whole document.
func (b *Buffer) Height() int {
	l := b.layout()
	return l.tops[len(l.tops)-1]
}

// HeightAtLine implements Surface.
func (b *Buffer) HeightAtLine(line int, space CoordSpace) int {
	l := b.layout()
	var h int
	switch {
	case line < 0:
		h = 0
	case line >= len(b.lines):
		h = l.tops[len(b.lines)]
	default:
		h = l.tops[line] + l.above[line]
	}
	if space == Window {
		h -= b.ScrollInfo().Top
	}
	return h
}

// LineAtHeight implements Surface.
func (b *Buffer) LineAtHeight(h int, space CoordSpace) int {
	if space == Window {
		h += b.ScrollInfo().Top
	}
	l := b.layout()
	n := len(b.lines)
	i := sort.Search(n+1, func(i int) bool { return l.tops[i] > h }) - 1
	return max(0, min(i, n-1))
}

func (b *Buffer) maxTop() int {
	return max(0, b.Height()-b.clientHeight)
}

// ScrollInfo implements Surface. Top is clamped to the current document height.
func (b *Buffer) ScrollInfo() ScrollInfo {
	return ScrollInfo{
		Top:          min(b.top, b.maxTop()),
		Left:         b.left,
		Height:       b.Height(),
		ClientHeight: b.clientHeight,
	}
}

// Viewport implements Surface.
func (b *Buffer) Viewport() Viewport {
	top := b.ScrollInfo().Top
	from := b.LineAtHeight(top, Local)
	to := b.LineAtHeight(top+max(b.clientHeight, 1)-1, Local) + 1
	return Viewport{From: from, To: min(to, len(b.lines))}
}

// ScrollTo implements Surface. Scroll events are emitted synchronously and only if the position changed.
func (b *Buffer) ScrollTo(left, top int) {
	top = max(0, min(top, b.maxTop()))
	left = max(0, left)
	if top == b.ScrollInfo().Top && left == b.left {
		return
	}
	b.top, b.left = top, left
	b.scrollL.emit(struct{}{})
	b.emitViewportIfChanged()
}

func (b *Buffer) emitViewportIfChanged() {
	vp := b.Viewport()
	if vp == b.lastViewport {
		return
	}
	b.lastViewport = vp
	b.viewportL.emit(vp)
}

// OnChange implements Surface.
func (b *Buffer) OnChange(fn func(Change)) func() { return b.changeL.add(fn) }

// OnViewportChange implements Surface.
func (b *Buffer) OnViewportChange(fn func(Viewport)) func() { return b.viewportL.add(fn) }

// OnScroll implements Surface.
func (b *Buffer) OnScroll(fn func()) func() {
	return b.scrollL.add(func(struct{}) { fn() })
}

// OnDecoration implements Surface.
func (b *Buffer) OnDecoration(fn func(Decoration)) func() { return b.decoL.add(fn) }

// String returns a short description, for logs and test failures.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer{lines=%d height=%d top=%d}", len(b.lines), b.Height(), b.ScrollInfo().Top)
}
