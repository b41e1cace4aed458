package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/codalotl/mergeview/internal/paneview"
	"github.com/codalotl/mergeview/internal/surface"
	"github.com/codalotl/mergeview/internal/uni"
)

// Pane is one column of a rendering.
type Pane struct {
	Title    string
	Filename string // used to pick a syntax lexer; may be empty
	Buffer   *surface.Buffer
	Err      error // if non-nil, shown as a banner in the title row
}

// bgKind is the background of a run of text, in increasing priority.
type bgKind int

const (
	bgNone bgKind = iota
	bgChunk
	bgInserted
	bgDeleted
)

// attr is the look of one byte of a row.
type attr struct {
	bg        bgKind
	fg        lipgloss.TerminalColor
	bold      bool
	italic    bool
	underline bool
	cursor    bool
}

// paneRender is everything needed to draw a pane.
type paneRender struct {
	title  string
	err    error
	buf    *surface.Buffer
	hl     [][]span
	cursor *surface.Pos
}

// gutterWidth returns the cells taken by the line number and change marker columns of a pane with lineCount lines.
func gutterWidth(lineCount int) int {
	return max(len(strconv.Itoa(lineCount)), 3) + 3
}

// textWidth returns the cells left for text in a pane width cells wide.
func textWidth(width, lineCount int) int {
	return max(width-gutterWidth(lineCount), 1)
}

// renderPane draws p as a title row followed by height rows starting at visual row top. Every returned row is exactly width cells wide.
func renderPane(p paneRender, top, height, width int, st styles, opts *uni.Options) []string {
	out := make([]string, 0, height+1)
	out = append(out, renderTitle(p, width, st))

	gw := gutterWidth(p.buf.LineCount())
	tw := max(width-gw, 1)
	numWidth := gw - 3

	for _, r := range p.buf.Rows(top, height) {
		var b strings.Builder
		switch r.Kind {
		case surface.RowText:
			marks := p.buf.MarksOnLine(r.Line)
			num, marker := "", " "
			if r.Part == 0 {
				num = strconv.Itoa(r.Line + 1)
				marker = gutterMarker(marks)
			}
			b.WriteString(st.gutter.Render(fmt.Sprintf("%*s ", numWidth, num)))
			b.WriteString(renderMarker(marker, st))
			b.WriteString(" ")
			b.WriteString(renderText(p, r, marks, tw, st, opts))
		case surface.RowFold:
			label := fmt.Sprintf("⋯ %d identical lines", r.Folded)
			if r.Folded == 1 {
				label = "⋯ 1 identical line"
			}
			b.WriteString(strings.Repeat(" ", gw))
			b.WriteString(st.fold.Render(fit(label, tw, opts)))
		case surface.RowWidget:
			style := st.text
			if r.Spacer {
				style = st.spacer
			}
			b.WriteString(strings.Repeat(" ", gw))
			b.WriteString(style.Render(strings.Repeat(" ", tw)))
		}
		out = append(out, b.String())
	}
	for len(out) < height+1 {
		out = append(out, strings.Repeat(" ", width))
	}
	return out
}

func renderTitle(p paneRender, width int, st styles) string {
	if p.err != nil {
		return st.banner.Render(fit("! "+p.title+": "+p.err.Error(), width, nil))
	}
	return st.title.Render(fit(p.title, width, nil))
}

// gutterMarker returns the change marker of a line from its marks: "+" for an insertion, "-" for a deletion, "~" for a change.
func gutterMarker(marks []surface.Mark) string {
	for _, m := range marks {
		if !m.Line {
			continue
		}
		switch m.Class {
		case paneview.ClassGutterInsert:
			return "+"
		case paneview.ClassGutterDelete:
			return "-"
		case paneview.ClassGutterChange:
			return "~"
		}
	}
	return " "
}

func renderMarker(marker string, st styles) string {
	switch marker {
	case "+":
		return st.gutterAdd.Render(marker)
	case "-":
		return st.gutterDel.Render(marker)
	case "~":
		return st.gutterMod.Render(marker)
	default:
		return marker
	}
}

// renderText draws the text of a RowText row, tw cells wide.
func renderText(p paneRender, r surface.Row, marks []surface.Mark, tw int, st styles, opts *uni.Options) string {
	text := r.Text
	if uni.TextWidth(text, opts) > tw {
		text, _ = uni.Cut(text, tw, opts)
	}

	var lineAttr attr
	var ranges []surface.Mark
	for _, m := range marks {
		if m.Line {
			switch m.Class {
			case paneview.ClassChunk:
				lineAttr.bg = bgChunk
			case paneview.ClassChunkEmpty:
				lineAttr.underline = true
			}
			continue
		}
		if m.Class == paneview.ClassInserted || m.Class == paneview.ClassDeleted {
			ranges = append(ranges, m)
		}
	}
	var hl []span
	if r.Line < len(p.hl) {
		hl = p.hl[r.Line]
	}

	at := func(off int) attr {
		a := lineAttr
		for _, m := range ranges {
			if off >= m.From.Ch && off < m.To.Ch {
				if m.Class == paneview.ClassInserted {
					a.bg = bgInserted
				} else {
					a.bg = bgDeleted
				}
			}
		}
		for _, sp := range hl {
			if off >= sp.from && off < sp.to {
				a.fg, a.bold, a.italic = sp.fg, sp.bold, sp.italic
				break
			}
		}
		if p.cursor != nil && p.cursor.Line == r.Line && p.cursor.Ch == off {
			a.cursor = true
		}
		return a
	}

	var b strings.Builder
	col := 0
	tab := 4
	if opts != nil && opts.TabWidth > 0 {
		tab = opts.TabWidth
	}
	flush := func(s string, a attr) {
		if s == "" {
			return
		}
		var w int
		s, w = expandTabs(s, col, tab, opts)
		col += w
		b.WriteString(styleFor(a, st).Render(s))
	}

	start := 0
	var cur attr
	for i := range text {
		a := at(r.Offset + i)
		if i == 0 {
			cur = a
		} else if a != cur {
			flush(text[start:i], cur)
			start, cur = i, a
		}
	}
	flush(text[start:], cur)

	// Cursor after the last character of the line.
	end := r.Offset + len(r.Text)
	if p.cursor != nil && p.cursor.Line == r.Line && p.cursor.Ch == end && end == len(p.buf.Line(r.Line)) && col < tw {
		a := lineAttr
		a.cursor = true
		b.WriteString(styleFor(a, st).Render(" "))
		col++
	}
	if col < tw {
		b.WriteString(styleFor(lineAttr, st).Render(strings.Repeat(" ", tw-col)))
	}
	return b.String()
}

func styleFor(a attr, st styles) lipgloss.Style {
	var s lipgloss.Style
	switch a.bg {
	case bgChunk:
		s = st.chunk
	case bgInserted:
		s = st.inserted
	case bgDeleted:
		s = st.deleted
	default:
		s = st.text
	}
	if a.fg != nil {
		s = s.Foreground(a.fg)
	}
	if a.bold {
		s = s.Bold(true)
	}
	if a.italic {
		s = s.Italic(true)
	}
	if a.underline {
		s = s.Inherit(st.empty)
	}
	if a.cursor {
		s = s.Inherit(st.cursor)
	}
	return s
}

// expandTabs replaces tabs in s with spaces up to the next tab stop, given that s starts at column col. It returns the result and its width.
func expandTabs(s string, col, tab int, opts *uni.Options) (string, int) {
	if !strings.Contains(s, "\t") {
		return s, uni.TextWidth(s, opts)
	}
	var b strings.Builder
	w := 0
	for i, piece := range strings.Split(s, "\t") {
		if i > 0 {
			n := tab - (col+w)%tab
			b.WriteString(strings.Repeat(" ", n))
			w += n
		}
		b.WriteString(piece)
		w += uni.TextWidth(piece, opts)
	}
	return b.String(), w
}

// fit truncates or pads s to exactly width cells.
func fit(s string, width int, opts *uni.Options) string {
	if width <= 0 {
		return ""
	}
	s = strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
	if uni.TextWidth(s, opts) > width {
		s, _ = uni.Cut(s, width, opts)
	}
	if pad := width - uni.TextWidth(s, opts); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// joinColumns joins equally long lists of rows side by side with a separator between columns.
func joinColumns(cols [][]string, sep string) string {
	if len(cols) == 0 {
		return ""
	}
	n := 0
	for _, c := range cols {
		n = max(n, len(c))
	}
	lines := make([]string, n)
	for i := range lines {
		parts := make([]string, len(cols))
		for j, c := range cols {
			if i < len(c) {
				parts[j] = c[i]
			}
		}
		lines[i] = strings.Join(parts, sep)
	}
	return strings.Join(lines, "\n")
}

// paneWidths splits total cells among n panes separated by one-cell separators.
func paneWidths(total, n int) []int {
	if n <= 0 {
		return nil
	}
	avail := max(total-(n-1), n)
	out := make([]int, n)
	for i := range out {
		out[i] = avail / n
		if i < avail%n {
			out[i]++
		}
	}
	return out
}

// Snapshot renders panes side by side, every row of every pane from the top, in a total of width cells. Lines that don't fit are truncated.
//
// Snapshot is meant for non-interactive output: it never shows a cursor, and trailing blanks are trimmed from each line.
func Snapshot(panes []Pane, width int, palette PaletteName, theme string) string {
	p := newColorPalette(palette)
	st := newStyles(p)
	widths := paneWidths(width, len(panes))

	height := 0
	for _, pn := range panes {
		height = max(height, len(pn.Buffer.Rows(0, pn.Buffer.Height()+pn.Buffer.LineCount())))
	}

	cols := make([][]string, len(panes))
	for i, pn := range panes {
		pr := paneRender{title: pn.Title, err: pn.Err, buf: pn.Buffer}
		if hl := newHighlighter(pn.Filename, pn.Buffer.Value(), theme, p); hl != nil {
			pr.hl = hl.lines(pn.Buffer.Value())
		}
		cols[i] = renderPane(pr, 0, height, widths[i], st, nil)
	}
	var b strings.Builder
	for i, line := range strings.Split(joinColumns(cols, st.separator.Render("│")), "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimRight(line, " "))
	}
	b.WriteByte('\n')
	return b.String()
}
