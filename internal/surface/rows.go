package surface

import "github.com/codalotl/mergeview/internal/uni"

// RowKind is the kind of a visual row.
type RowKind int

const (
	RowText   RowKind = iota // a (soft-wrapped part of a) line of text
	RowFold                  // the placeholder of a fold
	RowWidget                // part of a line widget
)

// Row is one visual row of a Buffer.
type Row struct {
	Kind   RowKind
	Line   int    // document line the row belongs to
	Part   int    // soft-wrap part index, for RowText
	Text   string // text of the part, for RowText
	Offset int    // byte offset of Text in the line, for RowText
	Folded int    // number of hidden lines, for RowFold
	Spacer bool   // the widget is alignment padding, for RowWidget
}

// Rows returns up to n visual rows starting at row index from, where a row is LineHeight tall. Widget heights are rounded up to whole rows.
func (b *Buffer) Rows(from, n int) []Row {
	if n <= 0 {
		return nil
	}
	l := b.layout()
	lh := b.opts.LineHeight
	var out []Row
	idx := 0
	emit := func(r Row) bool {
		if idx >= from {
			out = append(out, r)
		}
		idx++
		return len(out) >= n
	}
	widgetRows := func(w Widget) int {
		return (w.Height + lh - 1) / lh
	}

	byLine := make(map[int][]Widget)
	for _, w := range b.Widgets() {
		byLine[w.Line] = append(byLine[w.Line], w)
	}

	for i := range b.lines {
		if l.hidden[i] {
			if i == 0 || !l.hidden[i-1] {
				count := 0
				for j := i; j < len(b.lines) && l.hidden[j]; j++ {
					count++
				}
				if emit(Row{Kind: RowFold, Line: i, Folded: count}) {
					return out
				}
			}
			continue
		}
		ws := byLine[i]
		for _, w := range ws {
			if !w.Above {
				continue
			}
			for k := 0; k < widgetRows(w); k++ {
				if emit(Row{Kind: RowWidget, Line: i, Spacer: w.Spacer}) {
					return out
				}
			}
		}
		rest := b.lines[i]
		off := 0
		for part := 0; ; part++ {
			head := rest
			if b.opts.WrapWidth > 0 {
				head, rest = uni.Cut(rest, b.opts.WrapWidth, b.opts.Uni)
			} else {
				rest = ""
			}
			if emit(Row{Kind: RowText, Line: i, Part: part, Text: head, Offset: off}) {
				return out
			}
			off += len(head)
			if rest == "" {
				break
			}
		}
		for _, w := range ws {
			if w.Above {
				continue
			}
			for k := 0; k < widgetRows(w); k++ {
				if emit(Row{Kind: RowWidget, Line: i, Spacer: w.Spacer}) {
					return out
				}
			}
		}
	}
	return out
}
