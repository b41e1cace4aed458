package diff

import (
	"fmt"
	"strings"
)

// RenderOptions configure RenderChunks.
type RenderOptions struct {
	OrigName string // if both names are empty, no file header is printed
	EditName string
	Context  int  // unchanged lines shown around each chunk
	Color    bool // ANSI colors, with intra-line highlighting of changed spans
}

// segment is a piece of a single line, either unchanged or changed.
type segment struct {
	text    string
	changed bool
}

// sideLines splits the ops of one side of d (changed is OpDelete for the original side, OpInsert for the edit side) into lines of segments. Line texts exclude
// '\n'. Only the ChangedSpan of a change is a changed segment.
func sideLines(d Diff, changed Op) [][]segment {
	lines := [][]segment{nil}
	for _, op := range d.Ops {
		if op.Op != OpEqual && op.Op != changed {
			continue
		}
		parts := strings.Split(op.Text, defaultEOL)
		for pi, p := range parts {
			if pi > 0 {
				lines = append(lines, nil)
			}
			if p == "" {
				continue
			}
			cur := &lines[len(lines)-1]
			if op.Op != changed {
				*cur = append(*cur, segment{text: p})
				continue
			}
			from, to := d.ChangedSpan(p)
			for _, seg := range []segment{{text: p[:from]}, {text: p[from:to], changed: true}, {text: p[to:]}} {
				if seg.text != "" {
					*cur = append(*cur, seg)
				}
			}
		}
	}
	return lines
}

// RenderChunks returns a unified-diff-like rendering of d's chunks: an "@@ -orig +edit @@" header per group, " " context lines, "-" original lines and "+" edit
// lines. Chunks separated by at most 2*Context unchanged lines share a group. Line numbers in headers are 1-based.
//
// If there are no chunks and no file header, the result is the empty string.
func RenderChunks(d Diff, opts RenderOptions) string {
	const (
		reset     = "\x1b[0m"
		red       = "\x1b[31m"
		green     = "\x1b[32m"
		redSpan   = "\x1b[1;37;41m"
		greenSpan = "\x1b[1;30;42m"
		magenta   = "\x1b[35m"
		cyanBold  = "\x1b[1;36m"
	)
	colorize := func(s, code string) string {
		if !opts.Color {
			return s
		}
		return code + s + reset
	}

	ctx := max(opts.Context, 0)
	origLines := sideLines(d, OpDelete)
	editLines := sideLines(d, OpInsert)

	plain := func(segs []segment) string {
		var b strings.Builder
		for _, s := range segs {
			b.WriteString(s.text)
		}
		return b.String()
	}
	changedLine := func(tag string, segs []segment, base, span string) string {
		if !opts.Color {
			return tag + plain(segs)
		}
		var b strings.Builder
		b.WriteString(base)
		b.WriteString(tag)
		for _, s := range segs {
			if s.changed {
				b.WriteString(reset + span + s.text + reset + base)
			} else {
				b.WriteString(s.text)
			}
		}
		b.WriteString(reset)
		return b.String()
	}
	lineAt := func(lines [][]segment, i int) []segment {
		if i < 0 || i >= len(lines) {
			return nil
		}
		return lines[i]
	}

	var out []string
	if opts.OrigName != "" || opts.EditName != "" {
		out = append(out, colorize("--- "+opts.OrigName, cyanBold))
		out = append(out, colorize("+++ "+opts.EditName, cyanBold))
	}

	chunks := d.Chunks()
	editCount := len(editLines)
	for gi := 0; gi < len(chunks); {
		gj := gi + 1
		for gj < len(chunks) && chunks[gj].EditFrom-chunks[gj-1].EditTo <= 2*ctx {
			gj++
		}
		group := chunks[gi:gj]

		first, last := group[0], group[len(group)-1]
		pre := min(ctx, first.EditFrom, first.OrigFrom)
		post := min(ctx, editCount-last.EditTo, len(origLines)-last.OrigTo)
		post = max(post, 0)

		var body []string
		for k := first.EditFrom - pre; k < first.EditFrom; k++ {
			body = append(body, " "+plain(lineAt(editLines, k)))
		}
		origCount, editCountInGroup := pre, pre
		for ci, c := range group {
			if ci > 0 {
				prev := group[ci-1]
				for k := prev.EditTo; k < c.EditFrom; k++ {
					body = append(body, " "+plain(lineAt(editLines, k)))
					origCount++
					editCountInGroup++
				}
			}
			for k := c.OrigFrom; k < c.OrigTo; k++ {
				body = append(body, changedLine("-", lineAt(origLines, k), red, redSpan))
				origCount++
			}
			for k := c.EditFrom; k < c.EditTo; k++ {
				body = append(body, changedLine("+", lineAt(editLines, k), green, greenSpan))
				editCountInGroup++
			}
		}
		for k := last.EditTo; k < last.EditTo+post; k++ {
			body = append(body, " "+plain(lineAt(editLines, k)))
		}
		origCount += post
		editCountInGroup += post

		header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", first.OrigFrom-pre+1, origCount, first.EditFrom-pre+1, editCountInGroup)
		out = append(out, colorize(header, magenta))
		out = append(out, body...)
		gi = gj
	}

	return strings.Join(out, "\n")
}
