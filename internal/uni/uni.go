// Package uni measures text the way a monospace terminal displays it: display cells per grapheme cluster, and the number of rows a line occupies when soft-wrapped
// at a given width.
package uni

import (
	"github.com/clipperhouse/uax29/v2/graphemes"
	"github.com/mattn/go-runewidth"
)

// Options control width calculation.
//
// Currently only relevant for East Asian code points and their locale, and for tabs.
type Options struct {
	EastAsianWidth   bool // if true, treats certain East Asian code points as 2 wide (e.g., Chinese, Japanese, Korean). Use if the locale is one of CJK.
	TreatEmojiAsWide bool // Only considered if EastAsianWidth. If true, treats emoji as wide (2 columns).
	TabWidth         int  // cells per tab stop. 0 means 4.
}

// TextWidth returns the text width of str for monospace fonts in terminals. If opts is nil, locale is assumed to be non-East Asian. Tabs expand to the next tab stop.
func TextWidth(str string, opts *Options) int {
	cond := conditionFromOptions(opts)
	tab := tabWidth(opts)
	w := 0
	iter := graphemes.FromString(str)
	for iter.Next() {
		w += clusterWidth(iter.Value(), w, tab, cond)
	}
	return w
}

// RuneWidth returns the width of r for monospace fonts in terminals. If opts is nil, locale is assumed to be non-East Asian.
func RuneWidth(r rune, opts *Options) int {
	cond := conditionFromOptions(opts)
	return cond.RuneWidth(r)
}

// WrapRows returns how many terminal rows line occupies when soft-wrapped at width cells. A grapheme cluster is never split across rows, so a cluster wider than the
// remaining space starts a new row.
//
// An empty line occupies 1 row. If width <= 0, wrapping is disabled and the result is 1.
func WrapRows(line string, width int, opts *Options) int {
	if width <= 0 || line == "" {
		return 1
	}
	cond := conditionFromOptions(opts)
	tab := tabWidth(opts)

	rows := 1
	col := 0
	iter := graphemes.FromString(line)
	for iter.Next() {
		cw := clusterWidth(iter.Value(), col, tab, cond)
		if cw == 0 {
			continue
		}
		if col+cw > width && col > 0 {
			rows++
			col = 0
			cw = clusterWidth(iter.Value(), col, tab, cond)
		}
		col += cw
	}
	return rows
}

// Cut returns the prefix of line that fits in width cells and the remainder. Grapheme clusters are kept whole; a first cluster wider than width is
// returned as the head on its own, matching WrapRows.
func Cut(line string, width int, opts *Options) (head string, tail string) {
	if width <= 0 {
		return "", line
	}
	cond := conditionFromOptions(opts)
	tab := tabWidth(opts)

	col := 0
	iter := graphemes.FromString(line)
	for iter.Next() {
		cw := clusterWidth(iter.Value(), col, tab, cond)
		if col+cw > width && col > 0 {
			return line[:iter.Start()], line[iter.Start():]
		}
		col += cw
	}
	return line, ""
}

func clusterWidth(cluster string, col int, tab int, cond *runewidth.Condition) int {
	if cluster == "\t" {
		return tab - col%tab
	}
	return cond.StringWidth(cluster)
}

func tabWidth(opts *Options) int {
	if opts == nil || opts.TabWidth <= 0 {
		return 4
	}
	return opts.TabWidth
}

func conditionFromOptions(opts *Options) *runewidth.Condition {
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = false
	cond.StrictEmojiNeutral = true

	if opts == nil {
		return cond
	}

	cond.EastAsianWidth = opts.EastAsianWidth
	if opts.EastAsianWidth && opts.TreatEmojiAsWide {
		cond.StrictEmojiNeutral = false
	}

	return cond
}
