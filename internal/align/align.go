// Package align keeps the edit pane and up to two original panes vertically aligned by inserting spacer widgets.
//
// A tie is a set of corresponding lines, one per pane, that must start at the same height. Ties are only made at chunk boundaries and at lines whose decorations
// change heights (see package track); inside a chunk there is nothing to correspond to. Each pass clears every spacer it made before and pads every tie up to the
// tallest pane.
package align

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/surface"
	"github.com/codalotl/mergeview/internal/track"
)

// NoLine marks a pane that does not take part in a tie.
const NoLine = -1

// Tie holds corresponding lines: {edit, primary original, secondary original}. Entries may be NoLine.
type Tie [3]int

var (
	// ErrInconsistent is returned when a tie refers to a line a pane doesn't have, which means the chunks are out of date with the content.
	ErrInconsistent = errors.New("alignment inconsistent with pane content")

	// ErrUnavailable is returned when a pane's content is unavailable.
	ErrUnavailable = errors.New("pane content unavailable")
)

// Comparison is an original pane with its tracker and its chunks against the edit pane.
type Comparison struct {
	Orig    surface.Surface
	Tracker *track.Tracker // may be nil
	Chunks  []diff.Chunk
}

// Options configure an Engine.
type Options struct {
	// MinPad is the largest height difference left unpadded. Default 1. Negative means 0: every difference is padded, which is what panes with
	// one-unit rows need.
	MinPad int

	// MatchTolerance lets an original line join an existing tie when its implied edit line is off by at most this many lines. Default 0 (exact).
	MatchTolerance int

	Logger *zap.Logger
}

// Engine owns the spacers of one merge session.
type Engine struct {
	edit        surface.Surface
	editTracker *track.Tracker
	opts        Options
	logger      *zap.Logger

	spacers []placed
}

type placed struct {
	s  surface.Surface
	id surface.WidgetID
}

// New returns an Engine for the edit pane. editTracker may be nil.
func New(edit surface.Surface, editTracker *track.Tracker, opts Options) *Engine {
	switch {
	case opts.MinPad < 0:
		opts.MinPad = 0
	case opts.MinPad == 0:
		opts.MinPad = 1
	}
	if opts.MatchTolerance < 0 {
		opts.MatchTolerance = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{edit: edit, editTracker: editTracker, opts: opts, logger: opts.Logger}
}

// AlignableLines returns the alignable lines of one pane, in increasing order: the end of every chunk (on that pane's side), plus the line after every tracked
// line that is not inside or at the start of a chunk.
func AlignableLines(tracker *track.Tracker, chunks []diff.Chunk, isOrig bool) []int {
	var tracked []int
	if tracker != nil {
		tracked = tracker.Lines()
	}
	var out []int
	start, ti := 0, 0
	for i := 0; ; i++ {
		chunkStart := int(^uint(0) >> 1)
		if i < len(chunks) {
			chunkStart = chunks[i].EditFrom
			if isOrig {
				chunkStart = chunks[i].OrigFrom
			}
		}
		for ; ti < len(tracked); ti++ {
			n := tracked[ti] + 1
			if n <= start {
				continue
			}
			if n > chunkStart {
				break
			}
			out = append(out, n)
		}
		if i >= len(chunks) {
			break
		}
		start = chunks[i].EditTo
		if isOrig {
			start = chunks[i].OrigTo
		}
		out = append(out, start)
	}
	return out
}

// FindTies builds the tie list for primary and (if non-nil) secondary. Index 1 of each tie is primary's original line, index 2 secondary's.
func FindTies(editTracker *track.Tracker, primary Comparison, secondary *Comparison, tolerance int) []Tie {
	alignable := AlignableLines(editTracker, primary.Chunks, false)
	if secondary != nil {
		j := 0
		for _, c := range secondary.Chunks {
			n := c.EditTo
			for j < len(alignable) && alignable[j] < n {
				j++
			}
			if j == len(alignable) || alignable[j] != n {
				alignable = slices.Insert(alignable, j, n)
			}
			j++
		}
	}

	ties := make([]Tie, 0, len(alignable))
	for _, l := range alignable {
		ties = append(ties, Tie{l, NoLine, NoLine})
	}
	ties = MergeAlignable(ties, AlignableLines(primary.Tracker, primary.Chunks, true), primary.Chunks, 1, tolerance)
	if secondary != nil {
		ties = MergeAlignable(ties, AlignableLines(secondary.Tracker, secondary.Chunks, true), secondary.Chunks, 2, tolerance)
	}
	return ties
}

// MergeAlignable merges the alignable original lines of one comparison into ties, setting index setIndex. Both lists are walked in increasing order while
// tracking the cumulative length difference of the chunks passed so far:
//   - an original line inside a chunk is skipped
//   - a tie whose edit line is inside a chunk is left without a partner
//   - an original line whose implied edit line matches a tie (within tolerance) joins it
//   - a tie with no matching original line gets the implied original line
//   - an original line with no matching tie gets a new tie
func MergeAlignable(ties []Tie, origLines []int, chunks []diff.Chunk, setIndex int, tolerance int) []Tie {
	const inf = int(^uint(0) >> 1)
	rI, oI, cI, delta := 0, 0, 0, 0

outer:
	for ; ; rI++ {
		if rI >= len(ties) && oI >= len(origLines) {
			break
		}
		rLine, oLine := inf, inf
		if rI < len(ties) {
			rLine = ties[rI][0]
		}
		if oI < len(origLines) {
			oLine = origLines[oI]
		}

		for cI < len(chunks) {
			c := chunks[cI]
			if c.OrigFrom <= oLine && c.OrigTo > oLine {
				oI++
				rI--
				continue outer
			}
			if c.EditTo > rLine {
				if c.EditFrom <= rLine {
					continue outer
				}
				break
			}
			delta += (c.OrigTo - c.OrigFrom) - (c.EditTo - c.EditFrom)
			cI++
		}

		implied := inf
		if oLine != inf {
			implied = oLine - delta
		}
		switch {
		case rLine != inf && implied != inf && abs(rLine-implied) <= tolerance:
			ties[rI][setIndex] = oLine
			oI++
		case rLine < implied:
			ties[rI][setIndex] = rLine + delta
		default:
			t := Tie{implied, NoLine, NoLine}
			t[setIndex] = oLine
			ties = slices.Insert(ties, rI, t)
			oI++
		}
	}
	return ties
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Realign recomputes all spacers for primary and (if non-nil) secondary. Scroll positions are kept.
//
// Realign never panics. If a pane is unavailable or a tie refers to a line beyond a pane's line count, it logs, leaves the previous spacers in place and returns
// an error wrapping ErrUnavailable or ErrInconsistent.
func (e *Engine) Realign(primary Comparison, secondary *Comparison) error {
	panes := []surface.Surface{e.edit, primary.Orig}
	if secondary != nil {
		panes = append(panes, secondary.Orig)
	}
	for _, p := range panes {
		if err := p.Err(); err != nil {
			e.logger.Info("alignment skipped", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	ties := FindTies(e.editTracker, primary, secondary, e.opts.MatchTolerance)
	for _, t := range ties {
		for i, l := range t {
			if i >= len(panes) || l == NoLine {
				continue
			}
			if l < 0 || l > panes[i].LineCount() {
				err := fmt.Errorf("%w: tie %v: line %d of pane %d (has %d lines)", ErrInconsistent, t, l, i, panes[i].LineCount())
				e.logger.Warn("alignment skipped", zap.Error(err))
				return err
			}
		}
	}

	tops := make([]surface.ScrollInfo, len(panes))
	for i, p := range panes {
		tops[i] = p.ScrollInfo()
	}

	e.Clear()
	for _, t := range ties {
		e.alignTie(panes, t)
	}

	for i, p := range panes {
		p.ScrollTo(tops[i].Left, tops[i].Top)
	}
	e.logger.Debug("realigned", zap.Int("ties", len(ties)), zap.Int("spacers", len(e.spacers)))
	return nil
}

// alignTie pads every pane of t up to the largest height at its line.
func (e *Engine) alignTie(panes []surface.Surface, t Tie) {
	offsets := make([]int, len(panes))
	maxOff := 0
	for i, p := range panes {
		if t[i] == NoLine {
			continue
		}
		offsets[i] = p.HeightAtLine(t[i], surface.Local)
		maxOff = max(maxOff, offsets[i])
	}
	for i, p := range panes {
		if t[i] == NoLine {
			continue
		}
		if d := maxOff - offsets[i]; d > e.opts.MinPad {
			e.padAbove(p, t[i], d)
		}
	}
}

// padAbove adds a spacer of height size above line, or below the last line if line is past the end.
func (e *Engine) padAbove(s surface.Surface, line, size int) {
	w := surface.LineWidget{Height: size, Above: true, Spacer: true}
	if line > s.LineCount()-1 {
		line = s.LineCount() - 1
		w.Above = false
	}
	id := s.AddLineWidget(line, w)
	e.spacers = append(e.spacers, placed{s: s, id: id})
}

// Clear removes every spacer placed by e.
func (e *Engine) Clear() {
	for _, p := range e.spacers {
		p.s.RemoveLineWidget(p.id)
	}
	e.spacers = nil
}

// Spacer is a spacer placed by an Engine.
type Spacer struct {
	Surface surface.Surface
	ID      surface.WidgetID
}

// Spacers returns the spacers currently placed by e.
func (e *Engine) Spacers() []Spacer {
	out := make([]Spacer, len(e.spacers))
	for i, p := range e.spacers {
		out[i] = Spacer{Surface: p.s, ID: p.id}
	}
	return out
}
