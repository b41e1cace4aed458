// Package collapse folds stretches of lines that are identical in every pane of a comparison.
//
// A line of the edit pane is clearable if it lies at least margin lines away from every chunk of every comparison. Each run of clearable lines longer than margin
// is folded in the edit pane and, at the matching lines, in each original pane. The folds of one run form a group: expanding any of them (by clicking its
// placeholder or by editing into it) expands the whole group.
package collapse

import (
	"slices"

	"go.uber.org/zap"

	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/surface"
)

// DefaultMargin is the number of unchanged lines kept visible around each chunk.
const DefaultMargin = 2

// Comparison is an original pane with its chunks against the edit pane.
type Comparison struct {
	Orig   surface.Surface
	Chunks []diff.Chunk
}

// Region is a collapsed stretch. Line is its first line in the edit pane; Orig holds its first line in each original pane, in the order the comparisons were given.
type Region struct {
	Line int
	Size int
	Orig []int
}

type member struct {
	s  surface.Surface
	id surface.FoldID
}

type group struct {
	region   Region
	members  []member
	expanded bool
}

// expand unfolds every member of g. A member whose fold was already expanded by the surface is ignored by Unfold.
func (g *group) expand() {
	if g.expanded {
		return
	}
	g.expanded = true
	for _, m := range g.members {
		m.s.Unfold(m.id)
	}
}

// Controller owns the collapsed groups of one session.
type Controller struct {
	logger *zap.Logger

	groups []*group
	sig    [][]diff.Chunk
	edit   surface.Surface
	done   bool
}

// New returns a Controller. logger may be nil.
func New(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{logger: logger}
}

// Collapse folds the identical stretches of edit and comparisons, keeping margin lines visible around each chunk. A negative margin means DefaultMargin; a margin
// of 0 is raised to 1 so that a run never spans a chunk that is empty on the edit side.
//
// If the panes and chunks are the same as in the previous call, Collapse does nothing and returns false; in particular, groups the user expanded stay expanded.
// Otherwise every previous group is removed and the folds are derived again.
func (c *Controller) Collapse(edit surface.Surface, comparisons []Comparison, margin int) bool {
	if margin < 0 {
		margin = DefaultMargin
	}
	margin = max(margin, 1)

	sig := make([][]diff.Chunk, len(comparisons))
	for i, comp := range comparisons {
		sig[i] = slices.Clone(comp.Chunks)
	}
	if c.done && c.edit == edit && sameSig(c.sig, sig) {
		return false
	}

	c.ExpandAll()
	c.groups = nil
	c.edit, c.sig, c.done = edit, sig, true

	n := edit.LineCount()
	clearable := make([]bool, n)
	for i := range clearable {
		clearable[i] = true
	}
	for _, comp := range comparisons {
		for _, ch := range comp.Chunks {
			for l := max(ch.EditFrom-margin, 0); l < ch.EditTo+margin && l < n; l++ {
				clearable[l] = false
			}
		}
	}

	for i := 0; i < n; i++ {
		if !clearable[i] {
			continue
		}
		line, size := i, 1
		for ; i < n-1 && clearable[i+1]; i++ {
			size++
		}
		if size > margin {
			c.fold(edit, comparisons, line, size)
		}
	}
	c.logger.Debug("collapsed identical stretches", zap.Int("groups", len(c.groups)), zap.Int("margin", margin))
	return true
}

func (c *Controller) fold(edit surface.Surface, comparisons []Comparison, line, size int) {
	g := &group{region: Region{Line: line, Size: size}}
	onExpand := g.expand

	if id := edit.Fold(line, line+size, onExpand); id != 0 {
		g.members = append(g.members, member{s: edit, id: id})
	}
	for _, comp := range comparisons {
		ol, ok := diff.MatchingOrigLine(line, comp.Chunks)
		if !ok {
			// Unreachable for a clearable line; keep the group consistent anyway.
			ol = line
		}
		g.region.Orig = append(g.region.Orig, ol)
		if id := comp.Orig.Fold(ol, ol+size, onExpand); id != 0 {
			g.members = append(g.members, member{s: comp.Orig, id: id})
		}
	}
	c.groups = append(c.groups, g)
}

// ExpandAll expands every collapsed group. The groups stay known, so a later Collapse with unchanged chunks does not fold them again.
func (c *Controller) ExpandAll() {
	for _, g := range c.groups {
		g.expand()
	}
}

// Reset forgets the previous pass, so that the next Collapse derives folds even if the chunks did not change.
func (c *Controller) Reset() {
	c.ExpandAll()
	c.groups = nil
	c.sig = nil
	c.done = false
}

// Regions returns the groups that are still collapsed, as of the pass that created them.
func (c *Controller) Regions() []Region {
	var out []Region
	for _, g := range c.groups {
		if !g.expanded {
			r := g.region
			r.Orig = slices.Clone(r.Orig)
			out = append(out, r)
		}
	}
	return out
}

func sameSig(a, b [][]diff.Chunk) bool {
	return slices.EqualFunc(a, b, diff.ChunksEqual)
}
