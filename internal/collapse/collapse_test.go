package collapse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/surface"
)

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("line %d", i)
	}
	return out
}

func newBuf(lines []string) *surface.Buffer {
	return surface.NewBuffer(strings.Join(lines, "\n"), surface.Options{LineHeight: 1})
}

func foldSpans(b *surface.Buffer) [][2]int {
	var out [][2]int
	for _, f := range b.Folds() {
		out = append(out, [2]int{f.From, f.To})
	}
	return out
}

// changedAt10 returns a 20-line edit pane and an original that differs only on line 10.
func changedAt10() (*surface.Buffer, *surface.Buffer, []diff.Chunk) {
	lines := numbered(20)
	edit := newBuf(lines)
	lines[10] = "changed"
	orig := newBuf(lines)
	return edit, orig, []diff.Chunk{{EditFrom: 10, EditTo: 11, OrigFrom: 10, OrigTo: 11}}
}

func TestCollapse_FoldsStretchesInEveryPane(t *testing.T) {
	edit, orig, chunks := changedAt10()
	c := New(nil)

	require.True(t, c.Collapse(edit, []Comparison{{Orig: orig, Chunks: chunks}}, 2))

	want := [][2]int{{0, 8}, {13, 20}}
	assert.Equal(t, want, foldSpans(edit))
	assert.Equal(t, want, foldSpans(orig))
	assert.Equal(t, []Region{{Line: 0, Size: 8, Orig: []int{0}}, {Line: 13, Size: 7, Orig: []int{13}}}, c.Regions())
}

func TestCollapse_MapsOrigLinesThroughChunks(t *testing.T) {
	editLines := numbered(20)
	origLines := append(append(append([]string{}, editLines[:10]...), "x", "y", "z"), editLines[10:]...)
	edit, orig := newBuf(editLines), newBuf(origLines)
	chunks := []diff.Chunk{{EditFrom: 10, EditTo: 10, OrigFrom: 10, OrigTo: 13}}

	c := New(nil)
	c.Collapse(edit, []Comparison{{Orig: orig, Chunks: chunks}}, 2)

	assert.Equal(t, [][2]int{{0, 8}, {12, 20}}, foldSpans(edit))
	assert.Equal(t, [][2]int{{0, 8}, {15, 23}}, foldSpans(orig))
	for _, f := range orig.Folds() {
		for l := f.From; l < f.To; l++ {
			editLine, ok := diff.MatchingEditLine(l, chunks)
			require.True(t, ok)
			assert.Equal(t, edit.Line(editLine), orig.Line(l), "folded lines are identical")
		}
	}
}

func TestCollapse_ShortStretchesStay(t *testing.T) {
	lines := numbered(12)
	edit := newBuf(lines)
	orig := newBuf(lines)
	chunks := []diff.Chunk{
		{EditFrom: 3, EditTo: 4, OrigFrom: 3, OrigTo: 4},
		{EditFrom: 8, EditTo: 9, OrigFrom: 8, OrigTo: 9},
	}
	c := New(nil)
	c.Collapse(edit, []Comparison{{Orig: orig, Chunks: chunks}}, 2)

	// Only lines 0 and 11 are clearable, one line each.
	assert.Empty(t, foldSpans(edit))
	assert.Empty(t, c.Regions())
}

func TestCollapse_ClickExpandsGroup(t *testing.T) {
	edit, orig, chunks := changedAt10()
	c := New(nil)
	c.Collapse(edit, []Comparison{{Orig: orig, Chunks: chunks}}, 2)

	require.True(t, edit.ClickFold(3))
	assert.Equal(t, [][2]int{{13, 20}}, foldSpans(edit))
	assert.Equal(t, [][2]int{{13, 20}}, foldSpans(orig))
	assert.Equal(t, []Region{{Line: 13, Size: 7, Orig: []int{13}}}, c.Regions())

	// Clicking the original expands the edit pane too.
	require.True(t, orig.ClickFold(15))
	assert.Empty(t, foldSpans(edit))
	assert.Empty(t, c.Regions())
}

func TestCollapse_EditIntoFoldExpandsGroup(t *testing.T) {
	edit, orig, chunks := changedAt10()
	c := New(nil)
	c.Collapse(edit, []Comparison{{Orig: orig, Chunks: chunks}}, 2)

	edit.Replace(surface.Pos{Line: 15}, surface.Pos{Line: 15}, "x")
	assert.Equal(t, [][2]int{{0, 8}}, foldSpans(orig))
}

func TestCollapse_Idempotent(t *testing.T) {
	edit, orig, chunks := changedAt10()
	c := New(nil)
	comps := []Comparison{{Orig: orig, Chunks: chunks}}

	require.True(t, c.Collapse(edit, comps, 2))
	first := foldSpans(edit)
	assert.False(t, c.Collapse(edit, comps, 2))
	assert.Equal(t, first, foldSpans(edit))
	assert.Equal(t, first, foldSpans(orig))

	// User-expanded groups stay expanded while the chunks are unchanged.
	c.ExpandAll()
	assert.False(t, c.Collapse(edit, comps, 2))
	assert.Empty(t, foldSpans(edit))

	// Changed chunks derive the folds again.
	moved := []Comparison{{Orig: orig, Chunks: []diff.Chunk{{EditFrom: 5, EditTo: 6, OrigFrom: 5, OrigTo: 6}}}}
	require.True(t, c.Collapse(edit, moved, 2))
	assert.Equal(t, [][2]int{{0, 3}, {8, 20}}, foldSpans(edit))

	c.Reset()
	assert.Empty(t, foldSpans(edit))
	require.True(t, c.Collapse(edit, moved, 2))
	assert.Equal(t, [][2]int{{0, 3}, {8, 20}}, foldSpans(edit))
}

func TestCollapse_ExpandCollapseRoundTrip(t *testing.T) {
	edit, orig, chunks := changedAt10()
	before := edit.Height()
	c := New(nil)
	comps := []Comparison{{Orig: orig, Chunks: chunks}}

	c.Collapse(edit, comps, 2)
	assert.Less(t, edit.Height(), before)
	c.ExpandAll()
	assert.Equal(t, before, edit.Height())
	assert.Equal(t, before, orig.Height())
}

func TestCollapse_ThreePanes(t *testing.T) {
	lines := numbered(30)
	edit := newBuf(lines)
	left := newBuf(lines)
	right := newBuf(lines)
	c := New(nil)
	c.Collapse(edit, []Comparison{
		{Orig: left, Chunks: []diff.Chunk{{EditFrom: 5, EditTo: 6, OrigFrom: 5, OrigTo: 6}}},
		{Orig: right, Chunks: []diff.Chunk{{EditFrom: 20, EditTo: 21, OrigFrom: 20, OrigTo: 21}}},
	}, 2)

	want := [][2]int{{0, 3}, {8, 18}, {23, 30}}
	assert.Equal(t, want, foldSpans(edit))
	assert.Equal(t, want, foldSpans(left))
	assert.Equal(t, want, foldSpans(right))

	require.True(t, right.ClickFold(10))
	assert.Equal(t, [][2]int{{0, 3}, {23, 30}}, foldSpans(left))
}

func TestCollapse_Margins(t *testing.T) {
	edit, orig, chunks := changedAt10()
	c := New(nil)
	c.Collapse(edit, []Comparison{{Orig: orig, Chunks: chunks}}, -1)
	assert.Equal(t, [][2]int{{0, 8}, {13, 20}}, foldSpans(edit), "default margin")

	edit, orig, chunks = changedAt10()
	c = New(nil)
	c.Collapse(edit, []Comparison{{Orig: orig, Chunks: chunks}}, 0)
	assert.Equal(t, [][2]int{{0, 9}, {12, 20}}, foldSpans(edit), "margin 0 acts as 1")
}
