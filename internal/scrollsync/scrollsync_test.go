package scrollsync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codalotl/mergeview/internal/clock"
	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/surface"
)

func lines(n int, prefix string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(prefix)
		b.WriteString(strings.Repeat("x", i%7))
	}
	return b.String()
}

func newBuf(text string) *surface.Buffer {
	return surface.NewBuffer(text, surface.Options{LineHeight: 16, ClientHeight: 160})
}

type fixture struct {
	clk    *clock.Fake
	edit   *surface.Buffer
	orig   *surface.Buffer
	link   *Link
	c      *Controller
	stale  bool
	chunks []diff.Chunk
}

// newFixture links a 40-line edit pane with a 50-line original that has 10 extra lines at line 20.
func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()
	f := &fixture{
		clk:    clock.NewFake(time.Unix(0, 0)),
		edit:   newBuf(lines(40, "e")),
		orig:   newBuf(lines(50, "o")),
		chunks: []diff.Chunk{{EditFrom: 20, EditTo: 20, OrigFrom: 20, OrigTo: 30}},
	}
	f.c = New(Options{Mode: mode, Clock: f.clk})
	f.link = &Link{
		Edit:   f.edit,
		Orig:   f.orig,
		Chunks: func() []diff.Chunk { return f.chunks },
		Stale:  func() bool { return f.stale },
	}
	f.c.Add(f.link)
	return f
}

func TestDirect_EditDrivesOrig(t *testing.T) {
	f := newFixture(t, ModeDirect)

	f.edit.ScrollTo(0, 100)
	assert.Equal(t, 100, f.orig.ScrollInfo().Top)
	assert.Equal(t, 100, f.edit.ScrollInfo().Top, "no echo back into the edit pane")
}

func TestDirect_GuardSuppressesEcho(t *testing.T) {
	f := newFixture(t, ModeDirect)

	f.edit.ScrollTo(0, 100)
	require.Equal(t, 100, f.orig.ScrollInfo().Top)

	// Within the guard, the original's own scroll does not move the edit pane.
	f.clk.Advance(100 * time.Millisecond)
	f.orig.ScrollTo(0, 40)
	assert.Equal(t, 100, f.edit.ScrollInfo().Top)

	f.clk.Advance(200 * time.Millisecond)
	f.orig.ScrollTo(0, 60)
	assert.Equal(t, 60, f.edit.ScrollInfo().Top)
}

func TestProportional_MapsThroughChunk(t *testing.T) {
	f := newFixture(t, ModeProportional)

	// Edit line 20 corresponds to original line 30.
	f.edit.ScrollTo(0, 320)
	assert.Equal(t, 480, f.orig.ScrollInfo().Top)
}

func TestProportional_RoundTrip(t *testing.T) {
	f := newFixture(t, ModeProportional)

	for _, top := range []int{320, 352, 400} {
		f.clk.Advance(time.Second)
		f.edit.ScrollTo(0, top)
		origTop := f.orig.ScrollInfo().Top

		f.clk.Advance(time.Second)
		f.edit.ScrollTo(0, 0)
		f.clk.Advance(time.Second)
		f.orig.ScrollTo(0, 0)
		f.clk.Advance(time.Second)
		f.orig.ScrollTo(0, origTop)

		assert.InDelta(t, top, f.edit.ScrollInfo().Top, 1, "top %d", top)
	}
}

func TestProportional_IdenticalPanes(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	edit, orig := newBuf(lines(30, "a")), newBuf(lines(30, "a"))
	c := New(Options{Mode: ModeProportional, Clock: clk})
	c.Add(&Link{Edit: edit, Orig: orig})

	for _, top := range []int{0, 16, 200, 320} {
		clk.Advance(time.Second)
		edit.ScrollTo(0, top)
		assert.Equal(t, edit.ScrollInfo().Top, orig.ScrollInfo().Top)
	}
}

func TestStaleDefersUntilFlush(t *testing.T) {
	f := newFixture(t, ModeDirect)
	f.stale = true

	f.edit.ScrollTo(0, 100)
	assert.Equal(t, 0, f.orig.ScrollInfo().Top)
	assert.True(t, f.link.Pending())

	f.stale = false
	assert.True(t, f.c.Flush(f.link))
	assert.Equal(t, 100, f.orig.ScrollInfo().Top)
	assert.False(t, f.link.Pending())
	assert.False(t, f.c.Flush(f.link))
}

func TestSetLocked(t *testing.T) {
	f := newFixture(t, ModeDirect)
	f.c.SetLocked(false)

	f.edit.ScrollTo(0, 100)
	assert.Equal(t, 0, f.orig.ScrollInfo().Top)
	assert.False(t, f.link.Pending())

	f.c.SetLocked(true)
	f.clk.Advance(time.Second)
	f.edit.ScrollTo(0, 120)
	assert.Equal(t, 120, f.orig.ScrollInfo().Top)
}

func TestThreePanes(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	edit := newBuf(lines(30, "e"))
	left := newBuf(lines(30, "l"))
	right := newBuf(lines(30, "r"))
	c := New(Options{Clock: clk})
	c.Add(&Link{Edit: edit, Orig: left})
	c.Add(&Link{Edit: edit, Orig: right})

	left.ScrollTo(0, 64)
	assert.Equal(t, 64, edit.ScrollInfo().Top)
	assert.Equal(t, 64, right.ScrollInfo().Top)

	clk.Advance(time.Second)
	edit.ScrollTo(0, 32)
	assert.Equal(t, 32, left.ScrollInfo().Top)
	assert.Equal(t, 32, right.ScrollInfo().Top)
}

func TestSyncToAndRemove(t *testing.T) {
	f := newFixture(t, ModeDirect)
	other := newBuf("x")
	assert.False(t, f.c.SyncTo(other, f.edit))

	remove := f.c.Add(&Link{Edit: f.edit, Orig: other})
	remove()
	remove() // no-op

	f.c.Close()
	f.edit.ScrollTo(0, 48)
	assert.Equal(t, 0, f.orig.ScrollInfo().Top)
}

func TestBoundariesAround(t *testing.T) {
	chunks := []diff.Chunk{
		{EditFrom: 2, EditTo: 4, OrigFrom: 2, OrigTo: 3},
		{EditFrom: 10, EditTo: 10, OrigFrom: 9, OrigTo: 12},
	}
	edit, orig := boundariesAround(chunks, 6, true)
	assert.Equal(t, bounds{before: 4, after: 10}, edit)
	assert.Equal(t, bounds{before: 3, after: 9}, orig)

	edit, orig = boundariesAround(chunks, 3, true)
	assert.Equal(t, bounds{before: 2, after: 4}, edit)
	assert.Equal(t, bounds{before: 2, after: 3}, orig)

	edit, _ = boundariesAround(nil, 3, true)
	assert.Equal(t, bounds{before: -1, after: -1}, edit)
}
