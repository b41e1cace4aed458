// Package scrollsync keeps the scroll positions of an edit pane and its original panes in step.
//
// Each Link couples the edit pane with one original pane. Scrolling the edit pane moves every linked original; scrolling an original moves the edit pane, which in
// turn moves the edit pane's other originals. A surface whose position was just set by a link does not echo that position back through the same link, which
// breaks the feedback loop that synchronous scroll events would otherwise create.
package scrollsync

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/codalotl/mergeview/internal/clock"
	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/surface"
)

// Mode selects how a scroll position is mapped from one pane to another.
type Mode int

const (
	// ModeDirect copies the scroll top. Use it when the panes are aligned with spacers, so equal heights already mean corresponding lines.
	ModeDirect Mode = iota

	// ModeProportional maps the source's vertical midpoint through the chunk boundaries around it.
	ModeProportional
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeProportional:
		return "proportional"
	default:
		return "unknown"
	}
}

// DefaultGuard is how long a position set by a link suppresses syncing back through it.
const DefaultGuard = 250 * time.Millisecond

// Link couples the edit pane with one original pane.
type Link struct {
	Edit surface.Surface
	Orig surface.Surface

	Chunks func() []diff.Chunk // current chunks of this comparison; nil means none
	Stale  func() bool         // reports whether Chunks is out of date; nil means never

	pending    bool
	pendingDir bool // true: edit to orig
}

// Pending reports whether a sync was deferred because the link was stale.
func (l *Link) Pending() bool {
	return l.pending
}

func (l *Link) chunks() []diff.Chunk {
	if l.Chunks == nil {
		return nil
	}
	return l.Chunks()
}

func (l *Link) stale() bool {
	return l.Stale != nil && l.Stale()
}

// Options configure a Controller.
type Options struct {
	Mode   Mode
	Guard  time.Duration // default DefaultGuard
	Clock  clock.Clock   // default clock.Real()
	Logger *zap.Logger
}

type setState struct {
	by *Link
	at time.Time
}

type watch struct {
	refs  int
	unsub func()
}

// Controller syncs scrolling across a set of links. The zero value is not usable; use New.
type Controller struct {
	mode   Mode
	guard  time.Duration
	clock  clock.Clock
	logger *zap.Logger
	locked bool

	links   []*Link
	set     map[surface.Surface]setState
	watches map[surface.Surface]*watch
}

// New returns a locked (syncing) Controller with no links.
func New(opts Options) *Controller {
	if opts.Guard <= 0 {
		opts.Guard = DefaultGuard
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		mode:    opts.Mode,
		guard:   opts.Guard,
		clock:   opts.Clock,
		logger:  opts.Logger,
		locked:  true,
		set:     make(map[surface.Surface]setState),
		watches: make(map[surface.Surface]*watch),
	}
}

// Add links l and subscribes to the scroll events of its panes. The returned func removes the link.
func (c *Controller) Add(l *Link) (remove func()) {
	c.links = append(c.links, l)
	c.watch(l.Edit)
	c.watch(l.Orig)
	return func() {
		for i, x := range c.links {
			if x == l {
				c.links = append(c.links[:i], c.links[i+1:]...)
				c.unwatch(l.Edit)
				c.unwatch(l.Orig)
				return
			}
		}
	}
}

func (c *Controller) watch(s surface.Surface) {
	if w, ok := c.watches[s]; ok {
		w.refs++
		return
	}
	c.watches[s] = &watch{refs: 1, unsub: s.OnScroll(func() { c.OnScroll(s) })}
}

func (c *Controller) unwatch(s surface.Surface) {
	w, ok := c.watches[s]
	if !ok {
		return
	}
	w.refs--
	if w.refs == 0 {
		w.unsub()
		delete(c.watches, s)
		delete(c.set, s)
	}
}

// Close removes every link.
func (c *Controller) Close() {
	for _, w := range c.watches {
		w.unsub()
	}
	c.links = nil
	c.watches = make(map[surface.Surface]*watch)
	c.set = make(map[surface.Surface]setState)
}

// Locked reports whether syncing is enabled.
func (c *Controller) Locked() bool { return c.locked }

// SetLocked enables or disables syncing. Pending syncs are dropped when unlocking.
func (c *Controller) SetLocked(locked bool) {
	c.locked = locked
	if !locked {
		for _, l := range c.links {
			l.pending = false
		}
	}
}

// Mode returns the mapping mode.
func (c *Controller) Mode() Mode { return c.mode }

// SetMode changes the mapping mode.
func (c *Controller) SetMode(m Mode) { c.mode = m }

// OnScroll handles a scroll of source. It is called for every subscribed surface and may also be called directly.
func (c *Controller) OnScroll(source surface.Surface) {
	links := append([]*Link(nil), c.links...)
	for _, l := range links {
		if l.Edit == source {
			c.sync(l, true)
		}
	}
	for _, l := range links {
		if l.Orig != source {
			continue
		}
		c.sync(l, false)
		for _, other := range links {
			if other != l && other.Edit == l.Edit {
				c.sync(other, true)
			}
		}
	}
}

// Flush replays a sync deferred while l was stale. Call it after l's chunks are recomputed.
func (c *Controller) Flush(l *Link) bool {
	if !l.pending {
		return false
	}
	l.pending = false
	return c.sync(l, l.pendingDir)
}

// SyncTo moves target to correspond to from, where one of them is the edit pane of a link and the other its original. It returns false if no link couples them
// or the sync was suppressed or deferred.
func (c *Controller) SyncTo(target, from surface.Surface) bool {
	for _, l := range c.links {
		switch {
		case l.Edit == from && l.Orig == target:
			return c.sync(l, true)
		case l.Orig == from && l.Edit == target:
			return c.sync(l, false)
		}
	}
	return false
}

func (c *Controller) sync(l *Link, toOrig bool) bool {
	if !c.locked {
		return false
	}
	if l.stale() {
		if !l.pending {
			l.pending = true
			l.pendingDir = toOrig
		}
		return false
	}

	src, dst := l.Orig, l.Edit
	if toOrig {
		src, dst = l.Edit, l.Orig
	}
	now := c.clock.Now()
	if st, ok := c.set[src]; ok && st.by == l && now.Before(st.at.Add(c.guard)) {
		return false
	}

	info := src.ScrollInfo()
	target := info.Top
	if c.mode == ModeProportional {
		target = proportionalTop(src, dst, info, l.chunks(), toOrig)
	}

	c.set[dst] = setState{by: l, at: now}
	c.logger.Debug("scroll synced", zap.Bool("toOrig", toOrig), zap.Stringer("mode", c.mode), zap.Int("top", target))
	dst.ScrollTo(info.Left, target)
	return true
}

// proportionalTop maps src's midpoint into dst by interpolating between the chunk boundaries around it. Near the top and bottom of src, the result is blended
// toward src's own position so that no content is skipped at either end.
func proportionalTop(src, dst surface.Surface, info surface.ScrollInfo, chunks []diff.Chunk, toOrig bool) int {
	half := 0.5 * float64(info.ClientHeight)
	midY := float64(info.Top) + half
	mid := src.LineAtHeight(int(midY), surface.Local)

	edit, orig := boundariesAround(chunks, mid, toOrig)
	srcB, dstB := orig, edit
	if toOrig {
		srcB, dstB = edit, orig
	}
	srcTop, srcBot := offsets(src, srcB)
	dstTop, dstBot := offsets(dst, dstB)

	ratio := 0.0
	if srcBot > srcTop {
		ratio = (midY - srcTop) / (srcBot - srcTop)
	}
	target := dstTop - half + ratio*(dstBot-dstTop)

	top := float64(info.Top)
	if mix := top / half; target > top && mix < 1 {
		target = target*mix + top*(1-mix)
	} else if botDist := float64(info.Height-info.ClientHeight) - top; botDist < half {
		other := dst.ScrollInfo()
		otherMax := float64(other.Height - other.ClientHeight)
		if mix := botDist / half; otherMax-target > botDist && mix < 1 {
			target = target*mix + (otherMax-botDist)*(1-mix)
		}
	}
	return int(math.Round(target))
}

// bounds is a pair of lines on one side; -1 means none.
type bounds struct {
	before, after int
}

// boundariesAround finds the nearest chunk boundaries at or before and after line n, on both sides. n is an edit line if inEdit, otherwise an original line.
func boundariesAround(chunks []diff.Chunk, n int, inEdit bool) (edit, orig bounds) {
	edit = bounds{before: -1, after: -1}
	orig = bounds{before: -1, after: -1}
	for _, ch := range chunks {
		from, to := ch.OrigFrom, ch.OrigTo
		if inEdit {
			from, to = ch.EditFrom, ch.EditTo
		}
		if edit.after == -1 {
			if from > n {
				edit.after, orig.after = ch.EditFrom, ch.OrigFrom
			} else if to > n {
				edit.after, orig.after = ch.EditTo, ch.OrigTo
			}
		}
		if to <= n {
			edit.before, orig.before = ch.EditTo, ch.OrigTo
		} else if from <= n {
			edit.before, orig.before = ch.EditFrom, ch.OrigFrom
		}
	}
	return edit, orig
}

func offsets(s surface.Surface, b bounds) (top, bot float64) {
	before, after := b.before, b.after
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = s.LineCount()
	}
	return float64(s.HeightAtLine(before, surface.Local)), float64(s.HeightAtLine(after, surface.Local))
}
