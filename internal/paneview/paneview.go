// Package paneview couples one comparison pane to the edit pane. A View owns the live diff and chunks for that pairing, decides when to recompute them, and
// marks inserted/deleted text and changed lines in the visible part of both panes.
//
// State machine: Clean -> Stale -> Recomputing -> Clean. Any change in either pane makes the view stale and (re)schedules a debounce timer. The timer is fast
// (FastDelay) once the burst contains an edit that changed the number of lines, and slow (SlowDelay) otherwise; a pending timer is always replaced by the newest
// one. A viewport change schedules a slow, marks-only update.
//
// Everything runs on the owner's goroutine: surface events, timer callbacks (see clock.Func), and the OnUpdate/OnError callbacks.
package paneview

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codalotl/mergeview/internal/clock"
	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/surface"
)

// ErrContentUnavailable is returned (wrapped) when a pane's content can't be read.
var ErrContentUnavailable = errors.New("content unavailable")

// computeDiff is swapped out by tests.
var computeDiff = diff.Compute

// State is the recompute state of a View.
type State int

const (
	StateClean State = iota
	StateStale
	StateRecomputing
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateStale:
		return "stale"
	case StateRecomputing:
		return "recomputing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configure a View.
type Options struct {
	Diff           diff.Options
	FastDelay      time.Duration // default 20ms
	SlowDelay      time.Duration // default 250ms
	ViewportMargin int           // lines marked beyond each side of the viewport; default 10, negative for none
	RescanDistance int           // a viewport further than this from the marked range is remarked from scratch; default 20

	Clock  clock.Clock // default clock.Real()
	Logger *zap.Logger // default zap.NewNop()

	// OnUpdate is called at the end of every update pass (after marks are updated). recomputed reports whether a new diff was computed in this pass.
	OnUpdate func(v *View, recomputed bool)

	// OnError is called when a recompute fails.
	OnError func(v *View, err error)
}

func (o Options) withDefaults() Options {
	if o.FastDelay <= 0 {
		o.FastDelay = 20 * time.Millisecond
	}
	if o.SlowDelay <= 0 {
		o.SlowDelay = 250 * time.Millisecond
	}
	if o.ViewportMargin < 0 {
		o.ViewportMargin = 0
	} else if o.ViewportMargin == 0 {
		o.ViewportMargin = 10
	}
	if o.RescanDistance <= 0 {
		o.RescanDistance = 20
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// View is the diff between one original pane and the edit pane.
type View struct {
	edit, orig surface.Surface
	opts       Options
	logger     *zap.Logger

	d      diff.Diff
	chunks []diff.Chunk
	state  State
	err    error

	dealigned bool
	fast      bool
	timer     clock.Timer
	updating  bool
	closed    bool

	editMarks, origMarks markState
	recomputes           int

	unsub []func()
}

// New returns a stale View of orig against edit, subscribed to both panes. It computes nothing until the first Update (or a debounce timer) runs, so that the
// caller can finish wiring before OnUpdate fires.
func New(edit, orig surface.Surface, opts Options) *View {
	opts = opts.withDefaults()
	v := &View{
		edit:      edit,
		orig:      orig,
		opts:      opts,
		logger:    opts.Logger,
		state:     StateStale,
		dealigned: true,
	}
	for _, s := range []surface.Surface{edit, orig} {
		v.unsub = append(v.unsub,
			s.OnChange(v.handleChange),
			s.OnViewportChange(func(surface.Viewport) { v.schedule(false) }),
		)
	}
	return v
}

// Edit returns the edit pane.
func (v *View) Edit() surface.Surface { return v.edit }

// Orig returns the original pane.
func (v *View) Orig() surface.Surface { return v.orig }

// State returns the recompute state.
func (v *View) State() State { return v.state }

// Stale reports whether the chunks are out of date with the panes' content.
func (v *View) Stale() bool { return v.state != StateClean }

// Dealigned reports whether alignment padding is out of date.
func (v *View) Dealigned() bool { return v.dealigned }

// ClearDealigned records that alignment padding was just recomputed.
func (v *View) ClearDealigned() { v.dealigned = false }

// MarkDealigned records that alignment padding is out of date and schedules an update. It is ignored while an update pass is running.
func (v *View) MarkDealigned(fast bool) {
	if v.updating || v.closed {
		return
	}
	v.dealigned = true
	v.schedule(fast)
}

// Diff returns the last successfully computed diff.
func (v *View) Diff() diff.Diff { return v.d }

// Chunks returns the last successfully computed chunks. The slice must not be modified.
func (v *View) Chunks() []diff.Chunk { return v.chunks }

// Err returns the error of the last recompute, or nil if it succeeded.
func (v *View) Err() error { return v.err }

// Recomputes returns how many times the diff has been computed.
func (v *View) Recomputes() int { return v.recomputes }

// Pending reports whether an update pass is scheduled.
func (v *View) Pending() bool { return v.timer != nil }

func (v *View) handleChange(c surface.Change) {
	if v.closed {
		return
	}
	if v.state == StateClean {
		v.state = StateStale
		v.editMarks.reset()
		v.origMarks.reset()
	}
	if v.updating {
		return
	}
	v.dealigned = true
	v.schedule(c.Structural())
}

// schedule replaces any pending timer. Once a burst contains a fast request, the timer stays fast until it fires.
func (v *View) schedule(fast bool) {
	if v.updating || v.closed {
		return
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	if fast {
		v.fast = true
	}
	delay := v.opts.SlowDelay
	if v.fast {
		delay = v.opts.FastDelay
	}
	v.timer = v.opts.Clock.AfterFunc(delay, func() {
		v.timer = nil
		v.update(false)
	})
}

// Update runs an update pass now, cancelling any pending timer: recompute the diff if stale, then extend marks to the current viewports.
func (v *View) Update() {
	v.update(false)
}

// Invalidate marks the diff stale and runs an update pass now. It is for content changes that come without a change event, such as a pane becoming readable
// or unreadable.
func (v *View) Invalidate() {
	if v.closed {
		return
	}
	if v.state == StateClean {
		v.state = StateStale
		v.editMarks.reset()
		v.origMarks.reset()
	}
	v.dealigned = true
	v.update(false)
}

// FullUpdate is Update, except that all marks are cleared and reapplied.
func (v *View) FullUpdate() {
	v.update(true)
}

func (v *View) update(full bool) {
	if v.closed || v.updating {
		return
	}
	v.updating = true
	defer func() { v.updating = false }()

	v.fast = false
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	if full {
		v.editMarks.clear(v.edit)
		v.origMarks.clear(v.orig)
	}

	recomputed := false
	if v.state != StateClean {
		recomputed = v.recompute() == nil
	}
	if v.err == nil {
		v.updateMarks()
	}
	if v.opts.OnUpdate != nil {
		v.opts.OnUpdate(v, recomputed)
	}
}

// EnsureDiff recomputes the diff synchronously if it is stale. It returns the error of the most recent recompute.
func (v *View) EnsureDiff() error {
	if v.state != StateClean {
		return v.recompute()
	}
	return v.err
}

func (v *View) recompute() error {
	v.state = StateRecomputing
	v.recomputes++
	start := time.Now()

	d, err := v.compute()
	if err != nil {
		// Last good chunks stay; the next change retries.
		v.state = StateClean
		v.err = err
		v.logger.Warn("diff recompute failed", zap.Error(err), zap.Int("recomputes", v.recomputes))
		if v.opts.OnError != nil {
			v.opts.OnError(v, err)
		}
		return err
	}

	v.d = d
	v.chunks = d.Chunks()
	v.state = StateClean
	v.err = nil
	v.logger.Debug("diff recomputed",
		zap.Int("chunks", len(v.chunks)),
		zap.Int("ops", len(d.Ops)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (v *View) compute() (diff.Diff, error) {
	if err := v.edit.Err(); err != nil {
		return diff.Diff{}, fmt.Errorf("%w: edit pane: %v", ErrContentUnavailable, err)
	}
	if err := v.orig.Err(); err != nil {
		return diff.Diff{}, fmt.Errorf("%w: original pane: %v", ErrContentUnavailable, err)
	}
	return computeDiff(v.orig.Value(), v.edit.Value(), v.opts.Diff)
}

// RevertChunk replaces the edit side of chunk i with its original side. The diff is brought up to date first.
func (v *View) RevertChunk(i int) error {
	if err := v.EnsureDiff(); err != nil {
		return err
	}
	if i < 0 || i >= len(v.chunks) {
		return fmt.Errorf("chunk %d out of range (have %d)", i, len(v.chunks))
	}
	c := v.chunks[i]
	origStart, origEnd := chunkSpan(c.OrigFrom, c.OrigTo, v.orig.LineCount())
	editStart, editEnd := chunkSpan(c.EditFrom, c.EditTo, v.edit.LineCount())
	v.edit.Replace(editStart, editEnd, v.orig.Range(origStart, origEnd))
	return nil
}

// chunkSpan returns the text span covering lines [from, to). A span reaching past the last line starts at the end of the previous line instead, so that it owns
// the newline that separates it from the rest of the document.
func chunkSpan(from, to, lineCount int) (surface.Pos, surface.Pos) {
	start := surface.Pos{Line: from}
	if to > lineCount-1 {
		start = surface.LineEnd(from - 1)
	}
	return start, surface.Pos{Line: to}
}

// Close cancels any pending update, unsubscribes from both panes and clears this view's marks.
func (v *View) Close() {
	if v.closed {
		return
	}
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	for _, fn := range v.unsub {
		fn()
	}
	v.unsub = nil
	v.editMarks.clear(v.edit)
	v.origMarks.clear(v.orig)
	v.closed = true
}
