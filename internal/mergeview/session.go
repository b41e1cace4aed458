// Package mergeview wires the diff, alignment, scroll-sync and collapse components into one merge session: an editable pane compared against one or two original
// panes.
//
// A Session is the only owner of per-session state. Surface events are dispatched to exactly one handler per consuming component:
//   - change and viewport events go to each side's paneview.View, which debounces and recomputes;
//   - decoration events go to each pane's track.Tracker, whose realign signal marks views dealigned;
//   - scroll events go to the scrollsync.Controller.
//
// After every update pass of a View, the Session collapses identical stretches (if enabled and the chunks changed), realigns (if enabled and a view is
// dealigned), and replays any scroll sync that was deferred while the view was stale. Like its components, a Session is single-goroutine.
package mergeview

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codalotl/mergeview/internal/align"
	"github.com/codalotl/mergeview/internal/clock"
	"github.com/codalotl/mergeview/internal/collapse"
	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/paneview"
	"github.com/codalotl/mergeview/internal/scrollsync"
	"github.com/codalotl/mergeview/internal/surface"
	"github.com/codalotl/mergeview/internal/track"
)

// Side identifies an original pane.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func (s Side) other() Side { return 1 - s }

var (
	// ErrClosed is returned by operations on a closed Session.
	ErrClosed = errors.New("session closed")

	// ErrNoPane is returned when a side has no attached original pane.
	ErrNoPane = errors.New("no pane attached")
)

// Options configure a Session.
type Options struct {
	Diff           paneview.Options // Clock, Logger, OnUpdate and OnError are set by the Session
	Align          bool             // pad panes with spacers so that corresponding lines line up
	AlignOptions   align.Options
	Collapse       bool // fold stretches that are identical in every pane
	CollapseMargin int  // unchanged lines kept around each chunk; negative means collapse.DefaultMargin
	ScrollLock     bool // sync scrolling across panes
	ScrollMode     scrollsync.Mode

	Clock  clock.Clock
	Logger *zap.Logger

	// OnUpdate is called after the Session finished handling an update pass of side's view.
	OnUpdate func(side Side)

	// OnError is called when side's view fails to recompute or alignment fails.
	OnError func(side Side, err error)
}

type pane struct {
	side    Side
	orig    surface.Surface
	view    *paneview.View
	tracker *track.Tracker
	link    *scrollsync.Link

	detachTracker func()
	removeLink    func()
}

// Session is a merge session. The zero value is not usable; use New.
type Session struct {
	id     uuid.UUID
	edit   surface.Surface
	opts   Options
	logger *zap.Logger

	editTracker *track.Tracker
	detachEdit  func()

	panes     [2]*pane
	aligner   *align.Engine
	scroll    *scrollsync.Controller
	collapser *collapse.Controller

	alignErr error
	inPass   bool
	closed   bool
}

// New returns a Session for edit with no original panes attached.
func New(edit surface.Surface, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	id := uuid.New()
	logger := opts.Logger.With(zap.String("session", id.String()))

	s := &Session{
		id:        id,
		edit:      edit,
		opts:      opts,
		logger:    logger,
		collapser: collapse.New(logger),
	}

	s.editTracker = track.New(nil)
	s.detachEdit = track.Attach(s.editTracker, edit)
	s.editTracker.OnRealign(func() { s.dealign(nil) })

	alignOpts := opts.AlignOptions
	alignOpts.Logger = logger
	s.aligner = align.New(edit, s.editTracker, alignOpts)

	s.scroll = scrollsync.New(scrollsync.Options{Mode: s.scrollMode(), Clock: opts.Clock, Logger: logger})
	s.scroll.SetLocked(opts.ScrollLock)

	logger.Debug("session created", zap.Bool("align", opts.Align), zap.Bool("collapse", opts.Collapse))
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id.String() }

// Edit returns the edit pane.
func (s *Session) Edit() surface.Surface { return s.edit }

// Logger returns the session's logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

func (s *Session) scrollMode() scrollsync.Mode {
	if s.opts.Align {
		return scrollsync.ModeDirect
	}
	return s.opts.ScrollMode
}

func validSide(side Side) error {
	if side != Left && side != Right {
		return fmt.Errorf("invalid side %v", side)
	}
	return nil
}

// Attach compares orig against the edit pane on side and runs the first update pass.
func (s *Session) Attach(side Side, orig surface.Surface) error {
	if s.closed {
		return ErrClosed
	}
	if err := validSide(side); err != nil {
		return err
	}
	if s.panes[side] != nil {
		return fmt.Errorf("%v pane already attached", side)
	}

	p := &pane{side: side, orig: orig, tracker: track.New(nil)}
	p.detachTracker = track.Attach(p.tracker, orig)
	p.tracker.OnRealign(func() { s.dealign(p) })

	vopts := s.opts.Diff
	vopts.Clock = s.opts.Clock
	vopts.Logger = s.logger.With(zap.Stringer("side", side))
	vopts.OnUpdate = func(_ *paneview.View, recomputed bool) { s.handleUpdate(p, recomputed) }
	vopts.OnError = func(_ *paneview.View, err error) { s.handleError(p, err) }
	p.view = paneview.New(s.edit, orig, vopts)

	p.link = &scrollsync.Link{Edit: s.edit, Orig: orig, Chunks: p.view.Chunks, Stale: p.view.Stale}
	p.removeLink = s.scroll.Add(p.link)

	s.panes[side] = p
	s.logger.Info("pane attached", zap.Stringer("side", side), zap.Int("lines", orig.LineCount()))
	p.view.Update()
	return nil
}

// Detach closes side's comparison, removing its marks, and realigns the remaining panes.
func (s *Session) Detach(side Side) error {
	if s.closed {
		return ErrClosed
	}
	if err := validSide(side); err != nil {
		return err
	}
	p := s.panes[side]
	if p == nil {
		return fmt.Errorf("%w: %v", ErrNoPane, side)
	}

	s.aligner.Clear()
	s.collapser.Reset()
	s.teardown(p)
	s.panes[side] = nil
	s.logger.Info("pane detached", zap.Stringer("side", side))

	if rest := s.panes[side.other()]; rest != nil {
		if s.opts.Collapse {
			s.collapse()
		}
		if s.opts.Align {
			s.realign(rest)
		}
	}
	return nil
}

func (s *Session) teardown(p *pane) {
	p.view.Close()
	p.detachTracker()
	p.removeLink()
}

// Close detaches every pane and removes all spacers and folds the Session made. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.aligner.Clear()
	s.collapser.Reset()
	for i, p := range s.panes {
		if p != nil {
			s.teardown(p)
			s.panes[i] = nil
		}
	}
	s.scroll.Close()
	s.detachEdit()
	s.closed = true
	s.logger.Debug("session closed")
}

// View returns side's view, or nil if side has no pane.
func (s *Session) View(side Side) *paneview.View {
	if validSide(side) != nil || s.panes[side] == nil {
		return nil
	}
	return s.panes[side].view
}

// Orig returns side's original pane, or nil.
func (s *Session) Orig(side Side) surface.Surface {
	if validSide(side) != nil || s.panes[side] == nil {
		return nil
	}
	return s.panes[side].orig
}

// Err returns side's most recent recompute error, or nil. A pane with an error shows its last good diff.
func (s *Session) Err(side Side) error {
	if v := s.View(side); v != nil {
		return v.Err()
	}
	return nil
}

// AlignErr returns the error of the most recent alignment pass, or nil.
func (s *Session) AlignErr() error { return s.alignErr }

// Aligner returns the alignment engine.
func (s *Session) Aligner() *align.Engine { return s.aligner }

// Collapser returns the collapse controller.
func (s *Session) Collapser() *collapse.Controller { return s.collapser }

// Scroll returns the scroll-sync controller.
func (s *Session) Scroll() *scrollsync.Controller { return s.scroll }

func (s *Session) attached() []*pane {
	var out []*pane
	for _, p := range s.panes {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// dealign handles a tracker's realign signal. p is nil for the edit pane's tracker. Signals caused by the Session's own pass are ignored.
func (s *Session) dealign(p *pane) {
	if s.inPass || s.closed || !s.opts.Align {
		return
	}
	if p != nil {
		if p.view != nil {
			p.view.MarkDealigned(true)
		}
		return
	}
	for _, q := range s.attached() {
		q.view.MarkDealigned(true)
	}
}

func (s *Session) handleUpdate(p *pane, recomputed bool) {
	if s.inPass {
		return
	}
	s.inPass = true
	defer func() { s.inPass = false }()

	collapsed := false
	if recomputed && s.opts.Collapse {
		collapsed = s.collapse()
	}
	if s.opts.Align && (p.view.Dealigned() || collapsed) {
		s.realign(p)
	}
	s.scroll.Flush(p.link)
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(p.side)
	}
}

func (s *Session) handleError(p *pane, err error) {
	s.logger.Warn("pane degraded", zap.Stringer("side", p.side), zap.Error(err))
	if s.opts.OnError != nil {
		s.opts.OnError(p.side, err)
	}
}

// collapse folds identical stretches against every attached pane's current chunks.
func (s *Session) collapse() bool {
	var comps []collapse.Comparison
	for _, q := range s.attached() {
		if q.view.EnsureDiff() != nil {
			return false
		}
		comps = append(comps, collapse.Comparison{Orig: q.orig, Chunks: q.view.Chunks()})
	}
	if len(comps) == 0 {
		return false
	}
	return s.collapser.Collapse(s.edit, comps, s.opts.CollapseMargin)
}

// realign recomputes spacers with p as the primary comparison.
func (s *Session) realign(p *pane) error {
	primary := align.Comparison{Orig: p.orig, Tracker: p.tracker, Chunks: p.view.Chunks()}
	var secondary *align.Comparison
	other := s.panes[p.side.other()]
	if other != nil {
		// The other view reports its own error. Both views stay dealigned, so the pass reruns after the next good recompute.
		if err := other.view.EnsureDiff(); err != nil {
			s.alignErr = err
			return err
		}
		secondary = &align.Comparison{Orig: other.orig, Tracker: other.tracker, Chunks: other.view.Chunks()}
	}

	err := s.aligner.Realign(primary, secondary)
	s.alignErr = err
	if err != nil {
		if s.opts.OnError != nil {
			s.opts.OnError(p.side, err)
		}
		return err
	}
	p.view.ClearDealigned()
	if other != nil {
		other.view.ClearDealigned()
	}
	return nil
}

// Realign brings every attached view's diff up to date and recomputes all spacers now. It clears all spacers if alignment is off.
func (s *Session) Realign() error {
	if s.closed {
		return ErrClosed
	}
	if !s.opts.Align {
		s.aligner.Clear()
		return nil
	}
	ps := s.attached()
	if len(ps) == 0 {
		return ErrNoPane
	}
	for _, p := range ps {
		if err := p.view.EnsureDiff(); err != nil {
			return err
		}
	}
	s.inPass = true
	defer func() { s.inPass = false }()
	return s.realign(ps[0])
}

// SetAlign turns alignment on or off. Turning it on realigns immediately; turning it off removes all spacers.
func (s *Session) SetAlign(on bool) error {
	if s.closed {
		return ErrClosed
	}
	s.opts.Align = on
	s.scroll.SetMode(s.scrollMode())
	if !on {
		s.aligner.Clear()
		s.alignErr = nil
		return nil
	}
	if len(s.attached()) == 0 {
		return nil
	}
	return s.Realign()
}

// Aligned reports whether alignment is on.
func (s *Session) Aligned() bool { return s.opts.Align }

// SetCollapse turns collapsing of identical stretches on or off.
func (s *Session) SetCollapse(on bool) {
	if s.closed {
		return
	}
	s.opts.Collapse = on
	s.inPass = true
	defer func() { s.inPass = false }()
	s.collapser.Reset()
	if on {
		s.collapse()
	}
	if s.opts.Align {
		if ps := s.attached(); len(ps) > 0 {
			s.realign(ps[0])
		}
	}
}

// Collapsed reports whether collapsing is on.
func (s *Session) Collapsed() bool { return s.opts.Collapse }

// SetScrollLock turns scroll syncing on or off.
func (s *Session) SetScrollLock(on bool) {
	s.opts.ScrollLock = on
	s.scroll.SetLocked(on)
}

// ScrollLocked reports whether scroll syncing is on.
func (s *Session) ScrollLocked() bool { return s.scroll.Locked() }

// NextChunk returns the first edit-pane line after line where a chunk of any attached view starts.
func (s *Session) NextChunk(line int) (int, bool) {
	found, ok := 0, false
	for _, p := range s.attached() {
		_ = p.view.EnsureDiff()
		for _, c := range p.view.Chunks() {
			if c.EditFrom > line {
				if !ok || c.EditFrom < found {
					found, ok = c.EditFrom, true
				}
				break
			}
		}
	}
	return found, ok
}

// PrevChunk returns the last edit-pane line before line where a chunk of any attached view ends (its last line; for a chunk that is empty in the edit pane,
// the line above it).
func (s *Session) PrevChunk(line int) (int, bool) {
	found, ok := 0, false
	for _, p := range s.attached() {
		_ = p.view.EnsureDiff()
		chunks := p.view.Chunks()
		for i := len(chunks) - 1; i >= 0; i-- {
			if to := chunks[i].EditTo - 1; to < line {
				if !ok || to > found {
					found, ok = to, true
				}
				break
			}
		}
	}
	return found, ok
}

// RevertChunk replaces the edit side of side's chunk i with its original text.
func (s *Session) RevertChunk(side Side, i int) error {
	v := s.View(side)
	if v == nil {
		return fmt.Errorf("%w: %v", ErrNoPane, side)
	}
	return v.RevertChunk(i)
}

// Invalidate recomputes side's diff now, for example after its original pane became unreadable or readable again.
func (s *Session) Invalidate(side Side) error {
	if s.closed {
		return ErrClosed
	}
	v := s.View(side)
	if v == nil {
		return fmt.Errorf("%w: %v", ErrNoPane, side)
	}
	v.Invalidate()
	return v.Err()
}

// ChunkAt returns the index of side's chunk containing edit line line (or, for a chunk empty in the edit pane, starting at it).
func (s *Session) ChunkAt(side Side, line int) (int, bool) {
	v := s.View(side)
	if v == nil {
		return 0, false
	}
	for i, c := range v.Chunks() {
		if c.ContainsEdit(line) || (c.EditEmpty() && c.EditFrom == line) {
			return i, true
		}
	}
	return 0, false
}

// Chunks returns side's current chunks.
func (s *Session) Chunks(side Side) []diff.Chunk {
	if v := s.View(side); v != nil {
		return v.Chunks()
	}
	return nil
}
