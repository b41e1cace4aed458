// Package tui is the interactive terminal front end: an editable pane side by side with one or two original panes, with live diff markings, alignment,
// synchronized scrolling and collapsed unchanged stretches.
//
// All engine work runs on the bubbletea event loop. Timer callbacks of the merge session and file reloads arrive as messages (see clock.Func).
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/codalotl/mergeview/internal/clock"
	"github.com/codalotl/mergeview/internal/mergeview"
	"github.com/codalotl/mergeview/internal/source"
	"github.com/codalotl/mergeview/internal/surface"
	"github.com/codalotl/mergeview/internal/uni"
)

// Config controls runtime options for the TUI.
type Config struct {
	EditPath  string   // the editable file
	OrigPaths []string // one or two original files; with two, the first is shown left of the edit pane

	// Session configures the merge session. Clock, Logger, OnUpdate and OnError are set by the TUI.
	Session mergeview.Options

	// Palette selects the color palette. Valid values:
	//   - "" or "auto": pick the dark or light palette from the terminal background (default).
	//   - "dark": force the built-in dark palette.
	//   - "light": force the built-in light palette.
	//   - "plain" / "mono" / "none": disable colorization.
	Palette PaletteName

	// Theme is a chroma style name for syntax highlighting, or ThemeNone. Empty picks a theme matching the palette.
	Theme string

	Wrap  bool // soft-wrap long lines instead of truncating them
	Watch bool // reload original files when they change on disk

	Logger *zap.Logger
}

// ErrUsage is returned for a Config that can't be run.
var ErrUsage = errors.New("invalid tui configuration")

// Run loads the files named by cfg and runs the TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.EditPath == "" || len(cfg.OrigPaths) == 0 || len(cfg.OrigPaths) > 2 {
		return fmt.Errorf("%w: need an edit file and one or two original files", ErrUsage)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	files, err := source.Load(ctx, append([]string{cfg.EditPath}, cfg.OrigPaths...)...)
	if err != nil {
		return err
	}

	// Timer callbacks run on timer goroutines; post them into the event loop. Building the model can already arm timers.
	var out poster
	clk := clock.Func(func(f func()) { out.send(timerMsg{f: f}) })

	m, err := newModel(cfg, files[0], files[1:], clk)
	if err != nil {
		return err
	}
	defer m.close()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	out.attach(program)

	if cfg.Watch {
		w, err := source.Watch(ctx, cfg.OrigPaths, source.WatchOptions{
			Logger: cfg.Logger,
			OnReload: func(f source.File, err error) {
				out.send(reloadMsg{file: f, err: err})
			},
		})
		if err != nil {
			return err
		}
		defer w.Close()
	}

	_, err = program.Run()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// msgSender is implemented by *tea.Program.
type msgSender interface {
	Send(msg tea.Msg)
}

// poster sends messages to the program once it is attached. Messages sent before that are held, then sent in order by attach.
type poster struct {
	mu      sync.Mutex
	to      msgSender
	pending []tea.Msg
}

func (p *poster) send(msg tea.Msg) {
	p.mu.Lock()
	to := p.to
	if to == nil {
		p.pending = append(p.pending, msg)
	}
	p.mu.Unlock()
	if to != nil {
		to.Send(msg)
	}
}

// attach sets the receiver and flushes held messages. The flush runs on its own goroutine: a program's Send blocks until the program runs.
func (p *poster) attach(to msgSender) {
	p.mu.Lock()
	p.to = to
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	go func() {
		for _, msg := range pending {
			to.Send(msg)
		}
	}()
}

type (
	timerMsg struct{ f func() }

	reloadMsg struct {
		file source.File
		err  error
	}

	savedMsg struct {
		path string
		err  error
	}
)

// pane is one column of the UI.
type pane struct {
	path    string
	absPath string
	title   string
	edit    bool
	side    mergeview.Side // original panes only

	buf     *surface.Buffer
	hl      *highlighter
	hlLines [][]span
	hlStale bool
	unsub   func()

	x, width int
}

type model struct {
	cfg     Config
	logger  *zap.Logger
	palette colorPalette
	styles  styles
	keys    keyMap
	help    help.Model

	session *mergeview.Session
	edit    *pane
	origs   [2]*pane // indexed by side
	columns []*pane  // display order

	cursor surface.Pos

	ready        bool
	windowWidth  int
	windowHeight int
	bodyHeight   int

	dirty     bool
	quitArmed bool
	status    string
}

func newModel(cfg Config, edit source.File, origs []source.File, clk clock.Clock) (*model, error) {
	if len(origs) == 0 || len(origs) > 2 {
		return nil, fmt.Errorf("%w: need one or two original files, got %d", ErrUsage, len(origs))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &model{
		cfg:     cfg,
		logger:  logger,
		palette: newColorPalette(cfg.Palette),
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
	m.styles = newStyles(m.palette)

	m.edit = m.newPane(edit, true)
	m.edit.title = "edit: " + edit.Path

	sopts := cfg.Session
	if sopts.AlignOptions.MinPad == 0 {
		// Rows are one cell high, so every height difference needs padding.
		sopts.AlignOptions.MinPad = -1
	}
	sopts.Clock = clk
	sopts.Logger = logger
	sopts.OnUpdate = m.handleSessionUpdate
	sopts.OnError = m.handleSessionError
	m.session = mergeview.New(m.edit.buf, sopts)

	sides := []mergeview.Side{mergeview.Right}
	if len(origs) == 2 {
		sides = []mergeview.Side{mergeview.Left, mergeview.Right}
	}
	for i, f := range origs {
		p := m.newPane(f, false)
		p.side = sides[i]
		p.title = f.Path
		m.origs[p.side] = p
		if err := m.session.Attach(p.side, p.buf); err != nil {
			m.session.Close()
			return nil, fmt.Errorf("attach %s: %w", f.Path, err)
		}
	}

	if p := m.origs[mergeview.Left]; p != nil {
		m.columns = append(m.columns, p)
	}
	m.columns = append(m.columns, m.edit)
	m.columns = append(m.columns, m.origs[mergeview.Right])

	m.edit.buf.OnChange(func(surface.Change) { m.dirty = true })
	m.logger.Info("tui started", zap.String("session", m.session.ID()), zap.String("edit", edit.Path), zap.Int("origs", len(origs)))
	return m, nil
}

func (m *model) newPane(f source.File, edit bool) *pane {
	p := &pane{path: f.Path, edit: edit, hlStale: true}
	if abs, err := filepath.Abs(f.Path); err == nil {
		p.absPath = abs
	}
	p.buf = surface.NewBuffer(f.Text, surface.Options{LineHeight: 1})
	p.hl = newHighlighter(f.Path, f.Text, m.cfg.Theme, m.palette)
	p.unsub = p.buf.OnChange(func(surface.Change) { p.hlStale = true })
	return p
}

func (m *model) close() {
	m.session.Close()
	for _, p := range m.columns {
		p.unsub()
	}
}

// Init implements tea.Model.
func (m *model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	case tea.MouseMsg:
		m.handleMouseMsg(msg)
	case timerMsg:
		msg.f()
	case reloadMsg:
		m.handleReload(msg)
	case savedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
			m.logger.Warn("save failed", zap.String("path", msg.path), zap.Error(msg.err))
		} else {
			m.dirty = false
			m.status = "saved " + msg.path
		}
	}
	return m, nil
}

func (m *model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.windowWidth = msg.Width
	m.windowHeight = msg.Height
	m.ready = true
	m.updateSizes()
}

// updateSizes lays out the columns and keeps the cursor visible.
func (m *model) updateSizes() {
	m.layout()
	m.ensureCursorVisible()
}

// layout tells each pane its column, text width and visible height.
func (m *model) layout() {
	if !m.ready {
		return
	}
	m.help.Width = m.windowWidth
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	m.bodyHeight = max(m.windowHeight-2-helpHeight, 1)

	x := 0
	for i, w := range paneWidths(m.windowWidth, len(m.columns)) {
		p := m.columns[i]
		p.x, p.width = x, w
		x += w + 1
		if m.cfg.Wrap {
			p.buf.SetWrapWidth(textWidth(w, p.buf.LineCount()))
		} else {
			p.buf.SetWrapWidth(0)
		}
		p.buf.SetClientHeight(m.bodyHeight)
	}
}

func (m *model) handleSessionUpdate(side mergeview.Side) {
	// The gutter widens when the line count gains a digit.
	m.layout()
}

func (m *model) handleSessionError(side mergeview.Side, err error) {
	m.logger.Debug("session error", zap.Stringer("side", side), zap.Error(err))
}

func (m *model) handleReload(msg reloadMsg) {
	for _, p := range m.origs {
		if p == nil || p.absPath != msg.file.Path {
			continue
		}
		if msg.err != nil {
			p.buf.SetErr(msg.err)
			m.session.Invalidate(p.side)
			m.status = fmt.Sprintf("%s: %v", p.path, msg.err)
			return
		}
		hadErr := p.buf.Err() != nil
		p.buf.SetErr(nil)
		if p.buf.Value() != msg.file.Text {
			p.buf.SetValue(msg.file.Text)
		} else if hadErr {
			m.session.Invalidate(p.side)
		}
		m.status = "reloaded " + p.path
		return
	}
}

func (m *model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if !key.Matches(msg, m.keys.Quit) {
		m.quitArmed = false
	}
	buf := m.edit.buf

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.dirty && !m.quitArmed {
			m.quitArmed = true
			m.status = "unsaved changes: press ctrl+q again to quit"
			return nil
		}
		return tea.Quit
	case key.Matches(msg, m.keys.Save):
		path, text := m.edit.path, buf.Value()
		return func() tea.Msg {
			return savedMsg{path: path, err: source.Save(path, text)}
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.updateSizes()
	case key.Matches(msg, m.keys.NextChunk):
		if line, ok := m.session.NextChunk(m.cursor.Line); ok {
			m.moveCursor(surface.Pos{Line: line})
		} else {
			m.status = "no next change"
		}
	case key.Matches(msg, m.keys.PrevChunk):
		if line, ok := m.session.PrevChunk(m.cursor.Line); ok {
			m.moveCursor(surface.Pos{Line: line})
		} else {
			m.status = "no previous change"
		}
	case key.Matches(msg, m.keys.Revert):
		m.revertAtCursor()
	case key.Matches(msg, m.keys.Align):
		if err := m.session.SetAlign(!m.session.Aligned()); err != nil {
			m.status = "align: " + err.Error()
		}
	case key.Matches(msg, m.keys.Collapse):
		m.session.SetCollapse(!m.session.Collapsed())
	case key.Matches(msg, m.keys.ScrollLock):
		m.session.SetScrollLock(!m.session.ScrollLocked())
	case key.Matches(msg, m.keys.ExpandAll):
		m.session.Collapser().ExpandAll()
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(surface.Pos{Line: m.cursor.Line - 1, Ch: m.cursor.Ch})
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(surface.Pos{Line: m.cursor.Line + 1, Ch: m.cursor.Ch})
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(surface.Pos{Line: m.cursor.Line - m.bodyHeight, Ch: m.cursor.Ch})
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(surface.Pos{Line: m.cursor.Line + m.bodyHeight, Ch: m.cursor.Ch})
	case key.Matches(msg, m.keys.Left):
		if m.cursor.Ch > 0 {
			_, size := utf8.DecodeLastRuneInString(buf.Line(m.cursor.Line)[:m.cursor.Ch])
			m.moveCursor(surface.Pos{Line: m.cursor.Line, Ch: m.cursor.Ch - size})
		} else if m.cursor.Line > 0 {
			m.moveCursor(surface.LineEnd(m.cursor.Line - 1))
		}
	case key.Matches(msg, m.keys.Right):
		line := buf.Line(m.cursor.Line)
		if m.cursor.Ch < len(line) {
			_, size := utf8.DecodeRuneInString(line[m.cursor.Ch:])
			m.moveCursor(surface.Pos{Line: m.cursor.Line, Ch: m.cursor.Ch + size})
		} else if m.cursor.Line < buf.LineCount()-1 {
			m.moveCursor(surface.Pos{Line: m.cursor.Line + 1})
		}
	case key.Matches(msg, m.keys.Home):
		m.moveCursor(surface.Pos{Line: m.cursor.Line})
	case key.Matches(msg, m.keys.End):
		m.moveCursor(surface.LineEnd(m.cursor.Line))
	case key.Matches(msg, m.keys.ScrollUp):
		m.scrollBy(m.edit, -1)
	case key.Matches(msg, m.keys.ScrollDown):
		m.scrollBy(m.edit, 1)
	case key.Matches(msg, m.keys.Newline):
		m.insert("\n")
	case key.Matches(msg, m.keys.Backspace):
		m.backspace()
	case key.Matches(msg, m.keys.DeleteRight):
		m.deleteRight()
	case msg.Type == tea.KeyRunes:
		m.insert(strings.ReplaceAll(string(msg.Runes), "\r", ""))
	case msg.Type == tea.KeySpace:
		m.insert(" ")
	case msg.Type == tea.KeyTab:
		m.insert("\t")
	}
	return nil
}

func (m *model) revertAtCursor() {
	for _, side := range []mergeview.Side{mergeview.Right, mergeview.Left} {
		i, ok := m.session.ChunkAt(side, m.cursor.Line)
		if !ok {
			continue
		}
		if err := m.session.RevertChunk(side, i); err != nil {
			m.status = "revert: " + err.Error()
			return
		}
		m.moveCursor(surface.Pos{Line: m.cursor.Line})
		m.status = fmt.Sprintf("reverted change from %s", m.origs[side].path)
		return
	}
	m.status = "no change at cursor"
}

// moveCursor puts the cursor at pos, clamped to the document and to a character boundary, expands a fold hiding it, and scrolls it into view.
func (m *model) moveCursor(pos surface.Pos) {
	buf := m.edit.buf
	pos.Line = max(0, min(pos.Line, buf.LineCount()-1))
	line := buf.Line(pos.Line)
	pos.Ch = max(0, min(pos.Ch, len(line)))
	for pos.Ch > 0 && pos.Ch < len(line) && !utf8.RuneStart(line[pos.Ch]) {
		pos.Ch--
	}
	if buf.Hidden(pos.Line) {
		buf.ClickFold(pos.Line)
	}
	m.cursor = pos
	m.ensureCursorVisible()
}

// ensureCursorVisible scrolls the edit pane so that the cursor's row is visible.
func (m *model) ensureCursorVisible() {
	buf := m.edit.buf
	m.cursor.Line = min(m.cursor.Line, buf.LineCount()-1)
	m.cursor.Ch = min(m.cursor.Ch, len(buf.Line(m.cursor.Line)))
	if !m.ready {
		return
	}
	row := buf.HeightAtLine(m.cursor.Line, surface.Local)
	if m.cfg.Wrap {
		row += cursorPart(buf.Line(m.cursor.Line), m.cursor.Ch, textWidth(m.edit.width, buf.LineCount()))
	}
	info := buf.ScrollInfo()
	switch {
	case row < info.Top:
		buf.ScrollTo(info.Left, row)
	case row >= info.Top+info.ClientHeight:
		buf.ScrollTo(info.Left, row-info.ClientHeight+1)
	}
}

// cursorPart returns the soft-wrap part of line that holds byte offset ch.
func cursorPart(line string, ch, width int) int {
	rest, off := line, 0
	for part := 0; ; part++ {
		head, tail := uni.Cut(rest, width, nil)
		if tail == "" || ch < off+len(head) {
			return part
		}
		off += len(head)
		rest = tail
	}
}

func (m *model) scrollBy(p *pane, rows int) {
	info := p.buf.ScrollInfo()
	p.buf.ScrollTo(info.Left, info.Top+rows*p.buf.LineHeight())
}

func (m *model) insert(text string) {
	m.edit.buf.Replace(m.cursor, m.cursor, text)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		m.cursor = surface.Pos{Line: m.cursor.Line + strings.Count(text, "\n"), Ch: len(text) - i - 1}
	} else {
		m.cursor.Ch += len(text)
	}
	m.ensureCursorVisible()
}

func (m *model) backspace() {
	buf := m.edit.buf
	switch {
	case m.cursor.Ch > 0:
		_, size := utf8.DecodeLastRuneInString(buf.Line(m.cursor.Line)[:m.cursor.Ch])
		from := surface.Pos{Line: m.cursor.Line, Ch: m.cursor.Ch - size}
		buf.Replace(from, m.cursor, "")
		m.cursor = from
	case m.cursor.Line > 0:
		prev := surface.Pos{Line: m.cursor.Line - 1, Ch: len(buf.Line(m.cursor.Line - 1))}
		buf.Replace(prev, m.cursor, "")
		m.cursor = prev
	}
	m.ensureCursorVisible()
}

func (m *model) deleteRight() {
	buf := m.edit.buf
	line := buf.Line(m.cursor.Line)
	switch {
	case m.cursor.Ch < len(line):
		_, size := utf8.DecodeRuneInString(line[m.cursor.Ch:])
		buf.Replace(m.cursor, surface.Pos{Line: m.cursor.Line, Ch: m.cursor.Ch + size}, "")
	case m.cursor.Line < buf.LineCount()-1:
		buf.Replace(m.cursor, surface.Pos{Line: m.cursor.Line + 1}, "")
	}
}

func (m *model) handleMouseMsg(msg tea.MouseMsg) {
	p := m.paneAt(msg.X)
	if p == nil {
		return
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.scrollBy(p, -3)
	case msg.Button == tea.MouseButtonWheelDown:
		m.scrollBy(p, 3)
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		body := msg.Y - 1 // title row
		if body < 0 || body >= m.bodyHeight {
			return
		}
		rows := p.buf.Rows(p.buf.ScrollInfo().Top/p.buf.LineHeight()+body, 1)
		if len(rows) == 0 {
			return
		}
		r := rows[0]
		switch {
		case r.Kind == surface.RowFold:
			p.buf.ClickFold(r.Line)
		case r.Kind == surface.RowText && p.edit:
			col := msg.X - p.x - gutterWidth(p.buf.LineCount())
			head, _ := uni.Cut(r.Text, max(col, 0), nil)
			m.moveCursor(surface.Pos{Line: r.Line, Ch: r.Offset + len(head)})
		}
	}
}

func (m *model) paneAt(x int) *pane {
	for _, p := range m.columns {
		if x >= p.x && x < p.x+p.width {
			return p
		}
	}
	return nil
}

// View implements tea.Model.
func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}
	cols := make([][]string, len(m.columns))
	for i, p := range m.columns {
		if p.hlStale {
			p.hlLines = p.hl.lines(p.buf.Value())
			p.hlStale = false
		}
		pr := paneRender{title: p.title, buf: p.buf, hl: p.hlLines}
		if p.edit {
			if m.dirty {
				pr.title += " [modified]"
			}
			c := m.cursor
			pr.cursor = &c
		} else {
			pr.err = m.session.Err(p.side)
		}
		top := p.buf.ScrollInfo().Top / p.buf.LineHeight()
		cols[i] = renderPane(pr, top, m.bodyHeight, p.width, m.styles, nil)
	}

	var b strings.Builder
	b.WriteString(joinColumns(cols, m.styles.separator.Render("│")))
	b.WriteByte('\n')
	b.WriteString(m.styles.status.Render(fit(m.statusLine(), m.windowWidth, nil)))
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *model) statusLine() string {
	onOff := func(name string, on bool) string {
		if on {
			return name + ":on"
		}
		return name + ":off"
	}
	changes := 0
	for _, side := range []mergeview.Side{mergeview.Left, mergeview.Right} {
		changes += len(m.session.Chunks(side))
	}
	parts := []string{
		fmt.Sprintf("%d:%d", m.cursor.Line+1, m.cursor.Ch+1),
		fmt.Sprintf("%d changes", changes),
		onOff("align", m.session.Aligned()),
		onOff("collapse", m.session.Collapsed()),
		onOff("lock", m.session.ScrollLocked()),
	}
	if err := m.session.AlignErr(); err != nil {
		parts = append(parts, "alignment failed: "+err.Error())
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return strings.Join(parts, "  ")
}
