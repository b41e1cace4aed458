package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PaletteName is a symbolic name for a color palette.
type PaletteName string

const (
	paletteAutoName  PaletteName = "auto"
	paletteDarkName  PaletteName = "dark"
	paletteLightName PaletteName = "light"
	palettePlainName PaletteName = "plain"
)

const (
	PaletteAuto  PaletteName = paletteAutoName
	PaletteDark  PaletteName = paletteDarkName
	PaletteLight PaletteName = paletteLightName
	PalettePlain PaletteName = palettePlainName
)

// colorPalette holds the colors of every pane element. A nil color means "terminal default".
type colorPalette struct {
	name      PaletteName
	colorized bool
	isLight   bool

	primaryForeground lipgloss.TerminalColor
	accentForeground  lipgloss.TerminalColor
	borderColor       lipgloss.TerminalColor
	redForeground     lipgloss.TerminalColor
	greenForeground   lipgloss.TerminalColor
	yellowForeground  lipgloss.TerminalColor

	insertedBackground lipgloss.TerminalColor // inserted text spans
	deletedBackground  lipgloss.TerminalColor // deleted text spans
	chunkBackground    lipgloss.TerminalColor // whole lines of a chunk
	spacerBackground   lipgloss.TerminalColor // alignment padding rows
}

func newColorPalette(name PaletteName) colorPalette {
	switch normalizePaletteName(name) {
	case palettePlainName:
		return colorPalette{name: palettePlainName}
	case paletteDarkName:
		return darkPalette()
	case paletteLightName:
		return lightPalette()
	default:
		return derivedPaletteFromTerminal()
	}
}

// ParsePaletteName reports whether name is a known palette name, returning its normalized form.
func ParsePaletteName(name string) (PaletteName, bool) {
	switch PaletteName(strings.ToLower(strings.TrimSpace(name))) {
	case "", paletteAutoName, "default", paletteDarkName, paletteLightName, palettePlainName, "mono", "none":
		return normalizePaletteName(PaletteName(name)), true
	default:
		return paletteAutoName, false
	}
}

func normalizePaletteName(name PaletteName) PaletteName {
	switch PaletteName(strings.ToLower(strings.TrimSpace(string(name)))) {
	case "", paletteAutoName, "default":
		return paletteAutoName
	case paletteDarkName:
		return paletteDarkName
	case paletteLightName:
		return paletteLightName
	case palettePlainName, "mono", "none":
		return palettePlainName
	default:
		return paletteAutoName
	}
}

func darkPalette() colorPalette {
	return colorPalette{
		name:               paletteDarkName,
		colorized:          true,
		primaryForeground:  lipgloss.Color("#cad3f5"),
		accentForeground:   lipgloss.Color("#8087a2"),
		borderColor:        lipgloss.Color("#cba6f7"),
		redForeground:      lipgloss.Color("#f06666"),
		greenForeground:    lipgloss.Color("#57c992"),
		yellowForeground:   lipgloss.Color("#eed49f"),
		insertedBackground: lipgloss.Color("#2f5a3f"),
		deletedBackground:  lipgloss.Color("#6b2f36"),
		chunkBackground:    lipgloss.Color("#2e3148"),
		spacerBackground:   lipgloss.Color("#1e2030"),
	}
}

func lightPalette() colorPalette {
	return colorPalette{
		name:               paletteLightName,
		colorized:          true,
		isLight:            true,
		primaryForeground:  lipgloss.Color("#1c1f2b"),
		accentForeground:   lipgloss.Color("#4a516c"),
		borderColor:        lipgloss.Color("#8f95b2"),
		redForeground:      lipgloss.Color("#ca3d3d"),
		greenForeground:    lipgloss.Color("#298f58"),
		yellowForeground:   lipgloss.Color("#9a6a00"),
		insertedBackground: lipgloss.Color("#c9f0d3"),
		deletedBackground:  lipgloss.Color("#f7c9cd"),
		chunkBackground:    lipgloss.Color("#eef0fa"),
		spacerBackground:   lipgloss.Color("#e4e6ef"),
	}
}

// derivedPaletteFromTerminal picks the built-in palette matching the terminal's background.
func derivedPaletteFromTerminal() colorPalette {
	var p colorPalette
	if lipgloss.HasDarkBackground() {
		p = darkPalette()
	} else {
		p = lightPalette()
	}
	p.name = paletteAutoName
	return p
}

// styles are the lipgloss styles derived from a palette.
type styles struct {
	text      lipgloss.Style
	gutter    lipgloss.Style
	inserted  lipgloss.Style
	deleted   lipgloss.Style
	chunk     lipgloss.Style
	spacer    lipgloss.Style
	fold      lipgloss.Style
	cursor    lipgloss.Style
	empty     lipgloss.Style // line just above a chunk that is empty on this side
	title     lipgloss.Style
	banner    lipgloss.Style
	status    lipgloss.Style
	separator lipgloss.Style
	gutterAdd lipgloss.Style
	gutterDel lipgloss.Style
	gutterMod lipgloss.Style
}

func newStyles(p colorPalette) styles {
	s := lipgloss.NewStyle
	if !p.colorized {
		return styles{
			text: s(), gutter: s(), inserted: s(), deleted: s(), chunk: s(), spacer: s(), fold: s(),
			cursor: s().Reverse(true), empty: s(), title: s().Bold(true), banner: s().Bold(true), status: s(),
			separator: s(), gutterAdd: s(), gutterDel: s(), gutterMod: s(),
		}
	}
	fg := func(c lipgloss.TerminalColor) lipgloss.Style {
		if c == nil {
			return s()
		}
		return s().Foreground(c)
	}
	return styles{
		text:      fg(p.primaryForeground),
		gutter:    fg(p.accentForeground),
		inserted:  fg(p.primaryForeground).Background(p.insertedBackground),
		deleted:   fg(p.primaryForeground).Background(p.deletedBackground),
		chunk:     fg(p.primaryForeground).Background(p.chunkBackground),
		spacer:    s().Background(p.spacerBackground),
		fold:      fg(p.accentForeground).Italic(true),
		cursor:    s().Reverse(true),
		empty:     fg(p.primaryForeground).Underline(true),
		title:     fg(p.borderColor).Bold(true),
		banner:    fg(p.redForeground).Bold(true),
		status:    fg(p.accentForeground),
		separator: fg(p.borderColor),
		gutterAdd: fg(p.greenForeground),
		gutterDel: fg(p.redForeground),
		gutterMod: fg(p.yellowForeground),
	}
}
