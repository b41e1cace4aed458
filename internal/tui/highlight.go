package tui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

// ThemeNone disables syntax highlighting.
const ThemeNone = "none"

// span is a highlighted byte range [from, to) of one line.
type span struct {
	from, to int
	fg       lipgloss.TerminalColor
	bold     bool
	italic   bool
}

// highlighter tokenizes pane text with a chroma lexer and maps tokens to the colors of a chroma style.
type highlighter struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// newHighlighter returns a highlighter for a file named filename with contents text, or nil if theme is ThemeNone. An empty theme picks a default for the palette.
func newHighlighter(filename, text, theme string, p colorPalette) *highlighter {
	if !p.colorized || strings.EqualFold(theme, ThemeNone) {
		return nil
	}
	if theme == "" {
		theme = "monokai"
		if p.isLight {
			theme = "github"
		}
	}

	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := chromastyles.Get(theme)
	if style == nil {
		style = chromastyles.Fallback
	}
	return &highlighter{lexer: chroma.Coalesce(lexer), style: style}
}

// lines returns the spans of each line of text. On a tokenizer error, no line is highlighted.
func (h *highlighter) lines(text string) [][]span {
	if h == nil {
		return nil
	}
	it, err := h.lexer.Tokenise(nil, text)
	if err != nil {
		return nil
	}
	tokenLines := chroma.SplitTokensIntoLines(it.Tokens())
	out := make([][]span, len(tokenLines))
	for i, line := range tokenLines {
		off := 0
		for _, tok := range line {
			v := strings.TrimSuffix(tok.Value, "\n")
			if v == "" {
				continue
			}
			entry := h.style.Get(tok.Type)
			sp := span{from: off, to: off + len(v), bold: entry.Bold == chroma.Yes, italic: entry.Italic == chroma.Yes}
			if entry.Colour.IsSet() {
				sp.fg = lipgloss.Color(entry.Colour.String())
			}
			off += len(v)
			if sp.fg != nil || sp.bold || sp.italic {
				out[i] = append(out[i], sp)
			}
		}
	}
	return out
}
